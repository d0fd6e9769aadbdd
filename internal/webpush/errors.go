package webpush

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned for text that is not valid base64url.
	ErrDecode = errors.New("invalid base64url")

	// ErrInvalidSubscription matches every *InvalidSubscriptionError.
	ErrInvalidSubscription = errors.New("invalid push subscription")

	// ErrSigning matches every *SigningError.
	ErrSigning = errors.New("vapid signing failed")

	// ErrEncryption matches every *EncryptionError.
	ErrEncryption = errors.New("push payload encryption failed")
)

// InvalidSubscriptionError reports a subscription that is missing its
// endpoint or keys, or whose keys decode to the wrong length. It is raised
// before any cryptographic work and should not be retried.
type InvalidSubscriptionError struct {
	Reason string
	Err    error
}

func (e *InvalidSubscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid push subscription: %s: %v", e.Reason, e.Err)
	}
	return "invalid push subscription: " + e.Reason
}

func (e *InvalidSubscriptionError) Unwrap() error { return e.Err }

func (e *InvalidSubscriptionError) Is(target error) bool { return target == ErrInvalidSubscription }

// SigningError reports a failure building or signing a VAPID token.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("vapid %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool { return target == ErrSigning }

// EncryptionError reports a failure in one of the aes128gcm steps.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypt %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

func (e *EncryptionError) Is(target error) bool { return target == ErrEncryption }
