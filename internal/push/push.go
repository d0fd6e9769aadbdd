package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/himmelstrup/timepush/internal/webpush"
)

// Service sends web push notifications with the process-wide VAPID identity.
type Service struct {
	keys       webpush.KeyPair
	dispatcher *webpush.Dispatcher
	logger     *slog.Logger
}

// NewService validates keys and builds the dispatcher. A key pair that cannot
// sign is a configuration error, reported here rather than on first send.
func NewService(keys webpush.KeyPair, logger *slog.Logger, opts ...webpush.Option) (*Service, error) {
	signer, err := webpush.NewSigner(keys)
	if err != nil {
		return nil, fmt.Errorf("vapid keys: %w", err)
	}
	return &Service{
		keys:       keys,
		dispatcher: webpush.NewDispatcher(signer, opts...),
		logger:     logger.With("component", "push"),
	}, nil
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.keys.PublicKey
}

// Send delivers n to sub and logs the outcome. Key material is never logged.
func (s *Service) Send(ctx context.Context, sub webpush.Subscription, n webpush.Notification) webpush.Outcome {
	start := time.Now()
	outcome := s.dispatcher.Send(ctx, sub, n)

	attrs := []any{
		"origin", Origin(sub.Endpoint),
		"outcome", outcome.Kind,
		"duration", time.Since(start),
	}
	if outcome.Status != 0 {
		attrs = append(attrs, "status", outcome.Status)
	}
	switch outcome.Kind {
	case webpush.Delivered:
		s.logger.Debug("push delivered", attrs...)
	default:
		s.logger.Warn("push not delivered", append(attrs, "message", outcome.Message)...)
	}
	return outcome
}

// SendStored parses a stored subscription and delivers n to it. A record that
// cannot be parsed yields a Failed outcome marked as an invalid subscription.
func (s *Service) SendStored(ctx context.Context, raw json.RawMessage, n webpush.Notification) (webpush.Subscription, webpush.Outcome) {
	sub, err := ParseStoredSubscription(raw)
	if err != nil {
		invalid := &webpush.InvalidSubscriptionError{Reason: "stored record", Err: err}
		s.logger.Warn("push not delivered", "outcome", webpush.Failed, "message", invalid.Error())
		return sub, webpush.Outcome{Kind: webpush.Failed, Message: invalid.Error(), Err: invalid}
	}
	return sub, s.Send(ctx, sub, n)
}

// GenerateVAPIDKeys generates a new raw P-256 key pair for VAPID, base64url encoded.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	kp, err := webpush.GenerateKeyPair("")
	if err != nil {
		return "", "", err
	}
	return kp.PublicKey, kp.PrivateKey, nil
}
