package webpush

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Urgency hints how eagerly the push service should wake the device.
//
// https://www.rfc-editor.org/rfc/rfc8030.html#section-5.3
type Urgency string

const (
	UrgencyVeryLow Urgency = "very-low"
	UrgencyLow     Urgency = "low"
	UrgencyNormal  Urgency = "normal"
	UrgencyHigh    Urgency = "high"
)

const (
	// DefaultTTL is how long the push service keeps an undelivered message.
	DefaultTTL = 24 * time.Hour

	// DefaultTimeout bounds one POST to a push service.
	DefaultTimeout = 10 * time.Second

	maxResponseBody = 4096
)

// Notification is the logical message shown on the device.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// OutcomeKind classifies one delivery attempt.
type OutcomeKind string

const (
	Delivered OutcomeKind = "delivered"
	Rejected  OutcomeKind = "rejected"
	Failed    OutcomeKind = "failed"
)

// Outcome is the result of sending to one subscription. Rejected carries the
// push service's status and response text; Failed carries a message and, for
// validation, signing or encryption problems, the typed error.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Status  int         `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
	Err     error       `json:"-"`
}

// Delivered reports whether the push service accepted the message.
func (o Outcome) Delivered() bool { return o.Kind == Delivered }

// Stale reports whether the subscription is dead: the push service answered
// 404 or 410, or the stored subscription is malformed. Deleting it is the
// caller's decision.
func (o Outcome) Stale() bool {
	if o.Kind == Rejected {
		return o.Status == http.StatusNotFound || o.Status == http.StatusGone
	}
	return errors.Is(o.Err, ErrInvalidSubscription)
}

// AsError returns nil for a delivered outcome and a descriptive error otherwise.
func (o Outcome) AsError() error {
	switch o.Kind {
	case Delivered:
		return nil
	case Rejected:
		return fmt.Errorf("push service rejected message: status %d: %s", o.Status, o.Message)
	default:
		if o.Err != nil {
			return o.Err
		}
		return fmt.Errorf("push delivery failed: %s", o.Message)
	}
}

func failed(err error) Outcome {
	return Outcome{Kind: Failed, Message: err.Error(), Err: err}
}

// Dispatcher delivers encrypted notifications to push services.
type Dispatcher struct {
	signer     *Signer
	httpClient *http.Client
	ttl        time.Duration
	urgency    Urgency
}

type Option func(*Dispatcher)

// WithHTTPClient replaces the default client, which times out after
// DefaultTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = c
	}
}

// WithTTL sets the TTL header, rounded down to whole seconds.
func WithTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.ttl = ttl
	}
}

func WithUrgency(u Urgency) Option {
	return func(d *Dispatcher) {
		d.urgency = u
	}
}

func NewDispatcher(signer *Signer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		signer:     signer,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		ttl:        DefaultTTL,
		urgency:    UrgencyNormal,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers n to sub. It never returns an error: every failure is folded
// into the Outcome so one bad subscription cannot abort a batch. There is no
// retry.
func (d *Dispatcher) Send(ctx context.Context, sub Subscription, n Notification) Outcome {
	keys, err := validated(sub)
	if err != nil {
		return failed(err)
	}
	audience, _ := Audience(sub.Endpoint)

	authorization, err := d.signer.Authorization(audience)
	if err != nil {
		return failed(err)
	}

	plaintext, err := json.Marshal(n)
	if err != nil {
		return failed(&EncryptionError{Op: "marshal payload", Err: err})
	}
	if len(plaintext) > MaxPlaintext {
		return failed(&EncryptionError{Op: "size", Err: fmt.Errorf("payload of %d bytes exceeds %d", len(plaintext), MaxPlaintext)})
	}
	body, err := encrypt(plaintext, keys, randReader)
	if err != nil {
		return failed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("Authorization", authorization)
	req.Header.Set("TTL", strconv.Itoa(int(d.ttl.Seconds())))
	req.Header.Set("Urgency", string(d.urgency))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: Failed, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		// Drain so the connection returns to the pool.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return Outcome{Kind: Delivered, Status: resp.StatusCode}
	}

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	msg := string(text)
	if msg == "" {
		msg = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	return Outcome{Kind: Rejected, Status: resp.StatusCode, Message: msg}
}

func validated(sub Subscription) (*subscriberKeys, error) {
	if sub.Endpoint == "" {
		return nil, &InvalidSubscriptionError{Reason: "missing endpoint"}
	}
	if _, err := Audience(sub.Endpoint); err != nil {
		return nil, &InvalidSubscriptionError{Reason: "endpoint", Err: err}
	}
	return decodeKeys(sub.Keys.P256dh, sub.Keys.Auth)
}
