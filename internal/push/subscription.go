package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/himmelstrup/timepush/internal/webpush"
)

// ErrParseSubscription is returned for stored records that are neither a
// subscription object nor a JSON string holding one.
var ErrParseSubscription = errors.New("unparseable stored subscription")

// ParseStoredSubscription accepts the browser's subscription JSON or a JSON
// string wrapping it, as written by older clients. Key validation is left to
// the dispatcher.
func ParseStoredSubscription(raw []byte) (webpush.Subscription, error) {
	var sub webpush.Subscription

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return sub, fmt.Errorf("%w: empty", ErrParseSubscription)
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return sub, fmt.Errorf("%w: %w", ErrParseSubscription, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 || raw[0] != '{' {
			return sub, fmt.Errorf("%w: string does not hold an object", ErrParseSubscription)
		}
	}
	if raw[0] != '{' {
		return sub, fmt.Errorf("%w: not an object", ErrParseSubscription)
	}

	if err := json.Unmarshal(raw, &sub); err != nil {
		return webpush.Subscription{}, fmt.Errorf("%w: %w", ErrParseSubscription, err)
	}
	return sub, nil
}

const maxEndpointDisplay = 50

// TruncateEndpoint shortens an endpoint for logs and reports.
func TruncateEndpoint(endpoint string) string {
	r := []rune(endpoint)
	if len(r) <= maxEndpointDisplay {
		return endpoint
	}
	return string(r[:maxEndpointDisplay]) + "..."
}

// Origin returns scheme://host of endpoint, or "" when it is not a URL.
func Origin(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
