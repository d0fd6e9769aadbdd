package model

import (
	"encoding/json"
	"time"
)

// PushSubscription is the browser's subscription JSON as stored for a user.
// Subscription holds either the object itself or a JSON string wrapping it;
// push.ParseStoredSubscription normalizes both.
type PushSubscription struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	Subscription json.RawMessage `json:"subscription"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
