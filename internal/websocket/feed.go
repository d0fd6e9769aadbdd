package websocket

import (
	"context"
	"time"

	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/reminder"
)

// Feed broadcasts delivery outcomes and finished runs to the hub. It is a
// reminder.Observer. Endpoints are reduced to their origin.
type Feed struct {
	hub *Hub
}

func NewFeed(hub *Hub) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) Delivery(_ context.Context, d reminder.Delivery) {
	extra := map[string]any{
		"userId":  d.UserID,
		"origin":  push.Origin(d.Endpoint),
		"trigger": d.Trigger,
	}
	if d.Outcome.Status != 0 {
		extra["status"] = d.Outcome.Status
	}
	if !d.Outcome.Delivered() {
		extra["message"] = d.Outcome.Message
	}
	f.hub.Broadcast(NewMessage("delivery", string(d.Outcome.Kind), extra))
}

func (f *Feed) RunFinished(_ context.Context, trigger string, elapsed time.Duration) {
	f.hub.Broadcast(NewMessage("run", "finished", map[string]any{
		"trigger":    trigger,
		"durationMs": elapsed.Milliseconds(),
	}))
}
