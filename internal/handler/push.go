package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/himmelstrup/timepush/internal/model"
	"github.com/himmelstrup/timepush/internal/push"
	"github.com/himmelstrup/timepush/internal/websocket"
)

type UserLookup interface {
	GetByID(id string) (*model.User, error)
}

type SubscriptionStore interface {
	Upsert(userID string, raw json.RawMessage) (*model.PushSubscription, error)
	GetByUser(userID string) (*model.PushSubscription, error)
	DeleteByUser(userID string) (bool, error)
}

type VAPIDKeySource interface {
	VAPIDPublicKey() string
}

type PushHandler struct {
	users  UserLookup
	subs   SubscriptionStore
	keys   VAPIDKeySource
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewPushHandler(users UserLookup, subs SubscriptionStore, keys VAPIDKeySource, hub *websocket.Hub, logger *slog.Logger) *PushHandler {
	return &PushHandler{users: users, subs: subs, keys: keys, hub: hub, logger: logger}
}

func (h *PushHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.keys.VAPIDPublicKey()})
}

// lookupUser writes a response and returns nil when the path user is unknown.
func (h *PushHandler) lookupUser(w http.ResponseWriter, r *http.Request) *model.User {
	id := r.PathValue("id")
	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return nil
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

// PutSubscription handles PUT /api/users/{id}/subscription
func (h *PushHandler) PutSubscription(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	sub, err := push.ParseStoredSubscription(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must be a push subscription object")
		return
	}
	if err := sub.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := h.lookupUser(w, r)
	if user == nil {
		return
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode subscription")
		return
	}
	saved, err := h.subs.Upsert(user.ID, raw)
	if err != nil {
		h.logger.Error("upsert push subscription", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	h.logger.Info("push subscription saved", "user_id", user.ID, "origin", push.Origin(sub.Endpoint))
	h.broadcast(websocket.NewMessage("subscription", "updated", map[string]any{"userId": user.ID}))
	writeJSON(w, http.StatusOK, saved)
}

// GetSubscription handles GET /api/users/{id}/subscription
func (h *PushHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	user := h.lookupUser(w, r)
	if user == nil {
		return
	}

	sub, err := h.subs.GetByUser(user.ID)
	if err != nil {
		h.logger.Error("get push subscription", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /api/users/{id}/subscription
func (h *PushHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deleted, err := h.subs.DeleteByUser(id)
	if err != nil {
		h.logger.Error("delete push subscription", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}

	h.broadcast(websocket.NewMessage("subscription", "deleted", map[string]any{"userId": id}))
	w.WriteHeader(http.StatusNoContent)
}

