package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/himmelstrup/timepush/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `id, user_id, subscription, created_at, updated_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	var raw string
	if err := scanner.Scan(&sub.ID, &sub.UserID, &raw, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Subscription = json.RawMessage(raw)
	return &sub, nil
}

// Upsert stores raw as the user's only subscription, replacing any previous one.
func (s *PushStore) Upsert(userID string, raw json.RawMessage) (*model.PushSubscription, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, subscription, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET subscription = excluded.subscription, updated_at = excluded.updated_at`,
		userID, string(raw), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	return s.GetByUser(userID)
}

func (s *PushStore) GetByUser(userID string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ?`, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

// ListByUser returns the user's subscriptions in listing order.
func (s *PushStore) ListByUser(userID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteByID(id int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByUser removes the user's subscription and reports whether one existed.
func (s *PushStore) DeleteByUser(userID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete push subscription by user: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
