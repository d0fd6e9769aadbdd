package store

import (
	"database/sql"
	"fmt"
	"time"
)

// DeliveryStore records which users were reminded on which date.
type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// Record marks userID as reminded on date (YYYY-MM-DD). Repeats are ignored.
func (s *DeliveryStore) Record(userID, date string, sentAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO reminder_deliveries (user_id, reminder_date, sent_at) VALUES (?, ?, ?)`,
		userID, date, sentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record reminder delivery: %w", err)
	}
	return nil
}

func (s *DeliveryStore) WasSent(userID, date string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reminder_deliveries WHERE user_id = ? AND reminder_date = ?`,
		userID, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check reminder delivery: %w", err)
	}
	return count > 0, nil
}

// CleanupBefore deletes records for dates earlier than date.
func (s *DeliveryStore) CleanupBefore(date string) error {
	_, err := s.db.Exec(`DELETE FROM reminder_deliveries WHERE reminder_date < ?`, date)
	if err != nil {
		return fmt.Errorf("cleanup reminder deliveries: %w", err)
	}
	return nil
}
