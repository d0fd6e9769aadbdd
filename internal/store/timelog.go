package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/himmelstrup/timepush/internal/model"
)

type TimeLogStore struct {
	db *sql.DB
}

func NewTimeLogStore(db *sql.DB) *TimeLogStore {
	return &TimeLogStore{db: db}
}

func (s *TimeLogStore) Create(userID string, hours float64, loggedAt time.Time) (*model.TimeLog, error) {
	loggedAt = loggedAt.UTC()
	result, err := s.db.Exec(
		`INSERT INTO time_logs (user_id, hours, logged_at) VALUES (?, ?, ?)`,
		userID, hours, loggedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert time log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.TimeLog{ID: id, UserID: userID, Hours: hours, LoggedAt: loggedAt}, nil
}

// ListForDay returns the user's logs within the UTC calendar day containing day.
func (s *TimeLogStore) ListForDay(userID string, day time.Time) ([]model.TimeLog, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.Query(
		`SELECT id, user_id, hours, logged_at FROM time_logs
		 WHERE user_id = ? AND logged_at >= ? AND logged_at < ?
		 ORDER BY logged_at`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}
	defer rows.Close()

	var logs []model.TimeLog
	for rows.Next() {
		var l model.TimeLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Hours, &l.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
