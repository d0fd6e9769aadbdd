package model

import "time"

type TimeLog struct {
	ID       int64     `json:"id"`
	UserID   string    `json:"user_id"`
	Hours    float64   `json:"hours"`
	LoggedAt time.Time `json:"logged_at"`
}

// TotalHours sums the hours of logs.
func TotalHours(logs []TimeLog) float64 {
	var total float64
	for _, l := range logs {
		total += l.Hours
	}
	return total
}
