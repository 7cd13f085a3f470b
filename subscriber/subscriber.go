// Package subscriber tracks enrolled chats and their progress through the
// reading plan.
package subscriber

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a chat has no subscriber record.
var ErrNotFound = errors.New("subscriber: not found")

// Subscriber is one enrolled chat. CurrentDay is the next unread plan day
// (1-based); LastSentDay/LastSentDate record the most recent confirmed send.
type Subscriber struct {
	ChatID       int64  `db:"chat_id"`
	CurrentDay   int    `db:"current_day"`
	Active       bool   `db:"active"`
	Language     string `db:"language"`
	SendTime     string `db:"send_time"` // "HH:MM" override, empty = global default
	EnrolledAt   string `db:"enrolled_at"`
	LastSentDay  int    `db:"last_sent_day"`
	LastSentDate string `db:"last_sent_date"` // "2006-01-02" in the schedule timezone
}

// New returns a fresh subscriber positioned at day 1.
func New(chatID int64, language string, now time.Time) *Subscriber {
	return &Subscriber{
		ChatID:     chatID,
		CurrentDay: 1,
		Active:     true,
		Language:   language,
		EnrolledAt: now.UTC().Format(time.RFC3339),
	}
}

// Completed reports whether the subscriber has read past the end of a plan
// with the given number of days.
func (s *Subscriber) Completed(planDays int) bool {
	return s.CurrentDay > planDays
}

// SentOn reports whether the most recent confirmed send happened on date
// (formatted "2006-01-02").
func (s *Subscriber) SentOn(date string) bool {
	return s.LastSentDate != "" && s.LastSentDate == date
}
