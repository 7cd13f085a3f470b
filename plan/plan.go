// Package plan holds the reading plan: an ordered list of daily passages
// loaded once at startup and treated as immutable afterwards.
package plan

import (
	"fmt"
	"strings"
)

// Entry is a single day of the reading plan.
type Entry struct {
	Day          int
	OldTestament string
	NewTestament string
}

// Reference renders the combined passage reference for the day,
// e.g. "Gen 1-3; Matt 1". Either part may be empty on rest days.
func (e Entry) Reference() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(e.OldTestament); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(e.NewTestament); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

// Plan is the full reading plan, indexed by day starting at 1.
type Plan struct {
	entries []Entry
}

// Len reports the number of days in the plan.
func (p *Plan) Len() int { return len(p.entries) }

// Entry returns the entry for the given day (1-based).
func (p *Plan) Entry(day int) (Entry, error) {
	if day < 1 || day > len(p.entries) {
		return Entry{}, fmt.Errorf("plan: day %d out of range 1..%d", day, len(p.entries))
	}
	return p.entries[day-1], nil
}

// Entries returns a copy of all entries in day order.
func (p *Plan) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}
