package helpers

import (
	"strings"
	"time"
)

var clockLayouts = []string{
	"15:04",
	"15.04",
	"3:04pm",
	"3:04 pm",
}

// ParseClock parses a wall-clock time entered by a user, accepting a few
// common variants ("7:30", "07:30", "7.30", "7:30pm"). It returns the
// normalized "HH:MM" form and true on success.
func ParseClock(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}
