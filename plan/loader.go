package plan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"dailybread/core/logger"
)

// LoadError reason codes.
const (
	ReasonMissing       = "missing"
	ReasonMalformed     = "malformed"
	ReasonDuplicate     = "duplicate_day"
	ReasonNonContiguous = "non_contiguous"
)

// LoadError describes why a plan file was rejected.
type LoadError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("plan: %s:%d: %s: %v", e.Path, e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("plan: %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a reading plan from a CSV file with columns day,old_testament,new_testament.
// A header row is optional. Days must start at 1 and be contiguous.
func Load(path string) (*Plan, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Path: path, Reason: ReasonMissing, Err: err}
		}
		return nil, &LoadError{Path: path, Reason: ReasonMalformed, Err: err}
	}
	defer f.Close()

	p, err := parse(path, f)
	if err != nil {
		return nil, err
	}

	logger.PLAN.Info("plan loaded",
		slog.String("event", "plan.loaded"),
		slog.String("path", path),
		slog.Int("plan_days", p.Len()),
		slog.Duration("duration", logger.Took(start)),
	)
	return p, nil
}

func parse(path string, src io.Reader) (*Plan, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	entries := make([]Entry, 0, 365)
	seen := make(map[int]int)
	line := 0
	for {
		line++
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonMalformed, Err: err}
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != 3 {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonMalformed,
				Err: fmt.Errorf("expected 3 fields, got %d", len(rec))}
		}

		day, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonMalformed,
				Err: fmt.Errorf("bad day index %q", rec[0])}
		}
		if day < 1 {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonMalformed,
				Err: fmt.Errorf("day index %d must be positive", day)}
		}
		if prev, dup := seen[day]; dup {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonDuplicate,
				Err: fmt.Errorf("day %d already defined at line %d", day, prev)}
		}
		seen[day] = line

		e := Entry{
			Day:          day,
			OldTestament: strings.TrimSpace(rec[1]),
			NewTestament: strings.TrimSpace(rec[2]),
		}
		if e.OldTestament == "" && e.NewTestament == "" {
			return nil, &LoadError{Path: path, Line: line, Reason: ReasonMalformed,
				Err: fmt.Errorf("day %d has no passages", day)}
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, &LoadError{Path: path, Reason: ReasonMalformed, Err: errors.New("plan is empty")}
	}
	for want := 1; want <= len(entries); want++ {
		if _, ok := seen[want]; !ok {
			return nil, &LoadError{Path: path, Reason: ReasonNonContiguous,
				Err: fmt.Errorf("day %d is missing", want)}
		}
	}

	// Rows may arrive in any order; store by day.
	ordered := make([]Entry, len(entries))
	for _, e := range entries {
		ordered[e.Day-1] = e
	}
	return &Plan{entries: ordered}, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	return err != nil
}
