package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadValidPlan(t *testing.T) {
	path := writePlan(t, "day,old_testament,new_testament\n1,Gen 1-3,Matt 1\n2,Gen 4-6,Matt 2\n3,Gen 7-9,Matt 3\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, want 3", p.Len())
	}
	e, err := p.Entry(2)
	if err != nil {
		t.Fatalf("Entry(2): %v", err)
	}
	if e.OldTestament != "Gen 4-6" || e.NewTestament != "Matt 2" {
		t.Fatalf("Entry(2) = %+v", e)
	}
	if got := e.Reference(); got != "Gen 4-6; Matt 2" {
		t.Fatalf("Reference = %q", got)
	}
}

func TestLoadWithoutHeader(t *testing.T) {
	path := writePlan(t, "1,Gen 1-3,Matt 1\n2,Gen 4-6,Matt 2\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
}

func TestLoadOutOfOrderRows(t *testing.T) {
	path := writePlan(t, "2,Gen 4-6,Matt 2\n1,Gen 1-3,Matt 1\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, _ := p.Entry(1)
	if e.OldTestament != "Gen 1-3" {
		t.Fatalf("Entry(1) = %+v", e)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	var le *LoadError
	if !errors.As(err, &le) || le.Reason != ReasonMissing {
		t.Fatalf("err = %v, want LoadError(missing)", err)
	}
}

func TestLoadRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
		reason  string
	}{
		{"bad day index", "x,Gen 1,Matt 1\n", ReasonMalformed},
		{"too few fields", "1,Gen 1\n", ReasonMalformed},
		{"empty passages", "1,,\n", ReasonMalformed},
		{"duplicate day", "1,Gen 1,Matt 1\n1,Gen 2,Matt 2\n", ReasonDuplicate},
		{"gap in days", "1,Gen 1,Matt 1\n3,Gen 3,Matt 3\n", ReasonNonContiguous},
		{"does not start at 1", "2,Gen 2,Matt 2\n3,Gen 3,Matt 3\n", ReasonNonContiguous},
		{"empty file", "", ReasonMalformed},
		{"zero day", "0,Gen 1,Matt 1\n", ReasonMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writePlan(t, tc.content))
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if le.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", le.Reason, tc.reason)
			}
		})
	}
}

func TestEntryOutOfRange(t *testing.T) {
	p, err := Load(writePlan(t, "1,Gen 1,Matt 1\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := p.Entry(0); err == nil {
		t.Fatal("Entry(0) should fail")
	}
	if _, err := p.Entry(2); err == nil {
		t.Fatal("Entry(2) should fail")
	}
}

func TestReferenceRestDay(t *testing.T) {
	e := Entry{Day: 7, OldTestament: "Ps 1", NewTestament: ""}
	if got := e.Reference(); got != "Ps 1" {
		t.Fatalf("Reference = %q", got)
	}
}
