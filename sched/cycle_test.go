package sched

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"dailybread/dispatch"
	"dailybread/plan"
	"dailybread/subscriber"
)

type recordingTransport struct {
	mu    sync.Mutex
	texts []string
	fail  int
}

func (r *recordingTransport) SendMessage(chatID int64, text string, markdownV2 bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return &tele.Error{Code: 502, Description: "bad gateway"}
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingTransport) SendPoll(chatID int64, question string, options []string) error {
	return nil
}

func (r *recordingTransport) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func genesisPlan(t *testing.T) *plan.Plan {
	t.Helper()
	content := "1,Genesis 1-3,\n2,Genesis 4-7,\n"
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	p, err := plan.Load(path)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	return p
}

// runTick runs one scheduler pass against a fresh dispatcher and waits for
// all enqueued jobs to complete.
func runTick(t *testing.T, st subscriber.Store, p *plan.Plan, tr dispatch.Transport, now time.Time) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := dispatch.New(st, p, tr, dispatch.Options{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond})
	d.Start(ctx)
	New(st, p, d, Options{SendTime: "07:00", Location: time.UTC}).Tick(ctx, now)
	d.Stop()
}

func TestTwoTickProgression(t *testing.T) {
	ctx := context.Background()
	st := subscriber.NewMemoryStore()
	p := genesisPlan(t)
	tr := &recordingTransport{}
	st.Upsert(ctx, subscriber.New(1, "en", time.Now()))

	day1 := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	runTick(t, st, p, tr, day1)
	sub, _ := st.Get(ctx, 1)
	if sub.CurrentDay != 2 {
		t.Fatalf("after tick 1: %+v", sub)
	}

	// A second pass within the same day must not send again.
	runTick(t, st, p, tr, day1.Add(2*time.Hour))
	if got := tr.sent(); len(got) != 1 {
		t.Fatalf("same-day repeat tick sent again: %v", got)
	}

	runTick(t, st, p, tr, day2)
	got := tr.sent()
	if len(got) != 2 {
		t.Fatalf("sent %d messages, want 2: %v", len(got), got)
	}
	if !strings.Contains(got[0], `Genesis 1\-3`) || !strings.Contains(got[1], `Genesis 4\-7`) {
		t.Fatalf("wrong passages in order: %v", got)
	}
}

func TestFailedTickRedeliversSameEntry(t *testing.T) {
	ctx := context.Background()
	st := subscriber.NewMemoryStore()
	p := genesisPlan(t)
	tr := &recordingTransport{fail: 2} // first tick fails initial try and its retry
	st.Upsert(ctx, subscriber.New(1, "en", time.Now()))

	day1 := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)

	runTick(t, st, p, tr, day1)
	sub, _ := st.Get(ctx, 1)
	if sub.CurrentDay != 1 || sub.LastSentDate != "" {
		t.Fatalf("failed tick moved progress: %+v", sub)
	}

	runTick(t, st, p, tr, day1.Add(time.Hour))
	got := tr.sent()
	if len(got) != 1 || !strings.Contains(got[0], `Genesis 1\-3`) {
		t.Fatalf("retry tick should send the unadvanced entry: %v", got)
	}
	sub, _ = st.Get(ctx, 1)
	if sub.CurrentDay != 2 {
		t.Fatalf("after recovery: %+v", sub)
	}
}
