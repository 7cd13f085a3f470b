package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "dailybread/core/config"
	"dailybread/plan"
	"dailybread/subscriber"
)

type sentMsg struct {
	chatID     int64
	text       string
	markdownV2 bool
}

type fakeTransport struct {
	mu       sync.Mutex
	msgs     []sentMsg
	polls    []string
	failures int // fail this many sends before succeeding
	failWith error
}

func (f *fakeTransport) SendMessage(chatID int64, text string, markdownV2 bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return f.failWith
	}
	f.msgs = append(f.msgs, sentMsg{chatID, text, markdownV2})
	return nil
}

func (f *fakeTransport) SendPoll(chatID int64, question string, options []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, question)
	return nil
}

func (f *fakeTransport) sent() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.msgs...)
}

func testPlan(t *testing.T, days int) *plan.Plan {
	t.Helper()
	refs := []string{"Gen 1-3", "Gen 4-6", "Gen 7-9", "Gen 10-12"}
	var b strings.Builder
	for i := 1; i <= days; i++ {
		fmt.Fprintf(&b, "%d,%s,Matt %d\n", i, refs[(i-1)%len(refs)], i)
	}
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	p, err := plan.Load(path)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	return p
}

func runOne(t *testing.T, d *Dispatcher, job Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Start(ctx)
	if !d.Enqueue(job) {
		t.Fatal("Enqueue rejected job")
	}
	d.Stop()
}

func jobFor(t *testing.T, st subscriber.Store, p *plan.Plan, chatID int64) Job {
	t.Helper()
	sub, err := st.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	entry, err := p.Entry(sub.CurrentDay)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	return Job{Sub: *sub, Entry: entry, Date: "2026-08-29", TickID: "t1"}
}

func TestDeliverSendsAndAdvances(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	tr := &fakeTransport{}
	st.Upsert(context.Background(), subscriber.New(10, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 10))

	msgs := tr.sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if !msgs[0].markdownV2 || !strings.Contains(msgs[0].text, `Gen 1\-3`) {
		t.Fatalf("reminder = %+v", msgs[0])
	}

	sub, _ := st.Get(context.Background(), 10)
	if sub.CurrentDay != 2 || sub.LastSentDate != "2026-08-29" || sub.LastSentDay != 1 {
		t.Fatalf("after deliver: %+v", sub)
	}
	if sent, failed := d.Stats(); sent != 1 || failed != 0 {
		t.Fatalf("stats = %d, %d", sent, failed)
	}
}

func TestFailedSendKeepsProgress(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	tr := &fakeTransport{failures: 100, failWith: &tele.Error{Code: 400, Description: "chat not found"}}
	st.Upsert(context.Background(), subscriber.New(11, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 11))

	sub, _ := st.Get(context.Background(), 11)
	if sub.CurrentDay != 1 || sub.LastSentDate != "" {
		t.Fatalf("progress moved on failed send: %+v", sub)
	}
	if sent, failed := d.Stats(); sent != 0 || failed != 1 {
		t.Fatalf("stats = %d, %d", sent, failed)
	}
}

func TestRetryOnServerError(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	tr := &fakeTransport{failures: 2, failWith: &tele.Error{Code: 502, Description: "bad gateway"}}
	st.Upsert(context.Background(), subscriber.New(12, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 12))

	if len(tr.sent()) != 1 {
		t.Fatalf("retryable error was not retried to success")
	}
	sub, _ := st.Get(context.Background(), 12)
	if sub.CurrentDay != 2 {
		t.Fatalf("after retry success: %+v", sub)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	tr := &fakeTransport{failures: 1, failWith: &tele.Error{Code: 403, Description: "bot was blocked"}}
	d := New(subscriber.NewMemoryStore(), testPlan(t, 1), tr, Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	err := d.sendWithRetry(context.Background(), 1, "hi", false)
	if err == nil {
		t.Fatal("want error")
	}
	if tr.failures != 0 || len(tr.sent()) != 0 {
		t.Fatalf("403 should consume exactly one attempt: failures=%d sent=%d", tr.failures, len(tr.sent()))
	}
}

func TestCompletionDeactivates(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 1)
	tr := &fakeTransport{}
	st.Upsert(context.Background(), subscriber.New(13, "de", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, OnComplete: coreconfig.OnCompleteDeactivate, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 13))

	msgs := tr.sent()
	if len(msgs) != 2 {
		t.Fatalf("want reminder + completion, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].text, "abgeschlossen") {
		t.Fatalf("completion text = %q", msgs[1].text)
	}
	sub, _ := st.Get(context.Background(), 13)
	if sub.Active {
		t.Fatalf("subscriber still active after completion: %+v", sub)
	}
}

func TestCompletionResetPolicy(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 1)
	tr := &fakeTransport{}
	st.Upsert(context.Background(), subscriber.New(14, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, OnComplete: coreconfig.OnCompleteReset, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 14))

	sub, _ := st.Get(context.Background(), 14)
	if !sub.Active || sub.CurrentDay != 1 || sub.LastSentDate != "" {
		t.Fatalf("reset policy not applied: %+v", sub)
	}
}

func TestFollowUpPoll(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	tr := &fakeTransport{}
	st.Upsert(context.Background(), subscriber.New(15, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, SendPoll: true, RetryBackoff: time.Millisecond})
	runOne(t, d, jobFor(t, st, p, 15))

	if len(tr.polls) != 1 || tr.polls[0] != "Have you read the Bible today?" {
		t.Fatalf("polls = %v", tr.polls)
	}
}

func TestEnqueueInflightDedupe(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	st.Upsert(context.Background(), subscriber.New(16, "en", time.Now()))

	// No workers started: the first job stays in flight.
	d := New(st, p, &fakeTransport{}, Options{Workers: 1})
	job := jobFor(t, st, p, 16)
	if !d.Enqueue(job) {
		t.Fatal("first Enqueue rejected")
	}
	if d.Enqueue(job) {
		t.Fatal("second Enqueue for same chat accepted while in flight")
	}
}

func TestStaleJobDoesNotDoubleAdvance(t *testing.T) {
	st := subscriber.NewMemoryStore()
	p := testPlan(t, 3)
	tr := &fakeTransport{}
	st.Upsert(context.Background(), subscriber.New(17, "en", time.Now()))

	d := New(st, p, tr, Options{Workers: 1, RetryBackoff: time.Millisecond})
	job := jobFor(t, st, p, 17)

	// Another writer advanced the day between snapshot and delivery.
	if ok, _ := st.Advance(context.Background(), 17, 1, "2026-08-29"); !ok {
		t.Fatal("setup advance failed")
	}
	runOne(t, d, job)

	sub, _ := st.Get(context.Background(), 17)
	if sub.CurrentDay != 2 {
		t.Fatalf("stale job advanced the day again: %+v", sub)
	}
}
