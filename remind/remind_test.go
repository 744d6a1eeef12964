package remind

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"relaybot/relay"
	"relaybot/telegram"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory remind.Store.
type fakeStore struct {
	mu        sync.Mutex
	reminders []*relay.Reminder
	scanErr   error
	markErr   error
	marked    []string
}

func (f *fakeStore) DueReminders(_ context.Context, now time.Time) ([]*relay.Reminder, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*relay.Reminder
	for _, r := range f.reminders {
		if !r.Posted && !r.ScheduledAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

func (f *fakeStore) MarkReminderPosted(_ context.Context, id string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.ID == id {
			r.Posted = true
		}
	}
	f.marked = append(f.marked, id)
	return nil
}

func reminder(id, channel string, scheduledAt time.Time) *relay.Reminder {
	return &relay.Reminder{
		ID:              id,
		TargetChannel:   channel,
		TargetMessageID: "1",
		Content:         "content for " + id,
		ScheduledAt:     scheduledAt,
		CreatedBy:       "tester",
	}
}

func TestCheckDueDeliversOnce(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{reminders: []*relay.Reminder{
		reminder("r1", "@a", now.Add(-time.Minute)),
		reminder("r2", "@b", now),
		reminder("r3", "@c", now.Add(time.Hour)),
	}}
	sink := telegram.NewMock(testLogger())
	s := New(store, sink, relay.OptimisticAtMostOnce, testLogger())
	s.now = func() time.Time { return now }

	if err := s.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	posts := sink.Posts()
	if len(posts) != 2 {
		t.Fatalf("sink received %d posts, want 2", len(posts))
	}
	if posts[0].Channel != "@a" || posts[1].Channel != "@b" {
		t.Errorf("post channels = [%s, %s], want [@a, @b]", posts[0].Channel, posts[1].Channel)
	}

	// Delivered reminders are marked and never selected again.
	if err := s.CheckDue(context.Background()); err != nil {
		t.Fatalf("second CheckDue() error = %v", err)
	}
	if got := len(sink.Posts()); got != 2 {
		t.Errorf("sink received %d posts after second scan, want still 2", got)
	}
}

func TestCheckDueFailureIsolation(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{reminders: []*relay.Reminder{
		reminder("r1", "@bad", now.Add(-time.Minute)),
		reminder("r2", "@good", now.Add(-time.Minute)),
	}}
	sink := telegram.NewMock(testLogger())
	sink.FailChannel = "@bad"
	sink.FailChannelErr = &relay.ChannelUnavailableError{Channel: "@bad", Err: errors.New("chat not found")}

	s := New(store, sink, relay.OptimisticAtMostOnce, testLogger())
	s.now = func() time.Time { return now }

	if err := s.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	posts := sink.Posts()
	if len(posts) != 1 || posts[0].Channel != "@good" {
		t.Errorf("posts = %v, want one delivery to @good", posts)
	}
	// At-most-once marks even the failed item; nothing stays due.
	if len(store.marked) != 2 {
		t.Errorf("marked %d reminders, want 2", len(store.marked))
	}
}

func TestCheckDueConfirmedBeforeMark(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{reminders: []*relay.Reminder{
		reminder("r1", "@bad", now.Add(-time.Minute)),
		reminder("r2", "@good", now.Add(-time.Minute)),
	}}
	sink := telegram.NewMock(testLogger())
	sink.FailChannel = "@bad"
	sink.FailChannelErr = errors.New("send failed")

	s := New(store, sink, relay.ConfirmedBeforeMark, testLogger())
	s.now = func() time.Time { return now }

	if err := s.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	// Only the delivered reminder is marked; the failed one stays due.
	if len(store.marked) != 1 || store.marked[0] != "r2" {
		t.Errorf("marked = %v, want [r2]", store.marked)
	}

	// The next scan retries the failed one.
	sink.FailChannel = ""
	if err := s.CheckDue(context.Background()); err != nil {
		t.Fatalf("second CheckDue() error = %v", err)
	}
	posts := sink.Posts()
	if len(posts) != 2 {
		t.Fatalf("sink received %d posts, want 2", len(posts))
	}
	if posts[1].Channel != "@bad" {
		t.Errorf("retried post channel = %q, want @bad", posts[1].Channel)
	}
}

// blockingSink parks deliveries until released.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSink) Post(context.Context, string, string, []string) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestCheckDueSkipsOverlappingTick(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{reminders: []*relay.Reminder{
		reminder("r1", "@a", now.Add(-time.Minute)),
	}}
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(store, sink, relay.OptimisticAtMostOnce, testLogger())
	s.now = func() time.Time { return now }

	done := make(chan error, 1)
	go func() { done <- s.CheckDue(context.Background()) }()
	<-sink.entered

	// The overlapping tick returns immediately without touching the store.
	if err := s.CheckDue(context.Background()); err != nil {
		t.Errorf("overlapping CheckDue() error = %v, want nil skip", err)
	}

	close(sink.release)
	if err := <-done; err != nil {
		t.Fatalf("first CheckDue() error = %v", err)
	}
	if len(store.marked) != 1 {
		t.Errorf("marked %d reminders, want 1", len(store.marked))
	}
}

func TestCheckDueScanError(t *testing.T) {
	store := &fakeStore{scanErr: errors.New("disk gone")}
	s := New(store, telegram.NewMock(testLogger()), relay.OptimisticAtMostOnce, testLogger())

	if err := s.CheckDue(context.Background()); err == nil {
		t.Error("CheckDue() with failing scan succeeded, want error")
	}
}
