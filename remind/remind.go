// Package remind scans the store for due reminders and delivers them.
package remind

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"relaybot/relay"
)

// Store provides the due-item scan and the posted mark.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]*relay.Reminder, error)
	MarkReminderPosted(ctx context.Context, id string) error
}

// Sink delivers reminder messages to a channel.
type Sink interface {
	Post(ctx context.Context, channel, text string, attachments []string) error
}

// Scheduler runs the recurring due-item scan. A reminder moves
// pending -> due -> delivered; once marked posted it is never selected again.
type Scheduler struct {
	store     Store
	sink      Sink
	guarantee relay.DeliveryGuarantee
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool
}

// New creates a scheduler with the given delivery guarantee.
func New(store Store, sink Sink, guarantee relay.DeliveryGuarantee, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		sink:      sink,
		guarantee: guarantee,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckDue runs one scan cycle: every due, unposted reminder gets exactly one
// delivery attempt, each processed in isolation. A tick that finds the
// previous tick still in flight is skipped.
func (s *Scheduler) CheckDue(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("previous scan still running, skipping tick")
		return nil
	}
	defer s.running.Store(false)

	now := s.now()
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		return fmt.Errorf("scan due reminders: %w", err)
	}
	s.logger.Info("checking reminders", "due", len(due))

	for _, r := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.deliver(ctx, r)
	}
	return nil
}

// deliver posts one reminder and marks it. Failures are logged, never raised:
// one bad reminder must not block the rest of the batch or the timer.
func (s *Scheduler) deliver(ctx context.Context, r *relay.Reminder) {
	sendErr := s.sink.Post(ctx, r.TargetChannel, r.Content, r.AttachmentList())
	if sendErr != nil {
		s.logger.Warn("reminder send failed", "id", r.ID, "channel", r.TargetChannel, "error", sendErr)
	}

	if sendErr != nil && s.guarantee == relay.ConfirmedBeforeMark {
		// Leave it unposted; the next scan picks it up again.
		s.logger.Info("leaving reminder due for next scan", "id", r.ID)
		return
	}

	if err := s.store.MarkReminderPosted(ctx, r.ID); err != nil {
		s.logger.Error("failed to mark reminder posted", "id", r.ID, "error", err)
		return
	}

	if sendErr == nil {
		s.logger.Info("reminder posted", "id", r.ID, "channel", r.TargetChannel)
	}
}
