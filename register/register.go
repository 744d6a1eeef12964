// Package register validates reminder requests and persists them.
package register

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relaybot/relay"
)

// Time expressions accepted for scheduling, beyond the literal "now".
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Store persists registered reminders.
type Store interface {
	InsertReminder(ctx context.Context, r *relay.Reminder) (string, error)
	DeleteReminder(ctx context.Context, id string) (bool, error)
}

// SourceMessage is the resolved message a reminder rebroadcasts. Content and
// attachments are copied at registration time, never re-fetched.
type SourceMessage struct {
	Content     string
	Attachments []string
	Link        string
	Author      string
}

// MessageSource resolves a message reference through the chat platform.
type MessageSource interface {
	Message(ctx context.Context, channel, messageID string) (*SourceMessage, error)
}

// Request is one inbound registration.
type Request struct {
	Channel     string
	TimeExpr    string
	MessageID   string
	RequestedBy string
}

// Confirmation reports a successful registration back to the user.
type Confirmation struct {
	ReminderID    string
	MessageLink   string
	TargetChannel string
	ScheduledAt   time.Time
	Estimate      string
}

// Text renders the user-facing confirmation.
func (c *Confirmation) Text() string {
	return fmt.Sprintf("This message (%s) will be posted to %s around %s.\nReminder id: %s (undo with /cancel %s)",
		c.MessageLink, c.TargetChannel, c.Estimate, c.ReminderID, c.ReminderID)
}

// Registrar handles reminder registration and cancellation.
type Registrar struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a registrar.
func New(store Store, logger *slog.Logger) *Registrar {
	return &Registrar{store: store, logger: logger, now: time.Now}
}

// ParseTimeExpr resolves a scheduling expression. The literal "now" schedules
// immediately; anything else must match one of the strict layouts.
func ParseTimeExpr(expr string, now time.Time) (time.Time, error) {
	if expr == "now" {
		return now, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, expr, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &relay.ValidationError{
		Field:  "time",
		Reason: fmt.Sprintf("%q does not match YYYY-MM-DD HH:MM[:SS] (or the literal \"now\")", expr),
	}
}

// Register validates req, resolves its source message, and persists a new
// reminder. Validation and not-found errors surface to the requesting user;
// the store is untouched on validation failure.
func (g *Registrar) Register(ctx context.Context, src MessageSource, req Request) (*Confirmation, error) {
	now := g.now()

	scheduledAt, err := ParseTimeExpr(req.TimeExpr, now)
	if err != nil {
		return nil, err
	}

	msg, err := src.Message(ctx, req.Channel, req.MessageID)
	if err != nil {
		return nil, err
	}

	reminder := &relay.Reminder{
		TargetChannel:   req.Channel,
		TargetMessageID: req.MessageID,
		Content:         msg.Content,
		Attachments:     relay.JoinAttachments(msg.Attachments),
		ScheduledAt:     scheduledAt,
		CreatedBy:       req.RequestedBy,
	}
	id, err := g.store.InsertReminder(ctx, reminder)
	if err != nil {
		return nil, err
	}

	g.logger.Info("reminder registered",
		"id", id, "channel", req.Channel, "scheduled_at", scheduledAt.Format(time.RFC3339), "by", req.RequestedBy)

	return &Confirmation{
		ReminderID:    id,
		MessageLink:   msg.Link,
		TargetChannel: req.Channel,
		ScheduledAt:   scheduledAt,
		Estimate:      estimate(scheduledAt, now),
	}, nil
}

// Cancel removes a pending reminder by id. An unknown id is a clean
// "nothing to cancel", not an error.
func (g *Registrar) Cancel(ctx context.Context, id string) (bool, error) {
	deleted, err := g.store.DeleteReminder(ctx, id)
	if err != nil {
		return false, err
	}
	g.logger.Info("reminder cancel", "id", id, "deleted", deleted)
	return deleted, nil
}

// estimate humanizes the expected post time. A schedule already in the past
// is picked up by the next scan cycle, so it reads "within a minute".
func estimate(scheduledAt, now time.Time) string {
	if !scheduledAt.After(now) {
		return "within a minute"
	}
	return scheduledAt.Format("Mon, Jan 2 2006 15:04")
}
