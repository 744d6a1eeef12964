// Package relay contains the core domain types for the scheduled-delivery and
// announcement-relay engine.
package relay

import (
	"fmt"
	"strings"
	"time"
)

// AttachmentSeparator joins attachment locators into the single stored column.
const AttachmentSeparator = ";"

// Reminder is one message scheduled for future delivery to a channel.
type Reminder struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ID              string    `json:"id"`
	TargetChannel   string    `json:"target_channel"`
	TargetMessageID string    `json:"target_message_id"`
	Content         string    `json:"content"`
	Attachments     string    `json:"attachments"` // separator-joined locators; logically a list
	CreatedBy       string    `json:"created_by"`
	Posted          bool      `json:"posted"`
}

// AttachmentList returns the attachment locators as a slice.
func (r *Reminder) AttachmentList() []string {
	return SplitAttachments(r.Attachments)
}

// JoinAttachments encodes a locator list into the stored representation.
func JoinAttachments(list []string) string {
	return strings.Join(list, AttachmentSeparator)
}

// SplitAttachments decodes the stored representation back into a list.
// Empty input means no attachments.
func SplitAttachments(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, AttachmentSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Category classifies a relayed announcement link.
type Category string

const (
	CategoryClientUpdate Category = "client-update"
	CategoryServerUpdate Category = "server-update"
	CategoryBugFix       Category = "bug-fix"
	CategoryNews         Category = "news"
)

// Categories lists the closed set of valid categories.
func Categories() []Category {
	return []Category{CategoryClientUpdate, CategoryServerUpdate, CategoryBugFix, CategoryNews}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryClientUpdate, CategoryServerUpdate, CategoryBugFix, CategoryNews:
		return true
	default:
		return false
	}
}

// SeenLink records one announcement URL the poller has handled. Its presence
// alone marks the URL as handled, regardless of the Posted value.
type SeenLink struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Type      Category  `json:"type"`
	URL       string    `json:"url"`
	Posted    bool      `json:"posted"`
}

// DeliveryGuarantee selects when a due reminder is marked posted relative to
// the send attempt.
type DeliveryGuarantee int

const (
	// OptimisticAtMostOnce marks the reminder posted whether or not the send
	// succeeded. A transient send failure forfeits that delivery.
	OptimisticAtMostOnce DeliveryGuarantee = iota

	// ConfirmedBeforeMark marks the reminder posted only after a successful
	// send. A failed item stays due and is attempted again next scan, which
	// can duplicate a message that was sent but not acknowledged.
	ConfirmedBeforeMark
)

// ParseDeliveryGuarantee maps a config string onto a guarantee mode.
// Empty input selects OptimisticAtMostOnce.
func ParseDeliveryGuarantee(s string) (DeliveryGuarantee, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "optimistic", "at-most-once":
		return OptimisticAtMostOnce, nil
	case "confirmed", "confirmed-before-mark":
		return ConfirmedBeforeMark, nil
	default:
		return OptimisticAtMostOnce, fmt.Errorf("unknown delivery guarantee %q", s)
	}
}

func (g DeliveryGuarantee) String() string {
	if g == ConfirmedBeforeMark {
		return "confirmed-before-mark"
	}
	return "at-most-once"
}
