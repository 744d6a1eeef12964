package relay

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a store lookup matched no record.
var ErrNotFound = errors.New("record not found")

// ErrMessageNotFound indicates the source message for a registration could not
// be resolved through the chat platform.
var ErrMessageNotFound = errors.New("source message not found")

// ValidationError indicates bad input shape: a malformed time expression, a
// missing required field, or an enum value outside its closed set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation checks if an error is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ChannelUnavailableError indicates the target channel could not be resolved
// at send time.
type ChannelUnavailableError struct {
	Channel string
	Err     error
}

func (e *ChannelUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel %s unavailable: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("channel %s unavailable", e.Channel)
}

func (e *ChannelUnavailableError) Unwrap() error { return e.Err }

// IsChannelUnavailable checks if an error is a ChannelUnavailableError.
func IsChannelUnavailable(err error) bool {
	var c *ChannelUnavailableError
	return errors.As(err, &c)
}

// FetchError indicates an external page was unreachable or answered with a
// non-success status.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetch checks if an error is a FetchError.
func IsFetch(err error) bool {
	var f *FetchError
	return errors.As(err, &f)
}
