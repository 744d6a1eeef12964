package telegram

import (
	"context"
	"log/slog"
	"sync"
)

// MockPost records one delivery through the mock sink.
type MockPost struct {
	Channel     string
	Text        string
	Attachments []string
}

// Mock is a delivery sink for tests and local development. It records posts
// and can be scripted to fail.
type Mock struct {
	logger *slog.Logger

	mu    sync.Mutex
	posts []MockPost

	// Fail, when set, is returned from every Post call.
	Fail error
	// FailChannel, when set, fails posts to that channel only.
	FailChannel string
	// FailChannelErr is the error returned for FailChannel posts.
	FailChannelErr error
}

// NewMock creates a mock sink.
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{logger: logger}
}

// Post records the delivery instead of sending it.
func (m *Mock) Post(_ context.Context, channel, text string, attachments []string) error {
	if m.Fail != nil {
		return m.Fail
	}
	if m.FailChannel != "" && channel == m.FailChannel {
		return m.FailChannelErr
	}
	m.mu.Lock()
	m.posts = append(m.posts, MockPost{Channel: channel, Text: text, Attachments: attachments})
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.Info("MOCK POST", "channel", channel, "text_length", len(text), "attachments", len(attachments))
	}
	return nil
}

// Posts returns a copy of everything recorded so far.
func (m *Mock) Posts() []MockPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPost, len(m.posts))
	copy(out, m.posts)
	return out
}
