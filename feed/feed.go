// Package feed polls external announcement pages and relays unseen links to a
// channel exactly once.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"relaybot/relay"
)

// Source is one configured announcement page with its classification rules.
type Source struct {
	Name    string
	PageURL string
	Rules   []Rule
}

// Fetcher fetches a page and extracts its links.
type Fetcher interface {
	Links(ctx context.Context, pageURL string) ([]string, error)
}

// Store persists which links have been handled.
type Store interface {
	SeenLinkByURL(ctx context.Context, url string) (*relay.SeenLink, error)
	InsertSeenLink(ctx context.Context, l *relay.SeenLink) (string, error)
}

// Sink delivers relay messages to a channel.
type Sink interface {
	Post(ctx context.Context, channel, text string, attachments []string) error
}

// Poller checks announcement sources and relays new links.
type Poller struct {
	fetcher Fetcher
	store   Store
	sink    Sink
	channel string
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a poller that relays into channel.
func New(fetcher Fetcher, store Store, sink Sink, channel string, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		sink:     sink,
		channel:  channel,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// CheckSource runs one poll cycle for src: fetch, classify, dedup against the
// store, relay, mark seen. A fetch failure aborts this source's cycle only;
// per-link failures are logged and isolated. If the previous cycle for this
// source is still running, the tick is skipped.
func (p *Poller) CheckSource(ctx context.Context, src Source) error {
	if !p.begin(src.Name) {
		p.logger.Info("previous cycle still running, skipping tick", "source", src.Name)
		return nil
	}
	defer p.end(src.Name)

	links, err := p.fetcher.Links(ctx, src.PageURL)
	if err != nil {
		return fmt.Errorf("check %s: %w", src.Name, err)
	}

	var relayed, skipped int
	handled := make(map[string]bool, len(links))
	for _, link := range links {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		category, ok := Classify(src.Rules, link)
		if !ok {
			continue
		}
		// A page can list the same announcement more than once.
		if handled[link] {
			continue
		}
		handled[link] = true

		seen, err := p.store.SeenLinkByURL(ctx, link)
		if err != nil && !errors.Is(err, relay.ErrNotFound) {
			p.logger.Warn("seen-link lookup failed", "source", src.Name, "url", link, "error", err)
			continue
		}
		if seen != nil {
			p.logger.Debug("link already handled", "source", src.Name, "url", link)
			skipped++
			continue
		}

		p.relayLink(ctx, src, link, category)
		relayed++
	}

	p.logger.Info("source checked", "source", src.Name, "links", len(links), "relayed", relayed, "already_seen", skipped)
	return nil
}

// relayLink posts one new link and unconditionally marks it seen. The mark is
// written even when the send fails: a link is never retried, trading delivery
// for no duplicate spam.
func (p *Poller) relayLink(ctx context.Context, src Source, link string, category relay.Category) {
	msg := "#" + string(category) + "\n" + link

	if err := p.sink.Post(ctx, p.channel, msg, nil); err != nil {
		p.logger.Warn("relay send failed, link will not be retried",
			"source", src.Name, "url", link, "category", string(category), "error", err)
	}

	if _, err := p.store.InsertSeenLink(ctx, &relay.SeenLink{Type: category, URL: link, Posted: true}); err != nil {
		p.logger.Error("failed to persist seen link", "source", src.Name, "url", link, "error", err)
		return
	}

	p.logger.Info("link relayed", "source", src.Name, "url", link, "category", string(category))
}

func (p *Poller) begin(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[name] {
		return false
	}
	p.inFlight[name] = true
	return true
}

func (p *Poller) end(name string) {
	p.mu.Lock()
	delete(p.inFlight, name)
	p.mu.Unlock()
}
