// Package telegram delivers relay messages through the chat platform.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"relaybot/relay"
)

// Config holds chat platform settings.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// SendRate limits outbound posts per second. Zero selects a conservative
	// default; chat platforms throttle bots that exceed theirs.
	SendRate float64
}

// Bot wraps the chat platform client. It resolves channels through an
// in-memory cache and sends messages with optional attachments.
type Bot struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	logger  *slog.Logger

	mu    sync.Mutex
	chats map[string]*tele.Chat
}

// Connect builds the bot client. The platform is contacted once to verify the
// token, so this can fail transiently at startup.
func Connect(cfg Config, logger *slog.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = 1
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("connect bot: %w", err)
	}

	logger.Info("bot connected", "username", b.Me.Username)
	return &Bot{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(sendRate), 1),
		logger:  logger,
		chats:   make(map[string]*tele.Chat),
	}, nil
}

// Handle registers a command handler on the underlying client.
func (b *Bot) Handle(endpoint string, h tele.HandlerFunc) {
	b.bot.Handle(endpoint, h)
}

// Start begins consuming inbound updates. It blocks until Stop.
func (b *Bot) Start() {
	b.bot.Start()
}

// Stop halts the update poller.
func (b *Bot) Stop() {
	b.bot.Stop()
}

// Post sends text with optional attachments to the named channel. Attachment
// locators are resolved before anything is sent; one bad locator fails the
// whole call. There is no retry here; retry policy belongs to the caller.
func (b *Bot) Post(ctx context.Context, channel, text string, attachments []string) error {
	chat, err := b.resolve(channel)
	if err != nil {
		return err
	}

	media := make(tele.Album, 0, len(attachments))
	for _, locator := range attachments {
		f, err := attachmentFile(locator)
		if err != nil {
			return fmt.Errorf("resolve attachment %q: %w", locator, err)
		}
		media = append(media, f)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	switch len(media) {
	case 0:
		_, err = b.bot.Send(chat, text)
	case 1:
		setCaption(media[0], text)
		_, err = b.bot.Send(chat, media[0])
	default:
		setCaption(media[0], text)
		_, err = b.bot.SendAlbum(chat, media)
	}
	if err != nil {
		return fmt.Errorf("send to %s: %w", channel, err)
	}

	b.logger.Info("message posted", "channel", channel, "attachments", len(attachments))
	return nil
}

// resolve maps a channel identifier onto a chat handle, caching hits. A
// channel that cannot be resolved fails with ChannelUnavailableError.
func (b *Bot) resolve(channel string) (*tele.Chat, error) {
	b.mu.Lock()
	chat, ok := b.chats[channel]
	b.mu.Unlock()
	if ok {
		return chat, nil
	}

	var (
		resolved *tele.Chat
		err      error
	)
	if strings.HasPrefix(channel, "@") {
		resolved, err = b.bot.ChatByUsername(channel)
	} else {
		var id int64
		id, err = strconv.ParseInt(channel, 10, 64)
		if err == nil {
			resolved, err = b.bot.ChatByID(id)
		}
	}
	if err != nil || resolved == nil {
		return nil, &relay.ChannelUnavailableError{Channel: channel, Err: err}
	}

	b.mu.Lock()
	b.chats[channel] = resolved
	b.mu.Unlock()
	return resolved, nil
}

// PhotoLocator builds the stored locator for a photo file id.
func PhotoLocator(fileID string) string { return "photo:" + fileID }

// DocumentLocator builds the stored locator for a document file id.
func DocumentLocator(fileID string) string { return "document:" + fileID }

// attachmentFile maps a stored locator onto a sendable file. Locators are
// URLs (relay sources) or type-prefixed platform file ids (rebroadcast
// uploads). File ids are type-bound: a document id sent as a photo is
// rejected by the platform, so the locator carries the kind.
func attachmentFile(locator string) (tele.Inputtable, error) {
	locator = strings.TrimSpace(locator)
	switch {
	case locator == "":
		return nil, fmt.Errorf("empty locator")
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return &tele.Photo{File: tele.FromURL(locator)}, nil
	case strings.HasPrefix(locator, "photo:"):
		return &tele.Photo{File: tele.File{FileID: strings.TrimPrefix(locator, "photo:")}}, nil
	case strings.HasPrefix(locator, "document:"):
		return &tele.Document{File: tele.File{FileID: strings.TrimPrefix(locator, "document:")}}, nil
	default:
		// A bare file id carries no type information; photo is the common case.
		return &tele.Photo{File: tele.File{FileID: locator}}, nil
	}
}

// setCaption attaches the message text to a media item. Caption is a field on
// each concrete media type, not part of a shared interface.
func setCaption(media tele.Inputtable, text string) {
	switch f := media.(type) {
	case *tele.Photo:
		f.Caption = text
	case *tele.Document:
		f.Caption = text
	}
}

// MessageLink builds a best-effort deep link back to a message.
func MessageLink(chat *tele.Chat, messageID int) string {
	if chat == nil {
		return ""
	}
	if chat.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chat.Username, messageID)
	}
	id := strconv.FormatInt(chat.ID, 10)
	id = strings.TrimPrefix(id, "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}
