package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"relaybot/register"
	"relaybot/relay"
	"relaybot/telegram"
)

const remindUsage = "Usage: reply to the message you want rebroadcast with\n" +
	"/remind <channel> <time>\n" +
	"where <time> is YYYY-MM-DD HH:MM[:SS] or \"now\"."

// registerBotHandlers wires the registration front-end onto the chat client.
func registerBotHandlers(bot *telegram.Bot, registrar *register.Registrar, logger *slog.Logger) {
	bot.Handle("/remind", func(c tele.Context) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send(remindUsage)
		}
		channel := args[0]
		// The time expression may contain a space ("2030-01-01 10:00").
		timeExpr := strings.Join(args[1:], " ")

		src := replySource{message: c.Message().ReplyTo}
		req := register.Request{
			Channel:     channel,
			TimeExpr:    timeExpr,
			MessageID:   src.messageID(),
			RequestedBy: senderID(c),
		}

		conf, err := registrar.Register(context.Background(), src, req)
		if err != nil {
			return c.Send(userErrorText(err, logger))
		}
		return c.Send(conf.Text())
	})

	bot.Handle("/cancel", func(c tele.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /cancel <reminder-id>")
		}
		deleted, err := registrar.Cancel(context.Background(), args[0])
		if err != nil {
			return c.Send(userErrorText(err, logger))
		}
		if !deleted {
			return c.Send("Nothing to cancel: no reminder with that id.")
		}
		return c.Send("Reminder cancelled.")
	})
}

// replySource resolves the source message from the reply target of the
// invoking command.
type replySource struct {
	message *tele.Message
}

func (s replySource) messageID() string {
	if s.message == nil {
		return ""
	}
	return strconv.Itoa(s.message.ID)
}

// Message copies content and attachment locators out of the replied-to
// message. Invoking the command without a reply is the "message not found"
// case: there is no source message to rebroadcast.
func (s replySource) Message(_ context.Context, _, _ string) (*register.SourceMessage, error) {
	m := s.message
	if m == nil {
		return nil, relay.ErrMessageNotFound
	}

	content := m.Text
	if content == "" {
		content = m.Caption
	}

	// File ids are type-bound at send time, so the locator records the kind.
	var attachments []string
	if m.Photo != nil {
		attachments = append(attachments, telegram.PhotoLocator(m.Photo.FileID))
	}
	if m.Document != nil {
		attachments = append(attachments, telegram.DocumentLocator(m.Document.FileID))
	}

	author := ""
	if m.Sender != nil {
		author = strconv.FormatInt(m.Sender.ID, 10)
	}

	return &register.SourceMessage{
		Content:     content,
		Attachments: attachments,
		Link:        telegram.MessageLink(m.Chat, m.ID),
		Author:      author,
	}, nil
}

func senderID(c tele.Context) string {
	if c.Sender() == nil {
		return ""
	}
	return strconv.FormatInt(c.Sender().ID, 10)
}

// userErrorText maps front-end errors onto the formatted messages users see.
// Anything unexpected is logged and answered generically.
func userErrorText(err error, logger *slog.Logger) string {
	switch {
	case relay.IsValidation(err):
		return "The date-time format is not valid.\nUse YYYY-MM-DD HH:MM[:SS], or \"now\" to post immediately."
	case errors.Is(err, relay.ErrMessageNotFound):
		return "The specified message does not exist.\nReply to the message you want rebroadcast when invoking /remind."
	default:
		logger.Error("registration failed", "error", err)
		return "Something went wrong. Please try again later."
	}
}
