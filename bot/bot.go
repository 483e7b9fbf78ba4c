// Package bot connects Telegram chats to the qBittorrent commands and the
// add/delete conversation flows.
//
// Updates arrive by long polling, so no public URL or webhook is needed.
package bot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/kyubik/qbitbot/access"
	"github.com/kyubik/qbitbot/conversation"
	"github.com/kyubik/qbitbot/filter"
	"github.com/kyubik/qbitbot/qbittorrent"
)

const (
	pollTimeout     = 30
	chatBacklog     = 16
	chatIdleTimeout = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// API is the part of the Telegram Bot API the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Torrents is the qBittorrent client as seen by the bot.
type Torrents interface {
	conversation.Torrents
	List(ctx context.Context, group string) (iter.Seq[string], error)
	Contents(ctx context.Context, name string) (iter.Seq[qbittorrent.FileEntry], error)
	Stats(ctx context.Context) (*qbittorrent.TransferStats, error)
	Pause(ctx context.Context, name string) error
	Resume(ctx context.Context, name string) error
	Torrents(ctx context.Context) ([]*qbittorrent.TorrentInfo, error)
}

// Bot is the Telegram front-end
type Bot struct {
	api       API
	guard     *access.Guard
	torrents  Torrents
	flows     *conversation.Engine
	finder    *filter.Finder
	formatter *qbittorrent.MessageFormatter
	queues    *chatQueues
	logger    zerolog.Logger
}

// NewBot authorizes token against Telegram and creates the bot.
func NewBot(token string, guard *access.Guard, torrents Torrents, finder *filter.Finder, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating Telegram bot: %w", err)
	}

	logger.Info().Str("bot", api.Self.UserName).Msg("Telegram bot authorized")

	return newBot(api, guard, torrents, finder, logger), nil
}

func newBot(api API, guard *access.Guard, torrents Torrents, finder *filter.Finder, logger zerolog.Logger) *Bot {
	return &Bot{
		api:       api,
		guard:     guard,
		torrents:  torrents,
		flows:     conversation.NewEngine(torrents, logger),
		finder:    finder,
		formatter: qbittorrent.NewMessageFormatter(time.Local),
		queues:    newChatQueues(chatBacklog, chatIdleTimeout),
		logger:    logger.With().Str("component", "bot").Logger(),
	}
}

// ActiveFlows returns the number of chats inside a conversation flow
func (b *Bot) ActiveFlows() int {
	return b.flows.Active()
}

// Run starts the long-polling loop. Blocks until ctx is canceled, then
// waits for in-flight messages to be answered.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Telegram bot listening for messages")

	// Messages already queued are answered even while shutting down.
	workCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return b.stop()
		case update, ok := <-updates:
			if !ok {
				return b.stop()
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			if err := b.queues.Submit(msg.Chat.ID, func() { b.handleMessage(workCtx, msg) }); err != nil {
				b.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Dropping message")
			}
		}
	}
}

func (b *Bot) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.queues.Stop(ctx); err != nil {
		return fmt.Errorf("waiting for chat workers: %w", err)
	}
	b.logger.Info().Msg("Telegram bot stopped")
	return nil
}

// handleMessage processes one incoming message. The access check runs
// before anything else.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	var username, firstName string
	if msg.From != nil {
		username = msg.From.UserName
		firstName = msg.From.FirstName
	}

	log := b.logger.With().Int64("chat_id", chatID).Str("user", username).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic while handling message")
		}
	}()

	if err := b.guard.Check(username); err != nil {
		log.Warn().Err(err).Msg("Rejected message")
		b.send(chatID, finalReply(deniedText(err)))
		return
	}

	if msg.IsCommand() {
		command := msg.Command()
		log.Debug().Str("command", command).Msg("Handling command")
		b.send(chatID, b.dispatch(ctx, chatID, command, strings.TrimSpace(msg.CommandArguments()), firstName)...)
		return
	}

	if conversation.IsTorrentLink(msg.Text) {
		b.send(chatID, b.flows.StartAdd(ctx, chatID, msg.Text)...)
		return
	}

	if replies, ok := b.flows.Continue(ctx, chatID, msg.Text); ok {
		b.send(chatID, replies...)
		return
	}

	b.send(chatID, textReply("Send a torrent link or a command. /help lists the commands."))
}

func deniedText(err error) string {
	var denied *access.AccessDeniedError
	if errors.As(err, &denied) && denied.Username != "" {
		return "Access denied for @" + denied.Username
	}
	return "Access denied"
}

// send delivers replies in order. Failures are logged and do not stop the
// remaining replies.
func (b *Bot) send(chatID int64, replies ...conversation.Reply) {
	for _, r := range replies {
		msg := tgbotapi.NewMessage(chatID, r.Text)

		switch {
		case len(r.Keyboard) > 0:
			buttons := make([]tgbotapi.KeyboardButton, 0, len(r.Keyboard))
			for _, label := range r.Keyboard {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			keyboard := tgbotapi.NewReplyKeyboard(buttons)
			keyboard.OneTimeKeyboard = true
			msg.ReplyMarkup = keyboard
		case r.RemoveKeyboard:
			msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		}

		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		}
	}
}

func textReply(text string) conversation.Reply {
	return conversation.Reply{Text: text}
}

func finalReply(text string) conversation.Reply {
	return conversation.Reply{Text: text, RemoveKeyboard: true}
}
