// Package telegram hosts the Telegram client, update routing, and the glue
// between Telegram payloads and the feature handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/config"
	"timehub_bot/internal/feature/help"
	"timehub_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
	GetMe(ctx context.Context) (*models.User, error)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	bot        botRunner
	dispatcher *Dispatcher
	logger     *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling; every update is
// handed to dispatcher.
func NewClient(cfg config.Config, dispatcher *Dispatcher, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(dispatcher.Handle),
		bot.WithMiddlewares(recoverer(logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Client{
		bot:        tgBot,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Start publishes the command menu and receives updates via long polling
// until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.resolveUsername(ctx)

	if err := c.registerCommands(ctx); err != nil {
		c.logger.WithField("event", "telegram_commands_failed").WithError(err).Warn("failed to publish command menu")
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// resolveUsername tells the dispatcher which @mention belongs to this bot.
func (c *Client) resolveUsername(ctx context.Context) {
	if c.dispatcher == nil {
		return
	}

	me, err := c.bot.GetMe(ctx)
	if err != nil || me == nil {
		c.logger.WithField("event", "telegram_getme_failed").WithError(err).Warn("failed to resolve bot username; accepting every @mention")
		return
	}

	c.dispatcher.SetUsername(me.Username)
}

func (c *Client) registerCommands(ctx context.Context) error {
	commands := make([]models.BotCommand, 0, len(help.Commands))
	for _, cmd := range help.Commands {
		commands = append(commands, models.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}

	if _, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

type updateMeta struct {
	userID     int64
	chatID     int64
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			updateType: "message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     userID(&update.CallbackQuery.From),
			chatID:     messageChatID(update.CallbackQuery.Message),
			updateType: "callback_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}

// messageID returns the id of the message that carried the pressed button,
// or 0 when Telegram did not include it.
func messageID(msg models.MaybeInaccessibleMessage) int {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.MessageID
	default:
		return 0
	}
}
