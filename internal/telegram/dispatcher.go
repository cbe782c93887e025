package telegram

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/feature/bookings"
	"timehub_bot/internal/feature/help"
	"timehub_bot/internal/feature/profile"
	"timehub_bot/internal/feature/reply"
	"timehub_bot/internal/logging"
	"timehub_bot/internal/metrics"
	"timehub_bot/internal/ratelimit"
)

// Commands routed by the dispatcher.
const (
	CommandStart    = "start"
	CommandAdd      = "add"
	CommandList     = "list"
	CommandBookings = "bookings"
	CommandHelp     = "help"
)

const (
	routeDelete  = "delete"
	routeUnknown = "unknown"

	throttledText      = "⏳ Забагато запитів. Спробуйте трохи пізніше."
	unknownCommandText = "Невідома команда. Список команд: /help"
	sendFailedText     = "⚠️ Не вдалося показати відповідь. Спробуйте пізніше."
)

// Messenger is the subset of the Bot API used to answer updates.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// ProfileHandler answers /start.
type ProfileHandler interface {
	Start(ctx context.Context, caller profile.Caller) reply.Reply
}

// CatalogHandler answers the service catalog commands and buttons.
type CatalogHandler interface {
	Add(ctx context.Context, masterID int64, args string) reply.Reply
	List(ctx context.Context, masterID int64) reply.Reply
	ListBrief(ctx context.Context, masterID int64) reply.Reply
	Delete(ctx context.Context, callerID int64, serviceID string) reply.Reply
}

// BookingHandler answers /bookings.
type BookingHandler interface {
	View(ctx context.Context, masterID int64) reply.Reply
}

// DispatcherDeps lists everything the dispatcher needs. Limiter, Metrics and
// Logger are optional.
type DispatcherDeps struct {
	Profile  ProfileHandler
	Catalog  CatalogHandler
	Bookings BookingHandler
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Logger   *logrus.Entry
}

// Dispatcher routes commands and button presses to the feature handlers.
type Dispatcher struct {
	profile  ProfileHandler
	catalog  CatalogHandler
	bookings BookingHandler
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	username string
}

// newRequestID is overridable for tests.
var newRequestID = func() string {
	return uuid.NewString()
}

// NewDispatcher wires the handlers together.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.Disabled{}
	}

	return &Dispatcher{
		profile:  deps.Profile,
		catalog:  deps.Catalog,
		bookings: deps.Bookings,
		limiter:  limiter,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// SetUsername records the bot's own username so commands addressed to other
// bots in a group are ignored. Call it before polling starts.
func (d *Dispatcher) SetUsername(username string) {
	d.username = strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// Handle is the bot default handler.
func (d *Dispatcher) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	d.dispatch(ctx, b, update)
}

func (d *Dispatcher) dispatch(ctx context.Context, m Messenger, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	d.metrics.Update(meta.updateType)

	logger := logging.Enrich(d.logger, logging.Context{
		UserID:    meta.userID,
		ChatID:    meta.chatID,
		RequestID: newRequestID(),
	})

	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, m, update.CallbackQuery, logger)
	case update.Message != nil:
		d.handleMessage(ctx, m, update.Message, logger)
	default:
		logger.WithFields(logging.Fields{
			"event":       "telegram_update",
			"update_type": meta.updateType,
		}).Debug("ignoring unsupported update")
	}
}

// parseCommand splits "/name@bot args" into name and the trimmed argument
// string. ok is false for anything that is not a slash command, and for
// commands addressed to a bot other than self. An empty self accepts any
// mention.
func parseCommand(text, self string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head := text
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		head = text[:i]
		args = strings.TrimSpace(text[i+1:])
	}

	name = strings.TrimPrefix(head, "/")
	if at := strings.Index(name, "@"); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if self != "" && !strings.EqualFold(target, self) {
			return "", "", false
		}
	}
	if name == "" {
		return "", "", false
	}

	return name, args, true
}

func (d *Dispatcher) handleMessage(ctx context.Context, m Messenger, msg *models.Message, logger *logrus.Entry) {
	name, args, ok := parseCommand(msg.Text, d.username)
	if !ok {
		logger.WithFields(logging.Fields{
			"event":       "telegram_update",
			"update_type": "message",
			"text":        strings.TrimSpace(msg.Text),
		}).Info("ignoring non-command message")
		return
	}

	callerID := userID(msg.From)
	chat := msg.Chat.ID

	if !d.allow(ctx, callerID, "message", logger) {
		d.send(ctx, m, chat, reply.Text(throttledText), logger)
		return
	}

	var out reply.Reply
	route := name
	switch name {
	case CommandStart:
		out = d.profile.Start(ctx, callerFrom(msg.From))
	case CommandAdd:
		out = d.catalog.Add(ctx, callerID, args)
	case CommandList:
		out = d.catalog.List(ctx, callerID)
	case CommandBookings:
		out = d.bookings.View(ctx, callerID)
	case CommandHelp:
		out = help.Text()
	default:
		route = routeUnknown
		out = reply.Text(unknownCommandText)
	}

	d.metrics.Route(route)
	logger.WithFields(logging.Fields{
		"event":   "command_handled",
		"route":   route,
		"command": name,
	}).Info("command handled")

	d.send(ctx, m, chat, out, logger)
}

func (d *Dispatcher) handleCallback(ctx context.Context, m Messenger, q *models.CallbackQuery, logger *logrus.Entry) {
	callerID := q.From.ID
	allowed := d.allow(ctx, callerID, "callback_query", logger)

	ack := &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}
	if !allowed {
		ack.Text = throttledText
	}
	if _, err := m.AnswerCallbackQuery(ctx, ack); err != nil {
		logger.WithField("event", "callback_ack_failed").WithError(err).Warn("failed to answer callback query")
	}
	if !allowed {
		return
	}

	chat := messageChatID(q.Message)
	msgID := messageID(q.Message)

	route := q.Data
	switch {
	case q.Data == reply.PayloadHelpAdd:
		d.edit(ctx, m, chat, msgID, help.AddUsage(), logger)
	case q.Data == reply.PayloadListServices:
		d.edit(ctx, m, chat, msgID, d.catalog.ListBrief(ctx, callerID), logger)
	case q.Data == reply.PayloadViewBookings:
		d.send(ctx, m, chat, bookings.Loading(), logger)
		d.send(ctx, m, chat, d.bookings.View(ctx, callerID), logger)
	case strings.HasPrefix(q.Data, reply.DeletePrefix):
		serviceID, ok := reply.ParseDeletePayload(q.Data)
		if !ok {
			route = routeUnknown
			break
		}
		route = routeDelete
		d.edit(ctx, m, chat, msgID, d.catalog.Delete(ctx, callerID, serviceID), logger)
	default:
		route = routeUnknown
	}

	d.metrics.Route(route)
	logger.WithFields(logging.Fields{
		"event":   "callback_handled",
		"route":   route,
		"payload": q.Data,
	}).Info("callback handled")
}

// allow consults the rate limiter; limiter errors let the update through.
func (d *Dispatcher) allow(ctx context.Context, callerID int64, kind string, logger *logrus.Entry) bool {
	allowed, err := d.limiter.Allow(ctx, callerID)
	if err != nil {
		logger.WithField("event", "rate_limit_error").WithError(err).Warn("rate limiter unavailable; allowing update")
		return true
	}
	if !allowed {
		d.metrics.Throttled(kind)
		logger.WithFields(logging.Fields{
			"event": "update_throttled",
			"kind":  kind,
		}).Info("update throttled")
	}
	return allowed
}

func (d *Dispatcher) send(ctx context.Context, m Messenger, chat int64, r reply.Reply, logger *logrus.Entry) {
	if chat == 0 {
		logger.WithField("event", "reply_dropped").Warn("no chat to reply to")
		return
	}

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chat,
		Text:        r.Text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard(r),
	})
	if err == nil {
		return
	}

	logger.WithField("event", "send_failed").WithError(err).Error("failed to send message")
	if r.Text == sendFailedText {
		return
	}

	// Plain text without markup so oversized listings or keyboards still
	// leave the master with an answer.
	if _, err := m.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: sendFailedText}); err != nil {
		logger.WithField("event", "send_fallback_failed").WithError(err).Error("failed to send fallback message")
	}
}

// edit replaces the text of the message that carried the button; when that
// is impossible the reply is sent as a new message.
func (d *Dispatcher) edit(ctx context.Context, m Messenger, chat int64, msgID int, r reply.Reply, logger *logrus.Entry) {
	if msgID == 0 {
		d.send(ctx, m, chat, r, logger)
		return
	}

	_, err := m.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chat,
		MessageID:   msgID,
		Text:        r.Text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard(r),
	})
	if err != nil {
		logger.WithField("event", "edit_failed").WithError(err).Warn("failed to edit message; sending a new one")
		d.send(ctx, m, chat, r, logger)
	}
}

func keyboard(r reply.Reply) models.ReplyMarkup {
	if !r.HasKeyboard() {
		return nil
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(r.Keyboard))
	for _, row := range r.Keyboard {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: btn.Text, CallbackData: btn.Data})
		}
		rows = append(rows, buttons)
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func callerFrom(user *models.User) profile.Caller {
	if user == nil {
		return profile.Caller{}
	}

	return profile.Caller{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
