// Package profile registers masters on /start and renders the main menu.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"timehub_bot/internal/domain"
	"timehub_bot/internal/feature/reply"
	"timehub_bot/internal/logging"
)

const failureText = "Помилка бази даних."

type masterStore interface {
	UpsertMaster(ctx context.Context, master domain.Master) error
}

// Caller is the Telegram user behind a /start command.
type Caller struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// FullName joins first and last name the way Telegram clients display them.
func (c Caller) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Registrar upserts the master profile of whoever sends /start.
type Registrar struct {
	masters masterStore
	logger  *logrus.Entry
}

// NewRegistrar constructs a Registrar backed by masters.
func NewRegistrar(masters masterStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		masters: masters,
		logger:  logger,
	}
}

// EnsureMaster upserts the caller as a master with the default work hours.
func (r *Registrar) EnsureMaster(ctx context.Context, caller Caller) (domain.Master, error) {
	if r == nil || r.masters == nil {
		return domain.Master{}, errors.New("profile registrar is not initialized")
	}
	if ctx == nil {
		return domain.Master{}, errors.New("context is required")
	}
	if caller.ID == 0 {
		return domain.Master{}, errors.New("caller id is required")
	}

	username := strings.TrimSpace(caller.Username)
	if username == "" {
		username = domain.UnknownUsername
	}

	master := domain.Master{
		ID:        caller.ID,
		Username:  username,
		FullName:  caller.FullName(),
		WorkStart: domain.DefaultWorkStart,
		WorkEnd:   domain.DefaultWorkEnd,
	}

	if err := r.masters.UpsertMaster(ctx, master); err != nil {
		return domain.Master{}, fmt.Errorf("ensure master: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":     "master_registered",
		"master_id": master.ID,
		"username":  master.Username,
	}).Info("ensured master profile")

	return master, nil
}

// Start handles /start: it registers the caller and answers with the welcome
// menu, or with a generic failure when the store rejects the upsert.
func (r *Registrar) Start(ctx context.Context, caller Caller) reply.Reply {
	master, err := r.EnsureMaster(ctx, caller)
	if err != nil {
		logger := logging.Logger()
		if r != nil {
			logger = r.logger
		}
		logger.WithFields(logging.Fields{
			"event":   "master_register_failed",
			"user_id": caller.ID,
		}).WithError(err).Error("failed to register master")
		return reply.Text(failureText)
	}

	return Welcome(master.ID)
}

// Welcome is the greeting shown after a successful /start.
func Welcome(masterID int64) reply.Reply {
	text := "✅ <b>Вітаю у TimeHub!</b>\n\n" +
		"Ваш профіль налаштовано.\n" +
		"🆔 ID: " + reply.Code(strconv.FormatInt(masterID, 10)) + "\n\n" +
		"👇 Натисніть <b>Menu</b> (зліва знизу) або оберіть дію:"

	return reply.Reply{Text: text, Keyboard: Menu()}
}

// Menu is the inline keyboard attached to the welcome message.
func Menu() [][]reply.Button {
	return [][]reply.Button{
		{{Text: "Додати послугу", Data: reply.PayloadHelpAdd}},
		{{Text: "Мої послуги", Data: reply.PayloadListServices}},
		{{Text: "Записи клієнтів", Data: reply.PayloadViewBookings}},
	}
}
