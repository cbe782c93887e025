// Package catalog implements the service catalog commands: /add, /list and
// the list_services and delete_<id> buttons.
package catalog

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

var (
	// ErrUsage means /add got fewer than three tokens.
	ErrUsage = errors.New("usage: /add <name> <price> <duration>")
	// ErrInvalidPrice means the price token is not a non-negative integer.
	ErrInvalidPrice = errors.New("price must be a non-negative integer")
	// ErrInvalidDuration means the duration token is not a positive integer.
	ErrInvalidDuration = errors.New("duration must be a positive integer")
)

// DeletePolicy selects whether delete_<id> checks the service owner.
type DeletePolicy int

const (
	// DeleteAnyOwner removes a service by id whoever pressed the button.
	DeleteAnyOwner DeletePolicy = iota
	// DeleteOwnOnly restricts deletion to services of the caller.
	DeleteOwnOnly
)

func (p DeletePolicy) String() string {
	if p == DeleteOwnOnly {
		return "own_only"
	}
	return "any_owner"
}

// PolicyFor maps the SERVICE_DELETE_OWNER_CHECK toggle onto a policy.
func PolicyFor(ownerCheck bool) DeletePolicy {
	if ownerCheck {
		return DeleteOwnOnly
	}
	return DeleteAnyOwner
}

type serviceStore interface {
	InsertService(ctx context.Context, service domain.Service) (domain.Service, error)
	ListServices(ctx context.Context, masterID int64) ([]domain.Service, error)
	DeleteService(ctx context.Context, filter domain.ServiceFilter) (int64, error)
}

// AddRequest is a parsed /add command.
type AddRequest struct {
	Name     string
	Price    int
	Duration int
}

// ParseAddArgs reads "<name tokens...> <price> <duration>": the last two
// tokens are the numbers and everything before them, joined by single
// spaces, is the name.
func ParseAddArgs(tokens []string) (AddRequest, error) {
	if len(tokens) < 3 {
		return AddRequest{}, ErrUsage
	}

	n := len(tokens)
	price, err := strconv.Atoi(tokens[n-2])
	if err != nil || price < 0 {
		return AddRequest{}, fmt.Errorf("%w: %q", ErrInvalidPrice, tokens[n-2])
	}

	duration, err := strconv.Atoi(tokens[n-1])
	if err != nil || duration <= 0 {
		return AddRequest{}, fmt.Errorf("%w: %q", ErrInvalidDuration, tokens[n-1])
	}

	return AddRequest{
		Name:     strings.Join(tokens[:n-2], " "),
		Price:    price,
		Duration: duration,
	}, nil
}

// Handler answers catalog commands for the calling master.
type Handler struct {
	services serviceStore
	policy   DeletePolicy
	logger   *logrus.Entry
}

// NewHandler constructs a Handler backed by services.
func NewHandler(services serviceStore, policy DeletePolicy, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		services: services,
		policy:   policy,
		logger:   logger,
	}
}

// Add handles /add with its raw argument string.
func (h *Handler) Add(ctx context.Context, masterID int64, args string) reply.Reply {
	req, err := ParseAddArgs(strings.Fields(args))
	switch {
	case errors.Is(err, ErrUsage):
		return Usage()
	case errors.Is(err, ErrInvalidPrice):
		return reply.Text("⚠️ Ціна має бути цілим невідʼємним числом.\n\n" + usageExample)
	case errors.Is(err, ErrInvalidDuration):
		return reply.Text("⚠️ Тривалість має бути цілим додатним числом (хвилини).\n\n" + usageExample)
	case err != nil:
		return Usage()
	}

	created, err := h.services.InsertService(ctx, domain.Service{
		MasterID: masterID,
		Name:     req.Name,
		Price:    req.Price,
		Duration: req.Duration,
	})
	if err != nil {
		h.fail(masterID, "service_add_failed", err)
		return reply.Text("Не вдалося додати послугу. Спробуйте пізніше.")
	}

	h.logger.WithFields(logging.Fields{
		"event":      "service_added",
		"master_id":  masterID,
		"service_id": created.ID,
		"price":      req.Price,
		"duration":   req.Duration,
	}).Info("service added")

	return reply.Text("✅ <b>Послугу додано!</b>\n\n" +
		"💅 Назва: " + reply.Escape(req.Name) + "\n" +
		"💰 Вартість: " + strconv.Itoa(req.Price) + " грн\n" +
		"⏱ Тривалість: " + strconv.Itoa(req.Duration) + " хв")
}

// List handles /list: one line and one delete button per service.
func (h *Handler) List(ctx context.Context, masterID int64) reply.Reply {
	services, err := h.services.ListServices(ctx, masterID)
	if err != nil {
		h.fail(masterID, "service_list_failed", err)
		return reply.Text("Помилка отримання послуг.")
	}

	if len(services) == 0 {
		return reply.Text("У вас поки немає послуг.\n" +
			"Додайте першу командою:\n" +
			reply.Code("/add Назва Ціна Час"))
	}

	keyboard := make([][]reply.Button, 0, len(services))
	for _, svc := range services {
		keyboard = append(keyboard, []reply.Button{{
			Text: "❌ Видалити " + svc.Name,
			Data: reply.DeletePayload(svc.ID),
		}})
	}

	return reply.Reply{Text: renderServices(services), Keyboard: keyboard}
}

// ListBrief handles the list_services button: the same lines without
// buttons.
func (h *Handler) ListBrief(ctx context.Context, masterID int64) reply.Reply {
	services, err := h.services.ListServices(ctx, masterID)
	if err != nil {
		h.fail(masterID, "service_list_failed", err)
		return reply.Text("Помилка завантаження.")
	}

	if len(services) == 0 {
		return reply.Text("Послуг немає.")
	}

	return reply.Text(renderServices(services))
}

// Delete handles the delete_<id> button pressed by callerID.
func (h *Handler) Delete(ctx context.Context, callerID int64, serviceID string) reply.Reply {
	filter := domain.ServiceFilter{ID: serviceID}
	if h.policy == DeleteOwnOnly {
		filter.MasterID = callerID
	}

	removed, err := h.services.DeleteService(ctx, filter)
	if errors.Is(err, domain.ErrInvalidServiceID) {
		return reply.Text("Послугу не знайдено.")
	}
	if err != nil {
		h.fail(callerID, "service_delete_failed", err)
		return reply.Text("Помилка видалення. Спробуйте пізніше.")
	}

	h.logger.WithFields(logging.Fields{
		"event":      "service_deleted",
		"user_id":    callerID,
		"service_id": serviceID,
		"removed":    removed,
		"policy":     h.policy.String(),
	}).Info("service delete processed")

	if filter.OwnerChecked() && removed == 0 {
		return reply.Text("Послугу не знайдено серед ваших послуг.")
	}

	return reply.Text("✅ Послугу успішно видалено!")
}

const usageExample = "Формат: <code>/add Назва Ціна Час</code>\n\n" +
	"Приклад:\n" +
	"<code>/add Манікюр 450 60</code>\n" +
	"<code>/add Стрижка 300 45</code>"

// Usage is the /add instruction shown for incomplete input.
func Usage() reply.Reply {
	return reply.Text("📝 <b>Як додати послугу:</b>\n\n" + usageExample)
}

func renderServices(services []domain.Service) string {
	var b strings.Builder
	b.WriteString("📋 <b>Ваші послуги:</b>\n\n")
	for _, svc := range services {
		fmt.Fprintf(&b, "🔹 %s — %d грн (%d хв)\n", reply.Escape(svc.Name), svc.Price, svc.Duration)
	}
	return b.String()
}

func (h *Handler) fail(userID int64, event string, err error) {
	h.logger.WithFields(logging.Fields{
		"event":   event,
		"user_id": userID,
	}).WithError(err).Error("catalog store call failed")
}
