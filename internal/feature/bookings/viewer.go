// Package bookings renders the client bookings of a master.
package bookings

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"timehub_bot/internal/domain"
	"timehub_bot/internal/feature/reply"
	"timehub_bot/internal/logging"
)

// Placeholders for missing booking fields.
const (
	NoPhone        = "Без телефону"
	UnknownService = "Невідома послуга"
)

const separator = "──────────────"

type bookingStore interface {
	ListBookings(ctx context.Context, masterID int64) ([]domain.Booking, error)
}

// Viewer lists the bookings of the calling master in store order.
type Viewer struct {
	bookings bookingStore
	logger   *logrus.Entry
}

// NewViewer constructs a Viewer backed by bookings.
func NewViewer(bookings bookingStore, logger *logrus.Entry) *Viewer {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Viewer{
		bookings: bookings,
		logger:   logger,
	}
}

// View handles /bookings and the second message of view_bookings.
func (v *Viewer) View(ctx context.Context, masterID int64) reply.Reply {
	items, err := v.list(ctx, masterID)
	if err != nil {
		v.logger.WithFields(logging.Fields{
			"event":   "bookings_list_failed",
			"user_id": masterID,
		}).WithError(err).Error("failed to load bookings")
		return reply.Text("Помилка завантаження записів. Спробуйте пізніше.")
	}

	if len(items) == 0 {
		return reply.Text("📭 У вас поки немає записів клієнтів.")
	}

	return reply.Text(Render(items))
}

func (v *Viewer) list(ctx context.Context, masterID int64) ([]domain.Booking, error) {
	if v == nil || v.bookings == nil {
		return nil, errors.New("booking viewer is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	return v.bookings.ListBookings(ctx, masterID)
}

// Loading is the interim message sent by the view_bookings button.
func Loading() reply.Reply {
	return reply.Text("👇 Ваші записи (завантажую...):")
}

// Render formats bookings in the order given.
func Render(items []domain.Booking) string {
	var b strings.Builder
	b.WriteString("📅 <b>Записи клієнтів:</b>\n\n")

	for _, item := range items {
		b.WriteString("👤 " + reply.Bold(item.ClientName) + "\n")
		b.WriteString("📞 " + reply.Code(item.Phone(NoPhone)) + "\n")
		b.WriteString("💅 " + reply.Escape(item.Service(UnknownService)) + "\n")
		b.WriteString("🕒 " + reply.Escape(ParseBookingTime(item.BookingTime).Display()) + "\n")
		b.WriteString(separator + "\n")
	}

	return b.String()
}
