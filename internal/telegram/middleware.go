package telegram

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/logging"
)

// recoverer keeps a panicking handler from taking down the polling loop.
func recoverer(logger *logrus.Entry) bot.Middleware {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					fields := logging.Fields{
						"event": "handler_panic",
						"panic": fmt.Sprint(r),
						"stack": string(debug.Stack()),
					}
					if update != nil {
						meta := extractUpdateMeta(update)
						fields["update_type"] = meta.updateType
						if meta.userID != 0 {
							fields["user_id"] = meta.userID
						}
					}
					logger.WithFields(fields).Error("recovered from handler panic")
				}
			}()

			next(ctx, b, update)
		}
	}
}
