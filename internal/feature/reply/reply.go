// Package reply is the transport-neutral representation of bot answers:
// HTML text plus an optional inline keyboard whose buttons carry callback
// payloads.
package reply

import (
	"html"
	"strings"
)

// Callback payloads understood by the dispatcher.
const (
	PayloadHelpAdd      = "help_add"
	PayloadListServices = "list_services"
	PayloadViewBookings = "view_bookings"
	DeletePrefix        = "delete_"
)

// Button is a single inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Reply is a message body in Telegram HTML with an optional keyboard, one
// slice per row.
type Reply struct {
	Text     string
	Keyboard [][]Button
}

// Text wraps plain HTML text without a keyboard.
func Text(text string) Reply {
	return Reply{Text: text}
}

// HasKeyboard reports whether the reply carries at least one button.
func (r Reply) HasKeyboard() bool {
	for _, row := range r.Keyboard {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// DeletePayload builds the callback payload of a service delete button.
func DeletePayload(serviceID string) string {
	return DeletePrefix + serviceID
}

// ParseDeletePayload returns the service id carried by a delete payload:
// everything after the first underscore.
func ParseDeletePayload(data string) (string, bool) {
	if !strings.HasPrefix(data, DeletePrefix) {
		return "", false
	}

	parts := strings.SplitN(data, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Escape makes user supplied text safe inside an HTML message.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold escapes s and wraps it in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Code escapes s and wraps it in <code>.
func Code(s string) string {
	return "<code>" + Escape(s) + "</code>"
}
