// Package help holds the static help texts.
package help

import "timehub_bot/internal/feature/reply"

// Commands lists the bot commands with their descriptions, in menu order.
var Commands = []struct {
	Command     string
	Description string
}{
	{Command: "start", Description: "Налаштування профілю"},
	{Command: "add", Description: "Додати нову послугу"},
	{Command: "list", Description: "Мої послуги (та видалення)"},
	{Command: "bookings", Description: "Перегляд записів"},
	{Command: "help", Description: "Довідка"},
}

// Text answers /help.
func Text() reply.Reply {
	text := "⚙️ <b>Команди TimeHub:</b>\n\n"
	for _, c := range Commands {
		text += "/" + c.Command + " - " + c.Description + "\n"
	}
	text += "\n💡 <i>Приклад додавання:</i>\n" +
		"<code>/add Манікюр 450 60</code>"

	return reply.Text(text)
}

// AddUsage replaces the menu message when the help_add button is pressed.
func AddUsage() reply.Reply {
	return reply.Text("📝 <b>Як додати послугу:</b>\n\n" +
		"<code>/add Назва Ціна Час</code>\n\n" +
		"Приклади:\n" +
		"<code>/add Манікюр 450 60</code>\n" +
		"<code>/add Стрижка 300 45</code>")
}
