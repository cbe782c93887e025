package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timehub_bot/internal/feature/profile"
	"timehub_bot/internal/feature/reply"
	"timehub_bot/internal/metrics"
)

type fakeMessenger struct {
	calls   []string
	sent    []*bot.SendMessageParams
	edited  []*bot.EditMessageTextParams
	answers []*bot.AnswerCallbackQueryParams
	editErr error
	// sendErrs fail the SendMessage calls in order.
	sendErrs []error
}

func (f *fakeMessenger) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.calls = append(f.calls, "send")
	f.sent = append(f.sent, params)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Message{}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.calls = append(f.calls, "edit")
	f.edited = append(f.edited, params)
	return &models.Message{}, f.editErr
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.calls = append(f.calls, "answer")
	f.answers = append(f.answers, params)
	return true, nil
}

type recordingHandlers struct {
	calls    []string
	caller   profile.Caller
	masterID int64
	args     string
	deleteID string
	panicOn  string
}

func (r *recordingHandlers) record(call string) {
	if call == r.panicOn {
		panic("handler exploded")
	}
	r.calls = append(r.calls, call)
}

func (r *recordingHandlers) Start(_ context.Context, caller profile.Caller) reply.Reply {
	r.record("start")
	r.caller = caller
	return reply.Reply{Text: "welcome", Keyboard: [][]reply.Button{{{Text: "Мої послуги", Data: reply.PayloadListServices}}}}
}

func (r *recordingHandlers) Add(_ context.Context, masterID int64, args string) reply.Reply {
	r.record("add")
	r.masterID, r.args = masterID, args
	return reply.Text("added")
}

func (r *recordingHandlers) List(_ context.Context, masterID int64) reply.Reply {
	r.record("list")
	r.masterID = masterID
	return reply.Text("list")
}

func (r *recordingHandlers) ListBrief(_ context.Context, masterID int64) reply.Reply {
	r.record("list_brief")
	r.masterID = masterID
	return reply.Text("brief")
}

func (r *recordingHandlers) Delete(_ context.Context, callerID int64, serviceID string) reply.Reply {
	r.record("delete")
	r.masterID, r.deleteID = callerID, serviceID
	return reply.Text("deleted")
}

func (r *recordingHandlers) View(_ context.Context, masterID int64) reply.Reply {
	r.record("bookings")
	r.masterID = masterID
	return reply.Text("bookings")
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s stubLimiter) Allow(context.Context, int64) (bool, error) {
	return s.allowed, s.err
}

func newTestDispatcher(t *testing.T, handlers *recordingHandlers, limiter stubLimiter) (*Dispatcher, *metrics.Metrics, *logtest.Hook) {
	t.Helper()

	prev := newRequestID
	newRequestID = func() string { return "req-1" }
	t.Cleanup(func() { newRequestID = prev })

	hookLogger, hook := logtest.NewNullLogger()
	hookLogger.SetLevel(logrus.DebugLevel)
	m := metrics.New()

	d := NewDispatcher(DispatcherDeps{
		Profile:  handlers,
		Catalog:  handlers,
		Bookings: handlers,
		Limiter:  limiter,
		Metrics:  m,
		Logger:   logrus.NewEntry(hookLogger),
	})
	return d, m, hook
}

// counterTotal sums every series of the named counter family.
func counterTotal(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func commandUpdate(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   10,
		From: &models.User{ID: 42, Username: "nails", FirstName: "Olena", LastName: "K"},
		Chat: models.Chat{ID: 420},
		Text: text,
	}}
}

func callbackUpdate(data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb-1",
		From: models.User{ID: 42},
		Data: data,
		Message: models.MaybeInaccessibleMessage{
			Type:    models.MaybeInaccessibleMessageTypeMessage,
			Message: &models.Message{ID: 7, Chat: models.Chat{ID: 420}},
		},
	}}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text, self, name, args string
		ok                     bool
	}{
		{text: "/start", name: "start", ok: true},
		{text: "/add Gel Manicure 450 60", name: "add", args: "Gel Manicure 450 60", ok: true},
		{text: "/list@timehub_bot", name: "list", ok: true},
		{text: "/add@timehub_bot  Haircut 300 45 ", name: "add", args: "Haircut 300 45", ok: true},
		{text: "/list@timehub_bot", self: "timehub_bot", name: "list", ok: true},
		{text: "/list@TimeHub_Bot", self: "timehub_bot", name: "list", ok: true},
		{text: "/list", self: "timehub_bot", name: "list", ok: true},
		{text: "/list@otherbot", self: "timehub_bot", ok: false},
		{text: "/foo@otherbot", self: "timehub_bot", ok: false},
		{text: "hello", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}

	for _, tc := range cases {
		name, args, ok := parseCommand(tc.text, tc.self)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.name, name, tc.text)
		assert.Equal(t, tc.args, args, tc.text)
	}
}

func TestCommandsRouteToHandlers(t *testing.T) {
	cases := []struct {
		text string
		call string
	}{
		{text: "/start", call: "start"},
		{text: "/add Gel Manicure 450 60", call: "add"},
		{text: "/list", call: "list"},
		{text: "/bookings", call: "bookings"},
	}

	for _, tc := range cases {
		t.Run(tc.call, func(t *testing.T) {
			handlers := &recordingHandlers{}
			d, m, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
			messenger := &fakeMessenger{}

			d.dispatch(context.Background(), messenger, commandUpdate(tc.text))

			require.Equal(t, []string{tc.call}, handlers.calls)
			require.Len(t, messenger.sent, 1)
			assert.Equal(t, int64(420), messenger.sent[0].ChatID)
			assert.Equal(t, models.ParseModeHTML, messenger.sent[0].ParseMode)
			assert.Equal(t, 1.0, counterTotal(t, m, "timehub_handler_calls_total"))
		})
	}
}

func TestStartPassesCallerAndKeyboard(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, commandUpdate("/start"))

	assert.Equal(t, profile.Caller{ID: 42, Username: "nails", FirstName: "Olena", LastName: "K"}, handlers.caller)

	require.Len(t, messenger.sent, 1)
	markup, ok := messenger.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok, "expected inline keyboard, got %T", messenger.sent[0].ReplyMarkup)
	assert.Equal(t, reply.PayloadListServices, markup.InlineKeyboard[0][0].CallbackData)
}

func TestAddReceivesTrailingArguments(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})

	d.dispatch(context.Background(), &fakeMessenger{}, commandUpdate("/add@timehub_bot Gel Manicure 450 60"))

	assert.Equal(t, int64(42), handlers.masterID)
	assert.Equal(t, "Gel Manicure 450 60", handlers.args)
}

func TestHelpAndUnknownCommands(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, commandUpdate("/help"))
	d.dispatch(context.Background(), messenger, commandUpdate("/Start"))

	assert.Empty(t, handlers.calls, "help is static and commands are case-sensitive")
	require.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent[0].Text, "/bookings")
	assert.Equal(t, unknownCommandText, messenger.sent[1].Text)
	assert.Nil(t, messenger.sent[1].ReplyMarkup)
}

func TestPlainTextIsIgnored(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, hook := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, commandUpdate("hello there"))

	assert.Empty(t, messenger.calls)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "telegram_update", entry.Data["event"])
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, int64(42), entry.Data["user_id"])
}

func TestCallbacksAreAcknowledgedFirst(t *testing.T) {
	cases := []struct {
		payload string
		calls   []string
		ops     []string
	}{
		{payload: reply.PayloadHelpAdd, ops: []string{"answer", "edit"}},
		{payload: reply.PayloadListServices, calls: []string{"list_brief"}, ops: []string{"answer", "edit"}},
		{payload: reply.PayloadViewBookings, calls: []string{"bookings"}, ops: []string{"answer", "send", "send"}},
		{payload: "delete_17", calls: []string{"delete"}, ops: []string{"answer", "edit"}},
		{payload: "delete_", ops: []string{"answer"}},
		{payload: "something_else", ops: []string{"answer"}},
	}

	for _, tc := range cases {
		t.Run(tc.payload, func(t *testing.T) {
			handlers := &recordingHandlers{}
			d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
			messenger := &fakeMessenger{}

			d.dispatch(context.Background(), messenger, callbackUpdate(tc.payload))

			assert.Equal(t, tc.ops, messenger.calls)
			assert.Equal(t, tc.calls, handlers.calls)
			require.Len(t, messenger.answers, 1)
			assert.Equal(t, "cb-1", messenger.answers[0].CallbackQueryID)
			assert.Empty(t, messenger.answers[0].Text)
		})
	}
}

func TestDeleteCallbackPassesIDAndEditsMessage(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, callbackUpdate("delete_65f0c1a2b3c4d5e6f7a8b9c0"))

	assert.Equal(t, "65f0c1a2b3c4d5e6f7a8b9c0", handlers.deleteID)
	assert.Equal(t, int64(42), handlers.masterID)
	require.Len(t, messenger.edited, 1)
	assert.Equal(t, 7, messenger.edited[0].MessageID)
	assert.Equal(t, "deleted", messenger.edited[0].Text)
}

func TestViewBookingsSendsLoadingThenListing(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, callbackUpdate(reply.PayloadViewBookings))

	require.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent[0].Text, "завантажую")
	assert.Equal(t, "bookings", messenger.sent[1].Text)
	assert.Empty(t, messenger.edited)
}

func TestEditFailureFallsBackToSend(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{editErr: errors.New("message can't be edited")}

	d.dispatch(context.Background(), messenger, callbackUpdate(reply.PayloadListServices))

	assert.Equal(t, []string{"answer", "edit", "send"}, messenger.calls)
	assert.Equal(t, "brief", messenger.sent[0].Text)
}

func TestThrottledUpdatesNeverReachHandlers(t *testing.T) {
	handlers := &recordingHandlers{}
	d, m, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: false})
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, commandUpdate("/list"))
	d.dispatch(context.Background(), messenger, callbackUpdate("delete_17"))

	assert.Empty(t, handlers.calls)
	assert.Equal(t, []string{"send", "answer"}, messenger.calls)
	assert.Equal(t, throttledText, messenger.sent[0].Text)
	assert.Equal(t, throttledText, messenger.answers[0].Text)
	assert.Equal(t, 2.0, counterTotal(t, m, "timehub_throttled_updates_total"))
}

func TestLimiterErrorsFailOpen(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{err: errors.New("redis down")})

	d.dispatch(context.Background(), &fakeMessenger{}, commandUpdate("/list"))

	assert.Equal(t, []string{"list"}, handlers.calls)
}

func TestHandlePanicIsRecoveredAfterAck(t *testing.T) {
	handlers := &recordingHandlers{panicOn: "delete"}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{}

	hookLogger, hook := logtest.NewNullLogger()
	wrapped := recoverer(logrus.NewEntry(hookLogger))(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		d.dispatch(ctx, messenger, update)
	})

	assert.NotPanics(t, func() {
		wrapped(context.Background(), nil, callbackUpdate("delete_17"))
	})
	assert.Equal(t, []string{"answer"}, messenger.calls)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "handler_panic", hook.LastEntry().Data["event"])
}

func TestUpdatesAreCountedByKind(t *testing.T) {
	handlers := &recordingHandlers{}
	d, m, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})

	d.dispatch(context.Background(), &fakeMessenger{}, commandUpdate("/help"))
	d.dispatch(context.Background(), &fakeMessenger{}, callbackUpdate(reply.PayloadHelpAdd))
	d.dispatch(context.Background(), &fakeMessenger{}, &models.Update{EditedMessage: &models.Message{Text: "x"}})
	d.dispatch(context.Background(), &fakeMessenger{}, nil)

	assert.Equal(t, 3.0, counterTotal(t, m, "timehub_telegram_updates_total"))
}

func TestCommandsForOtherBotsAreIgnored(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, _ := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	d.SetUsername("@timehub_bot")
	messenger := &fakeMessenger{}

	d.dispatch(context.Background(), messenger, commandUpdate("/list@otherbot"))
	d.dispatch(context.Background(), messenger, commandUpdate("/foo@otherbot"))

	assert.Empty(t, handlers.calls)
	assert.Empty(t, messenger.sent)

	d.dispatch(context.Background(), messenger, commandUpdate("/list@timehub_bot"))
	assert.Equal(t, []string{"list"}, handlers.calls)
}

func TestRejectedSendFallsBackToPlainText(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, hook := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{sendErrs: []error{errors.New("Bad Request: message is too long")}}

	d.dispatch(context.Background(), messenger, commandUpdate("/list"))

	require.Len(t, messenger.sent, 2)
	assert.Equal(t, "list", messenger.sent[0].Text)
	assert.Equal(t, sendFailedText, messenger.sent[1].Text)
	assert.Equal(t, int64(420), messenger.sent[1].ChatID)
	assert.Empty(t, messenger.sent[1].ParseMode)
	assert.Nil(t, messenger.sent[1].ReplyMarkup)

	var failed bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "send_failed" {
			failed = true
		}
	}
	assert.True(t, failed, "expected send_failed log")
}

func TestFallbackIsSentOnlyOnce(t *testing.T) {
	handlers := &recordingHandlers{}
	d, _, hook := newTestDispatcher(t, handlers, stubLimiter{allowed: true})
	messenger := &fakeMessenger{sendErrs: []error{errors.New("blocked"), errors.New("blocked")}}

	d.dispatch(context.Background(), messenger, commandUpdate("/bookings"))

	assert.Equal(t, []string{"send", "send"}, messenger.calls)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "send_fallback_failed", hook.LastEntry().Data["event"])
}
