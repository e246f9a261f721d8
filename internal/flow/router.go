package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/store"
	"github.com/google/uuid"
)

// DateLayout renders reminder dates as DD/MM/YYYY HH:mm.
const DateLayout = "02/01/2006 15:04"

// maxResetLength bounds the bodies treated as a return-to-menu keyword.
const maxResetLength = 10

// maxRowDescription is the longest reminder description shown in the delete list.
const maxRowDescription = 72

// deleteRowPrefix namespaces delete list row ids so a selection never reads as a menu code.
const deleteRowPrefix = "reminder-delete:"

var (
	resetPattern   = regexp.MustCompile(`(?i)help|cancel|stop|exit`)
	handoffPattern = regexp.MustCompile(`(?i)human|person|chat|talk`)
	cancelPattern  = regexp.MustCompile(`(?i)cancel|stop|exit`)
)

// Action is one outbound payload produced by the router.
type Action struct {
	Payload   models.Payload
	DeliverAt *time.Time // deferred delivery, nil for immediate
	// Reply marks conversational replies, which are followed by bot label and metadata sync.
	Reply bool
}

// Decision is the outcome of routing one inbound message.
type Decision struct {
	Task    models.Task // next task; the zero Task clears it
	Actions []Action
	Handoff bool // the user asked for a human
}

func (d *Decision) reply(p models.Payload) {
	d.Actions = append(d.Actions, Action{Payload: p, Reply: true})
}

func (d *Decision) send(p models.Payload) {
	d.Actions = append(d.Actions, Action{Payload: p})
}

// Opts holds configuration options for the Router.
type Opts struct {
	Messages Messages
	Now      func() time.Time
	Location *time.Location
	NewID    func() string
}

// Option defines a configuration option for the Router.
type Option func(*Opts)

// WithMessages overrides the welcome, menu and unknown-command texts.
func WithMessages(m Messages) Option {
	return func(o *Opts) {
		o.Messages = m
	}
}

// WithClock sets the clock used to compute reminder fire times.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// WithLocation sets the time zone reminder dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		o.Location = loc
	}
}

// WithIDGenerator sets the reminder ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Opts) {
		o.NewID = fn
	}
}

// Router is the conversation state machine. It reads and writes reminders through the
// store but leaves persisting the returned task to the caller, which holds the
// conversation lock for the whole read-route-write cycle.
type Router struct {
	store    store.ConversationStore
	messages Messages
	now      func() time.Time
	loc      *time.Location
	newID    func() string
}

// NewRouter creates a Router backed by st.
func NewRouter(st store.ConversationStore, opts ...Option) *Router {
	cfg := Opts{
		Messages: DefaultMessages(),
		Now:      time.Now,
		Location: time.Local,
		NewID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Router{
		store:    st,
		messages: cfg.Messages,
		now:      cfg.Now,
		loc:      cfg.Location,
		newID:    cfg.NewID,
	}
}

// Handle routes msg given the conversation's active task. Rules are evaluated in a fixed
// precedence order and the first one that produces a reply ends routing.
func (r *Router) Handle(ctx context.Context, msg *models.Message, task models.Task) (Decision, error) {
	chatID := msg.Chat.ID
	body := msg.NormalizedBody()
	d := Decision{Task: task}

	if msg.Chat.LastOutboundMessageAt == nil || msg.Meta.IsFirstMessage {
		slog.Debug("Router.Handle: first contact", "chatID", chatID)
		d.reply(models.TextPayload{Body: r.messages.Welcome + "\n\n" + r.messages.Menu})
		return d, nil
	}

	if body != "" && utf8.RuneCountInString(body) < maxResetLength && resetPattern.MatchString(body) {
		slog.Debug("Router.Handle: reset to main menu", "chatID", chatID, "task", task.Kind)
		body = ""
		d.Task = models.Task{}
	}

	if n, ok := ParseNumber(body); (ok && n == 4) || handoffPattern.MatchString(body) {
		slog.Debug("Router.Handle: handoff requested", "chatID", chatID)
		d.Handoff = true
		d.reply(models.TextPayload{Body: msgHandoff})
		return d, nil
	}

	var (
		done bool
		err  error
	)
	switch d.Task.Kind {
	case models.TaskReminderCreate:
		done, body, err = r.handleReminderCreate(ctx, chatID, body, &d)
	case models.TaskDemoButton:
		body = r.handleDemoButton(body, &d)
	case models.TaskReminderDelete:
		done, body, err = r.handleReminderDelete(ctx, chatID, body, &d)
	}
	if err != nil || done {
		return d, err
	}

	for _, in := range intents {
		if in.match(body) {
			slog.Debug("Router.Handle: matched intent", "chatID", chatID, "intent", in.name)
			return d, in.apply(ctx, r, msg, &d)
		}
	}

	d.reply(models.TextPayload{Body: r.messages.Unknown + "\n\n" + r.messages.Menu})
	return d, nil
}

func (r *Router) handleReminderCreate(ctx context.Context, chatID, body string, d *Decision) (bool, string, error) {
	if d.Task.Step == 1 && body == "x" {
		d.Task = models.Task{}
		return false, "", nil
	}

	items, err := r.store.ListReminders(ctx, chatID)
	if err != nil {
		return false, body, fmt.Errorf("list reminders: %w", err)
	}
	if len(items) >= models.MaxReminders {
		d.reply(models.TextPayload{Body: msgReminderLimit})
		return true, body, nil
	}

	switch d.Task.Step {
	case 1:
		n, ok := numberIn(body, 1, len(durationOptions)+1)
		switch {
		case ok && n == len(durationOptions)+1:
			d.Task = models.Task{}
			return false, "", nil
		case ok:
			d.Task = models.Task{Kind: models.TaskReminderCreate, Step: 2, Duration: durationOptions[n-1]}
			d.reply(models.TextPayload{Body: msgAskDescription})
			return true, body, nil
		default:
			d.reply(models.TextPayload{Body: msgInvalidOption})
			d.reply(reminderCreateMenu())
			return true, body, nil
		}

	case 2:
		length := utf8.RuneCountInString(body)
		if length < models.MinReminderLength {
			d.reply(models.TextPayload{Body: msgTooShort})
			return true, body, nil
		}
		if length > models.MaxReminderLength {
			d.reply(models.TextPayload{Body: msgTooLong})
			return true, body, nil
		}
		return true, body, r.createReminder(ctx, chatID, body, d)
	}

	// unknown step, drop the task
	d.Task = models.Task{}
	return false, body, nil
}

func (r *Router) createReminder(ctx context.Context, chatID, body string, d *Decision) error {
	now := r.now()
	fireAt, err := FireAt(now, d.Task.Duration)
	if err != nil {
		d.Task = models.Task{}
		return fmt.Errorf("reminder fire time: %w", err)
	}
	reminder := models.Reminder{
		ID:          r.newID(),
		Duration:    d.Task.Duration,
		FireAt:      fireAt,
		Description: body,
		CreatedAt:   now,
	}
	if err := r.store.AddReminder(ctx, chatID, reminder); err != nil {
		if errors.Is(err, store.ErrReminderLimit) {
			d.reply(models.TextPayload{Body: msgReminderLimit})
			return nil
		}
		return fmt.Errorf("add reminder: %w", err)
	}
	slog.Info("Router.createReminder: reminder created", "chatID", chatID, "id", reminder.ID, "fireAt", fireAt)

	d.Task = models.Task{}
	d.reply(models.TextPayload{Body: msgReminderSaved})
	d.Actions = append(d.Actions, Action{
		Payload:   models.TextPayload{Body: msgReminderPrefix + body},
		DeliverAt: &fireAt,
		Reply:     true,
	})
	return nil
}

// handleDemoButton maps a button menu choice to its sample keyword. The cancel choice or
// a cancel keyword leaves the menu and keeps the body for intent matching; any other
// input leaves the menu and shows the unknown-command reply.
func (r *Router) handleDemoButton(body string, d *Decision) string {
	if n, ok := numberIn(body, 1, len(buttonSamples)); ok {
		return buttonSamples[n-1]
	}
	d.Task = models.Task{}
	if n, ok := ParseNumber(body); (ok && n == len(buttonSamples)+1) || cancelPattern.MatchString(body) {
		return body
	}
	return ""
}

func (r *Router) handleReminderDelete(ctx context.Context, chatID, body string, d *Decision) (bool, string, error) {
	if cancelPattern.MatchString(body) {
		d.Task = models.Task{}
		body = ""
	}

	items, err := r.store.ListReminders(ctx, chatID)
	if err != nil {
		return false, body, fmt.Errorf("list reminders: %w", err)
	}
	if len(items) == 0 {
		d.Task = models.Task{}
		d.reply(models.TextPayload{Body: msgNoRemindersTask})
		return true, body, nil
	}

	n, ok := numberIn(strings.TrimPrefix(body, deleteRowPrefix), 1, models.MaxReminders)
	if !ok {
		return false, body, nil
	}
	d.Task = models.Task{}
	removed, err := r.store.RemoveReminder(ctx, chatID, n-1)
	if errors.Is(err, store.ErrReminderNotFound) {
		d.reply(models.TextPayload{Body: msgReminderNotFound})
		return true, body, nil
	}
	if err != nil {
		return true, body, fmt.Errorf("remove reminder: %w", err)
	}
	slog.Info("Router.handleReminderDelete: reminder deleted", "chatID", chatID, "id", removed.ID)
	d.reply(models.TextPayload{Body: fmt.Sprintf(msgReminderDeleted, r.formatDate(removed.FireAt), removed.Description)})
	return true, body, nil
}

func (r *Router) formatDate(t time.Time) string {
	return t.In(r.loc).Format(DateLayout)
}

// intent is one entry of the main menu. Entries are tried in order.
type intent struct {
	name  string
	match func(body string) bool
	apply func(ctx context.Context, r *Router, msg *models.Message, d *Decision) error
}

// command matches a menu number, a literal command body or a keyword pattern.
func command(code int, literal, pattern string) func(string) bool {
	re := regexp.MustCompile(`(?i)` + pattern)
	return func(body string) bool {
		if n, ok := ParseNumber(body); ok && n == code {
			return true
		}
		return body == literal || re.MatchString(body)
	}
}

func keyword(pattern string) func(string) bool {
	re := regexp.MustCompile(`(?i)` + pattern)
	return re.MatchString
}

// sample builds an intent that always replies with the same payload.
func sample(name, pattern string, p models.Payload) intent {
	return intent{
		name:  name,
		match: keyword(pattern),
		apply: func(_ context.Context, _ *Router, _ *models.Message, d *Decision) error {
			d.reply(p)
			return nil
		},
	}
}

var intents = []intent{
	{name: "reminder-create", match: command(1, "reminder-create", "create"), apply: applyReminderCreate},
	{name: "reminder-list", match: command(2, "reminder-list", "list reminder|reminders"), apply: applyReminderList},
	{name: "reminder-delete", match: command(3, "reminder-delete", "delete"), apply: applyReminderDelete},
	{name: "button", match: keyword("button"), apply: applyDemoButton},
	sample("list", "list", demoList()),
	sample("image", "image", models.MediaPayload{Caption: "This is a random image\nCheers 🥳 😀", URL: sampleImageURL}),
	sample("video", "video", models.MediaPayload{Caption: "This is a sample video\nCheers 🥳 😀", URL: sampleVideoURL}),
	sample("audio", "audio", models.MediaPayload{URL: sampleAudioURL, Format: "ptt"}),
	sample("location", "location|address", models.LocationPayload{Address: sampleAddress}),
	sample("contacts", "contact|card", models.ContactsPayload{Cards: []models.ContactCard{
		{Name: "Thomas Anderson", Phone: "+1234567890"},
		{Name: "John Wick", Phone: "+1234567890"},
	}}),
	sample("document", "document|pdf", models.MediaPayload{Caption: "This is a sample PDF 😀", URL: samplePDFURL}),
	sample("file", "file|zip", models.MediaPayload{Caption: "This is a sample ZIP file 😀", URL: sampleZipURL}),
	sample("excel", "excel|xls", models.MediaPayload{Caption: "This is a sample Excel file 😀", URL: sampleExcelURL}),
	sample("format", "format", models.TextPayload{Body: sampleFormatText}),
	{name: "quote", match: keyword("quote|reply"), apply: func(_ context.Context, _ *Router, msg *models.Message, d *Decision) error {
		d.reply(models.TextPayload{Body: sampleQuoteText, Quote: msg.ID})
		return nil
	}},
	sample("emoji", "emoji", models.TextPayload{Body: sampleEmojiText}),
	{name: "react", match: keyword("react"), apply: func(_ context.Context, _ *Router, msg *models.Message, d *Decision) error {
		d.send(models.ReactionPayload{Emoji: sampleReaction, MessageID: msg.ID})
		return nil
	}},
	sample("link", "link|youtube", models.TextPayload{Body: sampleLinkText}),
	sample("text", "text", models.TextPayload{Body: sampleShowcase}),
}

func applyReminderCreate(_ context.Context, _ *Router, _ *models.Message, d *Decision) error {
	d.Task = models.Task{Kind: models.TaskReminderCreate, Step: 1}
	d.reply(reminderCreateMenu())
	return nil
}

func applyReminderList(ctx context.Context, r *Router, msg *models.Message, d *Decision) error {
	items, err := r.store.ListReminders(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if len(items) == 0 {
		d.reply(models.TextPayload{Body: msgNoReminders})
		return nil
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, r.formatDate(item.FireAt), item.Description)
	}
	d.reply(models.TextPayload{Body: msgReminderList + strings.Join(lines, "\n\n")})
	return nil
}

func applyReminderDelete(ctx context.Context, r *Router, msg *models.Message, d *Decision) error {
	items, err := r.store.ListReminders(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if len(items) == 0 {
		d.reply(models.TextPayload{Body: msgNoReminders})
		return nil
	}
	if len(items) > models.MaxReminders {
		items = items[:models.MaxReminders]
	}
	rows := make([]models.ListRow, len(items))
	for i, item := range items {
		rows[i] = models.ListRow{
			ID:          deleteRowPrefix + strconv.Itoa(i+1),
			Title:       fmt.Sprintf("%d. %s", i+1, r.formatDate(item.FireAt)),
			Description: truncateRunes(item.Description, maxRowDescription),
		}
	}
	d.Task = models.Task{Kind: models.TaskReminderDelete, Step: 1}
	d.send(models.ListPayload{
		Description: "Please select one reminder to delete or reply with *stop* to cancel",
		Title:       "Task reminder",
		Button:      "Select one option",
		Footer:      "Powered by Wassenger",
		Sections:    []models.ListSection{{Title: "Active reminders", Rows: rows}},
	})
	return nil
}

func applyDemoButton(_ context.Context, _ *Router, _ *models.Message, d *Decision) error {
	d.Task = models.Task{Kind: models.TaskDemoButton}
	d.reply(demoButtonMenu())
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
