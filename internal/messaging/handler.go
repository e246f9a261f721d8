package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/flow"
	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/store"
)

// Assigner hands a conversation to a human team member.
type Assigner interface {
	Assign(ctx context.Context, chat models.Chat) (*models.Member, error)
}

// HandlerOpts holds the optional collaborators of an InboundHandler.
type HandlerOpts struct {
	Dedup       store.DedupRepo
	Assigner    Assigner
	Queue       *TaskQueue
	Eligibility flow.Config
	Gateway     gateway.Gateway // used for bot label and metadata sync
	BotLabels   []string
	BotMetadata []gateway.MetadataRule
}

// HandlerOption defines a configuration option for an InboundHandler.
type HandlerOption func(*HandlerOpts)

// WithDedup drops webhook redeliveries of messages already seen.
func WithDedup(d store.DedupRepo) HandlerOption {
	return func(o *HandlerOpts) {
		o.Dedup = d
	}
}

// WithAssigner enables human handoff. Assignment runs on q when given, inline otherwise.
func WithAssigner(a Assigner, q *TaskQueue) HandlerOption {
	return func(o *HandlerOpts) {
		o.Assigner = a
		o.Queue = q
	}
}

// WithEligibility sets the rules deciding which chats get automated replies.
func WithEligibility(cfg flow.Config) HandlerOption {
	return func(o *HandlerOpts) {
		o.Eligibility = cfg
	}
}

// WithBotSync labels chats the bot replied in and records the given contact metadata.
func WithBotSync(gw gateway.Gateway, labels []string, rules []gateway.MetadataRule) HandlerOption {
	return func(o *HandlerOpts) {
		o.Gateway = gw
		o.BotLabels = labels
		o.BotMetadata = rules
	}
}

// BotStartMetadata returns the rule stamping when the bot first answered a contact.
func BotStartMetadata() []gateway.MetadataRule {
	return []gateway.MetadataRule{
		{Key: "bot_start", Value: func() string { return time.Now().UTC().Format(time.RFC3339) }},
	}
}

// InboundHandler runs one inbound message through dedup, eligibility, routing and delivery.
type InboundHandler struct {
	store      store.ConversationStore
	router     *flow.Router
	dispatcher *Dispatcher
	locks      *store.KeyedMutex
	opts       HandlerOpts
}

// NewInboundHandler creates an InboundHandler.
func NewInboundHandler(st store.ConversationStore, router *flow.Router, d *Dispatcher, opts ...HandlerOption) *InboundHandler {
	cfg := HandlerOpts{Eligibility: flow.DefaultConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InboundHandler{
		store:      st,
		router:     router,
		dispatcher: d,
		locks:      store.NewKeyedMutex(),
		opts:       cfg,
	}
}

// Enqueue schedules Process for event on q. It reports false when the queue dropped it.
func (h *InboundHandler) Enqueue(q *TaskQueue, event *models.Event) bool {
	name := "inbound"
	if event.Data != nil {
		name = "inbound:" + event.Data.ID
	}
	return q.Submit(name, func(ctx context.Context) error {
		return h.Process(ctx, event)
	})
}

// Process handles one message:in:new event. Messages of a conversation are routed one at
// a time; replies are sent after the conversation lock is released.
func (h *InboundHandler) Process(ctx context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if !event.IsInboundMessage() {
		metrics.InboundEvents.WithLabelValues("ignored").Inc()
		return models.ErrUnsupportedEvent
	}
	msg := event.Data
	chat := msg.Chat

	if h.opts.Dedup != nil && msg.ID != "" {
		fresh, err := h.opts.Dedup.RecordInbound(ctx, msg.ID, chat.ID)
		if err != nil {
			slog.Error("InboundHandler.Process: dedup check failed", "messageID", msg.ID, "error", err)
		} else if !fresh {
			slog.Info("InboundHandler.Process: duplicate message skipped", "messageID", msg.ID, "chatID", chat.ID)
			metrics.InboundEvents.WithLabelValues("duplicate").Inc()
			return nil
		}
	}

	if !flow.CanReply(chat, h.opts.Eligibility) {
		slog.Debug("InboundHandler.Process: chat not eligible for automated replies", "chatID", chat.ID, "from", chat.FromNumber)
		metrics.InboundEvents.WithLabelValues("ineligible").Inc()
		h.markProcessed(ctx, msg.ID)
		return nil
	}

	decision, err := h.route(ctx, msg)
	if err != nil {
		metrics.InboundEvents.WithLabelValues("failed").Inc()
		return err
	}
	metrics.InboundEvents.WithLabelValues("routed").Inc()
	taskLabel := string(decision.Task.Kind)
	if taskLabel == "" {
		taskLabel = "none"
	}
	metrics.RouterDecisions.WithLabelValues(taskLabel).Inc()

	device := h.dispatcher.Device()
	if event.Device != nil && event.Device.ID != "" {
		device = event.Device.ID
	}
	phone := msg.FromNumber
	if phone == "" {
		phone = chat.FromNumber
	}

	for _, a := range decision.Actions {
		out := models.Outbound{Phone: phone, Device: device, Payload: a.Payload, DeliverAt: a.DeliverAt}
		if _, ok := h.dispatcher.Send(ctx, out); ok && a.Reply {
			h.syncBotChat(ctx, device, &chat)
		}
	}

	if decision.Handoff {
		h.handoff(ctx, chat)
	}
	h.markProcessed(ctx, msg.ID)
	return nil
}

// route runs the read-route-write cycle under the conversation lock.
func (h *InboundHandler) route(ctx context.Context, msg *models.Message) (flow.Decision, error) {
	chatID := msg.Chat.ID
	unlock := h.locks.Lock(chatID)
	defer unlock()

	task, err := h.store.GetTask(ctx, chatID)
	if err != nil {
		return flow.Decision{}, fmt.Errorf("load task: %w", err)
	}
	decision, err := h.router.Handle(ctx, msg, task)
	if err != nil {
		return flow.Decision{}, fmt.Errorf("route message %s: %w", msg.ID, err)
	}
	if decision.Task != task {
		if err := h.store.SetTask(ctx, chatID, decision.Task); err != nil {
			return flow.Decision{}, fmt.Errorf("save task: %w", err)
		}
	}
	return decision, nil
}

// syncBotChat tags the chat as bot-managed. chat is updated in place so later replies to
// the same message skip what was already written.
func (h *InboundHandler) syncBotChat(ctx context.Context, device string, chat *models.Chat) {
	gw := h.opts.Gateway
	if gw == nil {
		return
	}
	if next, changed := gateway.ApplyLabels(chat.Labels, nil, h.opts.BotLabels); changed {
		if err := gw.UpdateChatLabels(ctx, device, chat.ID, next); err != nil {
			slog.Error("InboundHandler.syncBotChat: failed to update chat labels", "chatID", chat.ID, "error", err)
		} else {
			chat.Labels = next
		}
	}
	if entries := gateway.MetadataEntries(chat.Contact, h.opts.BotMetadata); len(entries) > 0 {
		if err := gw.UpdateContactMetadata(ctx, device, chat.ID, entries); err != nil {
			slog.Error("InboundHandler.syncBotChat: failed to update contact metadata", "chatID", chat.ID, "error", err)
		} else {
			chat.Contact.Metadata = append(chat.Contact.Metadata, entries...)
		}
	}
}

func (h *InboundHandler) handoff(ctx context.Context, chat models.Chat) {
	if h.opts.Assigner == nil {
		slog.Warn("InboundHandler.handoff: no assigner configured", "chatID", chat.ID)
		return
	}
	assign := func(ctx context.Context) error {
		member, err := h.opts.Assigner.Assign(ctx, chat)
		if err != nil {
			return err
		}
		if member != nil {
			slog.Info("InboundHandler.handoff: chat assigned", "chatID", chat.ID, "member", member.ID)
		}
		return nil
	}
	if h.opts.Queue != nil {
		if h.opts.Queue.Submit("assign:"+chat.ID, assign) {
			return
		}
		slog.Warn("InboundHandler.handoff: queue full, assigning inline", "chatID", chat.ID)
	}
	if err := assign(ctx); err != nil {
		slog.Error("InboundHandler.handoff: assignment failed", "chatID", chat.ID, "error", err)
	}
}

func (h *InboundHandler) markProcessed(ctx context.Context, messageID string) {
	if h.opts.Dedup == nil || messageID == "" {
		return
	}
	if err := h.opts.Dedup.MarkProcessed(ctx, messageID); err != nil {
		slog.Warn("InboundHandler.markProcessed failed", "messageID", messageID, "error", err)
	}
}
