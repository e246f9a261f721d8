package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{http.MethodPost, "/webhook", "Receives gateway webhook events"},
	{http.MethodPost, "/message", "Sends a message to a phone number"},
	{http.MethodGet, "/sample", "Sends a sample message, optional phone and message query parameters"},
	{http.MethodDelete, "/chats/{chatID}/owner", "Returns an assigned chat to the bot"},
	{http.MethodGet, "/health", "Reports service health"},
	{http.MethodGet, "/metrics", "Prometheus metrics"},
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, models.SuccessWithMessage("ReplyPipe chatbot is running", endpoints))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, models.Success(map[string]interface{}{
		"device":        s.dispatcher.Device(),
		"queue_pending": s.queue.Pending(),
	}))
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		respondError(w, r, http.StatusBadRequest, "Invalid payload body")
		return
	}
	if err := event.Validate(); err != nil {
		slog.Warn("Server.webhookHandler: invalid event", "event", event.Event)
		respondError(w, r, http.StatusBadRequest, "Invalid payload body")
		return
	}
	if !event.IsInboundMessage() {
		slog.Debug("Server.webhookHandler: ignoring event", "event", event.Event)
		respond(w, r, http.StatusAccepted, models.Ignored(fmt.Sprintf("Ignore webhook event: only %s is accepted", models.EventMessageInNew)))
		return
	}

	if !s.inbound.Enqueue(s.queue, &event) {
		respondError(w, r, http.StatusServiceUnavailable, "Server busy, retry later")
		return
	}
	slog.Debug("Server.webhookHandler: event accepted", "messageID", event.Data.ID, "chatID", event.Data.Chat.ID)
	respond(w, r, http.StatusOK, models.Success(nil))
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		respondError(w, r, http.StatusBadRequest, "Invalid payload body")
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.messageHandler: validation failed", "error", err)
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.send(w, r, models.Outbound{
		Phone:   req.Phone,
		Device:  req.Device,
		Payload: models.TextPayload{Body: req.Message},
		Fields:  req.Fields,
	})
}

func (s *Server) sampleHandler(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		phone = s.devicePhone
	}
	message := r.URL.Query().Get("message")
	if message == "" {
		message = DefaultSampleMessage
	}
	req := models.SendRequest{Phone: phone, Message: message}
	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.send(w, r, models.Outbound{Phone: phone, Payload: models.TextPayload{Body: message}})
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, out models.Outbound) {
	res, ok := s.dispatcher.Send(r.Context(), out)
	if !ok {
		respondError(w, r, http.StatusBadGateway, "Failed to send message")
		return
	}
	slog.Info("Server.send: message sent", "phone", out.Phone, "id", res.ID)
	respond(w, r, http.StatusOK, models.Success(res))
}

func (s *Server) unassignHandler(w http.ResponseWriter, r *http.Request) {
	if s.unassigner == nil {
		respondError(w, r, http.StatusServiceUnavailable, "Member assignment is disabled")
		return
	}
	chatID := chi.URLParam(r, "chatID")
	if err := s.unassigner.Unassign(r.Context(), chatID); err != nil {
		slog.Error("Server.unassignHandler: unassign failed", "chatID", chatID, "error", err)
		respondError(w, r, http.StatusBadGateway, "Failed to unassign chat")
		return
	}
	slog.Info("Server.unassignHandler: chat returned to the bot", "chatID", chatID)
	respond(w, r, http.StatusOK, models.Success(map[string]string{"chat": chatID}))
}
