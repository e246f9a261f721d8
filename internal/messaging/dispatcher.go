// Package messaging delivers ReplyPipe replies and runs the inbound message pipeline.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// DefaultSendAttempts is how many times a message is tried before giving up.
const DefaultSendAttempts = 3

// Dispatcher sends outbound payloads through the gateway with bounded retry.
type Dispatcher struct {
	gw       gateway.Gateway
	device   string
	attempts int
}

// NewDispatcher creates a Dispatcher. device is used when an Outbound names none.
func NewDispatcher(gw gateway.Gateway, device string) *Dispatcher {
	return &Dispatcher{gw: gw, device: device, attempts: DefaultSendAttempts}
}

// Device returns the default sending device.
func (d *Dispatcher) Device() string {
	return d.device
}

// Send delivers out, retrying immediately on failure. It never returns an error: a false
// result means the message was not confirmed sent and every failure has been logged.
func (d *Dispatcher) Send(ctx context.Context, out models.Outbound) (*models.DeliveryResult, bool) {
	if out.Device == "" {
		out.Device = d.device
	}
	body, err := Encode(out)
	if err != nil {
		slog.Error("Dispatcher.Send: cannot encode message", "phone", out.Phone, "error", err)
		return nil, false
	}
	kind, preview := "raw", ""
	if out.Payload != nil {
		kind, preview = string(out.Payload.Kind()), out.Payload.Preview()
	}

	for attempt := 1; attempt <= d.attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		res, err := d.gw.SendMessage(ctx, body)
		if err == nil {
			metrics.SendAttempts.WithLabelValues(kind, "ok").Inc()
			slog.Info("Dispatcher.Send: message sent", "phone", out.Phone, "id", res.ID, "status", res.Status)
			return res, true
		}
		metrics.SendAttempts.WithLabelValues(kind, "error").Inc()
		slog.Error("Dispatcher.Send: failed to send message",
			"phone", out.Phone, "attempt", attempt, "preview", preview, "error", err)
	}
	metrics.MessagesUndelivered.WithLabelValues(kind).Inc()
	return nil, false
}

// Encode builds the gateway message request for out. Extra fields are merged last but
// cannot turn queueing back on.
func Encode(out models.Outbound) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"phone": out.Phone,
	}
	if out.Device != "" {
		body["device"] = out.Device
	}
	if out.DeliverAt != nil {
		body["deliverAt"] = out.DeliverAt.UTC().Format(time.RFC3339)
	}

	switch p := out.Payload.(type) {
	case models.TextPayload:
		body["message"] = p.Body
		if p.Quote != "" {
			body["quote"] = p.Quote
		}
	case models.MediaPayload:
		if p.Caption != "" {
			body["message"] = p.Caption
		}
		media := map[string]interface{}{"url": p.URL}
		if p.Format != "" {
			media["format"] = p.Format
		}
		body["media"] = media
	case models.LocationPayload:
		loc := map[string]interface{}{}
		if p.Address != "" {
			loc["address"] = p.Address
		}
		if len(p.Coordinates) > 0 {
			loc["coordinates"] = p.Coordinates
		}
		body["location"] = loc
	case models.ContactsPayload:
		body["contacts"] = p.Cards
	case models.ReactionPayload:
		body["reaction"] = p.Emoji
		body["reactionMessage"] = p.MessageID
	case models.ListPayload:
		body["list"] = map[string]interface{}{
			"description": p.Description,
			"title":       p.Title,
			"button":      p.Button,
			"footer":      p.Footer,
			"sections":    p.Sections,
		}
	case models.ButtonsPayload:
		body["message"] = p.Body
		if p.Header != "" {
			body["header"] = p.Header
		}
		if p.Footer != "" {
			body["footer"] = p.Footer
		}
		body["buttons"] = p.Buttons
	case nil:
		if len(out.Fields) == 0 {
			return nil, models.ErrEmptyMessage
		}
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}

	for k, v := range out.Fields {
		body[k] = v
	}
	body["enqueue"] = "never"
	return body, nil
}
