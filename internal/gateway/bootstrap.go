package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/util"
)

// Bootstrap errors. All of them are fatal at startup.
var (
	ErrInvalidDeviceID   = errors.New("device ID must be a 24 characters hexadecimal value")
	ErrDeviceOffline     = errors.New("device WhatsApp session is not online")
	ErrPlanUnsupported   = errors.New("device plan does not support inbound messages")
	ErrInvalidMemberID   = errors.New("team member ID must be a 24 characters hexadecimal value")
	ErrUnknownMember     = errors.New("team member does not exist")
	ErrWebhookNotCreated = errors.New("webhook could not be registered")
)

var hexID = regexp.MustCompile(`(?i)^[a-f0-9]{24}$`)

// LabelColors are the colors picked at random for labels created by the bot.
var LabelColors = []string{
	"tomato", "orange", "sunflower", "bubble",
	"rose", "poppy", "rouge", "raspberry",
	"purple", "lavender", "violet", "pool",
	"emerald", "kelly", "apple", "turquoise",
	"aqua", "gold", "latte", "cocoa",
}

const (
	maxLabelName     = 30
	labelDescription = "Automatically created label for the chatbot"
	webhookName      = "Chatbot"
)

// LoadDevice finds the device to use: the configured one when deviceID is set, otherwise
// the first operative device. Blank IDs or IDs with spaces count as unset placeholders.
func LoadDevice(ctx context.Context, gw Gateway, deviceID string) (*models.Device, error) {
	devices, err := gw.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID != "" && !strings.Contains(deviceID, " ") {
		if !hexID.MatchString(deviceID) {
			return nil, ErrInvalidDeviceID
		}
		for i := range devices {
			if devices[i].ID == deviceID {
				return &devices[i], nil
			}
		}
		return nil, models.ErrMissingDevice
	}
	for i := range devices {
		if devices[i].Status == models.DeviceStatusOperative {
			return &devices[i], nil
		}
	}
	return nil, models.ErrMissingDevice
}

// ValidateDevice checks the device can receive and answer messages.
func ValidateDevice(d *models.Device) error {
	if d.Session.Status != models.SessionStatusOnline {
		return fmt.Errorf("%w: %s (%s)", ErrDeviceOffline, d.Alias, d.ID)
	}
	if d.Billing.Subscription.Product != models.ProductInboundOutbound {
		return fmt.Errorf("%w: %s (%s)", ErrPlanUnsupported, d.Alias, d.ID)
	}
	return nil
}

// ValidateMembers checks every configured member ID is well formed and on the roster.
func ValidateMembers(members []models.Member, ids []string) error {
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}
	for _, id := range ids {
		if !hexID.MatchString(id) {
			return fmt.Errorf("%w: %q", ErrInvalidMemberID, id)
		}
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrUnknownMember, id)
		}
	}
	return nil
}

// EnsureLabels creates the required labels missing on the device and refreshes the label
// cache when anything was created. Individual creation failures are logged and skipped.
func EnsureLabels(ctx context.Context, dir *Directory, gw Gateway, required []string) ([]string, error) {
	labels, err := dir.Labels(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	existing := make(map[string]bool, len(labels))
	for _, l := range labels {
		existing[l.Name] = true
	}

	var missing []string
	seen := make(map[string]bool)
	for _, name := range required {
		if name == "" || existing[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}

	var created []string
	for _, name := range missing {
		slog.Info("EnsureLabels: creating missing label", "label", name)
		label := models.Label{
			Name:        strings.TrimSpace(truncate(name, maxLabelName)),
			Color:       util.PickRandom(LabelColors),
			Description: labelDescription,
		}
		if _, err := gw.CreateLabel(ctx, dir.DeviceID(), label); err != nil {
			slog.Error("EnsureLabels: failed to create label", "label", name, "error", err)
			continue
		}
		created = append(created, name)
	}
	if len(missing) > 0 {
		if _, err := dir.Labels(ctx, true); err != nil {
			return created, fmt.Errorf("refresh labels: %w", err)
		}
	}
	return created, nil
}

// RegisterWebhook makes sure an active message webhook points at baseURL + "/webhook".
// A matching webhook is reused; stale tunnel webhooks for the same base are deleted
// before a new one is created.
func RegisterWebhook(ctx context.Context, gw Gateway, baseURL, deviceID string) (*models.Webhook, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	target := baseURL + "/webhook"

	webhooks, err := gw.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for i := range webhooks {
		w := &webhooks[i]
		if w.URL == target && w.Device == deviceID && w.Status == "active" && hasEvent(w.Events, models.EventMessageInNew) {
			slog.Debug("RegisterWebhook: reusing webhook", "id", w.ID, "url", w.URL)
			return w, nil
		}
	}

	for _, w := range webhooks {
		if strings.Contains(w.URL, "ngrok-free.app") || strings.HasPrefix(w.URL, baseURL) {
			slog.Info("RegisterWebhook: deleting stale webhook", "id", w.ID, "url", w.URL)
			if err := gw.DeleteWebhook(ctx, w.ID); err != nil {
				return nil, fmt.Errorf("delete webhook %s: %w", w.ID, err)
			}
		}
	}

	created, err := gw.CreateWebhook(ctx, models.Webhook{
		URL:    target,
		Name:   webhookName,
		Events: []string{models.EventMessageInNew},
		Device: deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookNotCreated, err)
	}
	slog.Info("RegisterWebhook: webhook created", "id", created.ID, "url", created.URL)
	return created, nil
}

func hasEvent(events []string, event string) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
