// Package gateway talks to the messaging gateway REST API (Wassenger compatible).
//
// Client covers devices, team members, labels, chat ownership, contact metadata,
// messages and webhooks. Directory caches team and label reads, and the bootstrap
// helpers validate the device and register the webhook at startup.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public gateway API endpoint.
const DefaultBaseURL = "https://api.wassenger.com/v1"

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 30 * time.Second

// ErrGatewayStatus is matched by every non-2xx gateway response.
var ErrGatewayStatus = errors.New("gateway returned an error status")

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string // "message" field of the error body, when present
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway status %d", e.Status)
}

func (e *APIError) Unwrap() error { return ErrGatewayStatus }

// Gateway is the set of gateway operations ReplyPipe relies on.
type Gateway interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListTeam(ctx context.Context, deviceID string) ([]models.Member, error)
	ListLabels(ctx context.Context, deviceID string) ([]models.Label, error)
	CreateLabel(ctx context.Context, deviceID string, label models.Label) (*models.Label, error)
	UpdateChatLabels(ctx context.Context, deviceID, chatID string, labels []string) error
	UpdateContactMetadata(ctx context.Context, deviceID, chatID string, entries []models.MetadataEntry) error
	AssignChat(ctx context.Context, deviceID, chatID, agentID string) error
	UnassignChat(ctx context.Context, deviceID, chatID string) error
	SendMessage(ctx context.Context, body map[string]interface{}) (*models.DeliveryResult, error)
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)
	CreateWebhook(ctx context.Context, webhook models.Webhook) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// Opts holds configuration options for the gateway client.
type Opts struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Option defines a configuration option for the gateway client.
type Option func(*Opts)

// WithBaseURL sets the gateway API base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the API key sent in the Authorization header.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is the REST implementation of Gateway.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient creates a gateway client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Gateway client config loaded", "BaseURL", cfg.BaseURL, "APIKey_set", cfg.APIKey != "")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key must be provided")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base URL: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    cfg.HTTPClient,
	}, nil
}

// do performs an authenticated JSON request. in may be nil; out may be nil to discard.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GatewayLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(raw)}
		if gjson.ValidBytes(raw) {
			apiErr.Message = gjson.GetBytes(raw, "message").String()
		}
		slog.Debug("Client.do: gateway error", "method", method, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) ListTeam(ctx context.Context, deviceID string) ([]models.Member, error) {
	var members []models.Member
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/team", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ListLabels(ctx context.Context, deviceID string) ([]models.Label, error) {
	var labels []models.Label
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Client) CreateLabel(ctx context.Context, deviceID string, label models.Label) (*models.Label, error) {
	var created models.Label
	if err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(deviceID)+"/labels", label, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func chatPath(deviceID, chatID, suffix string) string {
	return "/chat/" + url.PathEscape(deviceID) + "/chats/" + url.PathEscape(chatID) + suffix
}

// UpdateChatLabels replaces the label set of a chat.
func (c *Client) UpdateChatLabels(ctx context.Context, deviceID, chatID string, labels []string) error {
	return c.do(ctx, http.MethodPatch, chatPath(deviceID, chatID, "/labels"), labels, nil)
}

// UpdateContactMetadata upserts metadata entries on the chat's contact.
func (c *Client) UpdateContactMetadata(ctx context.Context, deviceID, chatID string, entries []models.MetadataEntry) error {
	path := "/chat/" + url.PathEscape(deviceID) + "/contacts/" + url.PathEscape(chatID) + "/metadata"
	return c.do(ctx, http.MethodPatch, path, entries, nil)
}

// AssignChat makes agentID the owner of the chat.
func (c *Client) AssignChat(ctx context.Context, deviceID, chatID, agentID string) error {
	return c.do(ctx, http.MethodPatch, chatPath(deviceID, chatID, "/owner"), map[string]string{"agent": agentID}, nil)
}

// UnassignChat clears the chat owner so the bot may answer again.
func (c *Client) UnassignChat(ctx context.Context, deviceID, chatID string) error {
	return c.do(ctx, http.MethodDelete, chatPath(deviceID, chatID, "/owner"), nil, nil)
}

// SendMessage posts a single message request. The body is the gateway's message shape.
func (c *Client) SendMessage(ctx context.Context, body map[string]interface{}) (*models.DeliveryResult, error) {
	var res models.DeliveryResult
	if err := c.do(ctx, http.MethodPost, "/messages", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

func (c *Client) CreateWebhook(ctx context.Context, webhook models.Webhook) (*models.Webhook, error) {
	var created models.Webhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", webhook, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(id), nil, nil)
}
