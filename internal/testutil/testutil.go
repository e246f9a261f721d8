// Package testutil provides shared fixtures and assertions for ReplyPipe tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Fixture defaults.
const (
	TestChatID = "chat-1"
	TestPhone  = "+15550001111"
)

// EventOption customizes an inbound event fixture.
type EventOption func(*models.Event)

// Returning marks the chat as one the bot has written to before, so the welcome
// message is not triggered.
func Returning() EventOption {
	return func(e *models.Event) {
		last := time.Now().Add(-time.Hour)
		e.Data.Chat.LastOutboundMessageAt = &last
	}
}

// WithLabels sets the chat labels.
func WithLabels(labels ...string) EventOption {
	return func(e *models.Event) {
		e.Data.Chat.Labels = labels
	}
}

// WithDevice sets the device the event arrived on.
func WithDevice(id string) EventOption {
	return func(e *models.Event) {
		e.Device = &models.Device{ID: id}
	}
}

// WithEventName overrides the webhook event name.
func WithEventName(name string) EventOption {
	return func(e *models.Event) {
		e.Event = name
	}
}

// InboundEvent builds a message:in:new event for a direct text message from TestPhone.
func InboundEvent(id, body string, opts ...EventOption) *models.Event {
	e := &models.Event{
		Event: models.EventMessageInNew,
		Data: &models.Message{
			ID:         id,
			Type:       models.MessageTypeText,
			Body:       body,
			FromNumber: TestPhone,
			Chat: models.Chat{
				ID:         TestChatID,
				Type:       models.ChatTypeDirect,
				FromNumber: TestPhone,
				Contact:    models.Contact{Phone: TestPhone},
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssertHTTPStatus fails the test when actual differs from expected.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes the API envelope and checks its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	if resp.Status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, resp.Status)
	}
	return resp
}

// NewJSONRequest builds a request whose body is v marshaled to JSON. A string v is sent
// verbatim so tests can post malformed payloads.
func NewJSONRequest(t *testing.T, method, url string, v interface{}) *http.Request {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		body = MustMarshalJSON(t, v)
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals v and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
