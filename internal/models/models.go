// Package models defines the core data structures for ReplyPipe.
//
// It includes the inbound webhook shapes, conversation state, outbound payloads and the
// JSON envelope used by the HTTP API. These types are shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventMessageInNew is the only webhook event that triggers message processing.
const EventMessageInNew = "message:in:new"

// Validation constants for the on-demand send endpoint
const (
	// MaxSendMessageLength defines the maximum allowed length for on-demand message bodies
	MaxSendMessageLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrInvalidPayload   = errors.New("invalid payload body")
	ErrEmptyRecipient   = errors.New("phone cannot be empty")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrInvalidRecipient = errors.New("phone must contain only digits with an optional leading +")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrMissingDevice    = errors.New("no gateway device available")
)

// Event is an inbound webhook call from the gateway.
type Event struct {
	ID     string   `json:"id,omitempty"`
	Event  string   `json:"event"`
	Data   *Message `json:"data"`
	Device *Device  `json:"device,omitempty"`
}

// Validate checks that the webhook carries the minimum fields needed for routing.
func (e *Event) Validate() error {
	if e == nil || e.Event == "" || e.Data == nil {
		return ErrInvalidPayload
	}
	return nil
}

// IsInboundMessage reports whether the event should be processed by the engine.
func (e *Event) IsInboundMessage() bool {
	return e.Event == EventMessageInNew
}

// SendRequest is the body accepted by the on-demand send endpoint.
// Optional gateway fields (media, list, buttons...) are forwarded untouched in Fields.
type SendRequest struct {
	Phone   string                 `json:"phone"`
	Message string                 `json:"message"`
	Device  string                 `json:"device,omitempty"`
	Fields  map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps every other field for forwarding.
func (r *SendRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Phone, _ = raw["phone"].(string)
	r.Message, _ = raw["message"].(string)
	r.Device, _ = raw["device"].(string)
	delete(raw, "phone")
	delete(raw, "message")
	delete(raw, "device")
	if len(raw) > 0 {
		r.Fields = raw
	}
	return nil
}

// Validate performs validation on a SendRequest.
func (r *SendRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrEmptyRecipient
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxSendMessageLength {
		return ErrMessageTooLong
	}
	phone := strings.TrimPrefix(strings.TrimSpace(r.Phone), "+")
	for _, c := range phone {
		if c < '0' || c > '9' {
			return ErrInvalidRecipient
		}
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusIgnored indicates the request was accepted but intentionally not processed.
	APIStatusIgnored APIStatus = "ignored"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Ignored creates a response for accepted-but-dropped requests.
func Ignored(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusIgnored).
		WithMessage(message).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
