package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSendRequest_KeepsExtraFields(t *testing.T) {
	var req SendRequest
	body := `{"phone":"+15550001111","message":"hi","device":"dev-1","media":{"url":"https://x/y.png"},"priority":"high"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if req.Phone != "+15550001111" || req.Message != "hi" || req.Device != "dev-1" {
		t.Errorf("known fields not decoded: %+v", req)
	}
	if len(req.Fields) != 2 || req.Fields["priority"] != "high" {
		t.Errorf("Fields = %v", req.Fields)
	}
	if _, ok := req.Fields["phone"]; ok {
		t.Error("known fields must not be duplicated in Fields")
	}
}

func TestSendRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"valid", SendRequest{Phone: "+15550001111", Message: "hi"}, nil},
		{"valid without plus", SendRequest{Phone: "15550001111", Message: "hi"}, nil},
		{"empty phone", SendRequest{Phone: " ", Message: "hi"}, ErrEmptyRecipient},
		{"empty message", SendRequest{Phone: "+1555", Message: "  "}, ErrEmptyMessage},
		{"too long", SendRequest{Phone: "+1555", Message: strings.Repeat("a", MaxSendMessageLength+1)}, ErrMessageTooLong},
		{"letters", SendRequest{Phone: "+1555abc", Message: "hi"}, ErrInvalidRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	var nilEvent *Event
	if err := nilEvent.Validate(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("nil event: %v", err)
	}
	if err := (&Event{Event: EventMessageInNew}).Validate(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("missing data: %v", err)
	}
	e := &Event{Event: EventMessageInNew, Data: &Message{ID: "m1"}}
	if err := e.Validate(); err != nil {
		t.Errorf("valid event: %v", err)
	}
	if !e.IsInboundMessage() {
		t.Error("expected inbound message")
	}
	e.Event = "message:out:new"
	if e.IsInboundMessage() {
		t.Error("outbound event reported as inbound")
	}
}

func TestMessage_NormalizedBody(t *testing.T) {
	m := &Message{Type: MessageTypeText, Body: "  hello  "}
	if got := m.NormalizedBody(); got != "hello" {
		t.Errorf("NormalizedBody = %q", got)
	}
	m = &Message{Type: MessageTypeListResponse, Body: "Reminders", Quoted: &Quoted{SelectedID: "2"}}
	if got := m.NormalizedBody(); got != "2" {
		t.Errorf("list response NormalizedBody = %q, want selected id", got)
	}
}

func TestChatHelpers(t *testing.T) {
	c := &Chat{Labels: []string{"bot", "vip"}}
	if c.IsOwned() {
		t.Error("chat without owner reported as owned")
	}
	c.Owner = &Owner{Agent: "agent-1"}
	if !c.IsOwned() {
		t.Error("chat with agent should be owned")
	}
	if !c.HasLabel("vip") || c.HasLabel("no-bot") {
		t.Error("HasLabel mismatch")
	}

	contact := Contact{Metadata: []MetadataEntry{{Key: "bot_start", Value: "x"}}}
	if !contact.HasMetadata("bot_start", "x") || contact.HasMetadata("bot_start", "y") {
		t.Error("HasMetadata should match key and value")
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if r := Success(nil); r.Status != string(APIStatusOK) || r.Result != nil {
		t.Errorf("Success = %+v", r)
	}
	if r := Ignored("skip"); r.Status != string(APIStatusIgnored) || r.Message != "skip" {
		t.Errorf("Ignored = %+v", r)
	}
	if r := Error("boom"); r.Status != string(APIStatusError) || r.Message != "boom" {
		t.Errorf("Error = %+v", r)
	}
	data, _ := json.Marshal(Success(nil))
	if string(data) != `{"status":"ok"}` {
		t.Errorf("Success(nil) JSON = %s", data)
	}
}

func TestPayloadKinds(t *testing.T) {
	payloads := map[PayloadKind]Payload{
		PayloadText:     TextPayload{Body: "a"},
		PayloadMedia:    MediaPayload{URL: "u"},
		PayloadLocation: LocationPayload{Address: "a"},
		PayloadContacts: ContactsPayload{},
		PayloadReaction: ReactionPayload{Emoji: "👍"},
		PayloadList:     ListPayload{},
		PayloadButtons:  ButtonsPayload{},
	}
	for kind, p := range payloads {
		if p.Kind() != kind {
			t.Errorf("%T.Kind() = %q, want %q", p, p.Kind(), kind)
		}
	}
}
