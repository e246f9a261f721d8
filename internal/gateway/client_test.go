package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL+"/v1/"), WithAPIKey("secret-key"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error without API key")
	}
}

func TestClient_SendMessage(t *testing.T) {
	var gotBody map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "secret-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"m1","status":"queued","phone":"+1555"}`))
	})

	res, err := c.SendMessage(context.Background(), map[string]interface{}{"phone": "+1555", "message": "hi"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.ID != "m1" || res.Status != "queued" {
		t.Errorf("result = %+v", res)
	}
	if gotBody["message"] != "hi" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestClient_ErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":400,"message":"Invalid phone number"}`))
	})

	_, err := c.SendMessage(context.Background(), map[string]interface{}{"phone": "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid phone number" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !errors.Is(err, ErrGatewayStatus) {
		t.Error("APIError should match ErrGatewayStatus")
	}
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})
	err := c.DeleteWebhook(context.Background(), "w1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "" || apiErr.Body != "upstream down" {
		t.Errorf("err = %#v", err)
	}
}

func TestClient_ChatMutations(t *testing.T) {
	type call struct{ method, path, body string }
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(raw)})
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	if err := c.AssignChat(ctx, "dev", "123@c.us", "agent1"); err != nil {
		t.Fatal(err)
	}
	if err := c.UnassignChat(ctx, "dev", "123@c.us"); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateChatLabels(ctx, "dev", "123@c.us", []string{"bot"}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateContactMetadata(ctx, "dev", "123@c.us", []models.MetadataEntry{{Key: "k", Value: "v"}}); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{http.MethodPatch, "/v1/chat/dev/chats/123@c.us/owner", `{"agent":"agent1"}`},
		{http.MethodDelete, "/v1/chat/dev/chats/123@c.us/owner", ""},
		{http.MethodPatch, "/v1/chat/dev/chats/123@c.us/labels", `["bot"]`},
		{http.MethodPatch, "/v1/chat/dev/contacts/123@c.us/metadata", `[{"key":"k","value":"v"}]`},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestClient_ListTeam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/devices/dev1/team" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"m1","status":"active","role":"agent","availability":{"mode":"auto"},"lastSeenAt":"2024-03-01T10:00:00Z"}]`))
	})
	members, err := c.ListTeam(context.Background(), "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Availability.Mode != "auto" || members[0].LastSeenAt.IsZero() {
		t.Errorf("members = %+v", members)
	}
}
