package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/flow"
	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/messaging"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/store"
	"github.com/BTreeMap/ReplyPipe/internal/testutil"
)

type fakeUnassigner struct {
	chats []string
	err   error
}

func (f *fakeUnassigner) Unassign(ctx context.Context, chatID string) error {
	f.chats = append(f.chats, chatID)
	return f.err
}

type testServer struct {
	gw     *gateway.MockClient
	queue  *messaging.TaskQueue
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewInMemoryStore()
	gw := gateway.NewMockClient()
	dispatcher := messaging.NewDispatcher(gw, "dev-1")
	router := flow.NewRouter(st, flow.WithLocation(time.UTC))
	inbound := messaging.NewInboundHandler(st, router, dispatcher, messaging.WithDedup(st))
	q := messaging.NewTaskQueue(messaging.WithWorkers(1), messaging.WithQueueSize(8))
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return &testServer{
		gw:     gw,
		queue:  q,
		server: NewServer(inbound, dispatcher, q, WithDevicePhone("+15559990000")),
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, testutil.NewJSONRequest(t, method, path, body))
	return rr
}

func TestWebhook_InvalidPayload(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []string{`not json`, `{}`, `{"event":"message:in:new"}`} {
		rr := ts.do(t, http.MethodPost, "/webhook", body)
		testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, body)
		resp := testutil.AssertJSONResponse(t, rr, models.APIStatusError)
		if resp.Message != "Invalid payload body" {
			t.Errorf("body %q: message = %q", body, resp.Message)
		}
	}
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/webhook", testutil.InboundEvent("m1", "hi", testutil.WithEventName("message:out:new")))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "outbound event")
	testutil.AssertJSONResponse(t, rr, models.APIStatusIgnored)
}

func TestWebhook_AcceptsInboundMessage(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/webhook", testutil.InboundEvent("m1", "hi"))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "inbound event")
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %s", rr.Body.String())
	}

	ts.queue.Stop()
	sent := ts.gw.SentMessages()
	if len(sent) != 1 || sent[0]["phone"] != testutil.TestPhone {
		t.Errorf("expected a welcome reply, got %v", sent)
	}
}

func TestMessage_Validation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"missing phone", `{"message":"hi"}`},
		{"missing message", `{"phone":"+1555"}`},
		{"bad phone", `{"phone":"abc","message":"hi"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/message", tt.body)
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
			testutil.AssertJSONResponse(t, rr, models.APIStatusError)
		})
	}
}

func TestMessage_SendsWithExtraFields(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/message", map[string]string{
		"phone":    testutil.TestPhone,
		"message":  "hello",
		"priority": "high",
	})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "send")
	testutil.AssertJSONResponse(t, rr, models.APIStatusOK)

	sent := ts.gw.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0]["message"] != "hello" || sent[0]["priority"] != "high" || sent[0]["enqueue"] != "never" {
		t.Errorf("unexpected request: %v", sent[0])
	}
}

func TestMessage_GatewayFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.gw.FailSends = messaging.DefaultSendAttempts
	rr := ts.do(t, http.MethodPost, "/message", `{"phone":"+15550001111","message":"hello"}`)
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "gateway failure")
	if resp := testutil.AssertJSONResponse(t, rr, models.APIStatusError); resp.Message != "Failed to send message" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSample_Defaults(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/sample", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "sample")
	sent := ts.gw.SentMessages()
	if len(sent) != 1 || sent[0]["phone"] != "+15559990000" || sent[0]["message"] != DefaultSampleMessage {
		t.Errorf("unexpected sample request: %v", sent)
	}
}

func TestSample_QueryOverrides(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/sample?phone=%2B15550001111&message=yo", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "sample")
	if sent := ts.gw.SentMessages(); len(sent) != 1 || sent[0]["phone"] != testutil.TestPhone || sent[0]["message"] != "yo" {
		t.Errorf("unexpected sample request: %v", sent)
	}
}

func TestIndexHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/", "/health", "/metrics"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET "+path)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/nope", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown route")
}

func TestRecoverer_WritesJSONError(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "panic")
	if resp := testutil.AssertJSONResponse(t, rr, models.APIStatusError); resp.Message != "Unexpected error: kaboom" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestUnassign(t *testing.T) {
	dispatcher := messaging.NewDispatcher(gateway.NewMockClient(), "dev-1")

	t.Run("returns chat to the bot", func(t *testing.T) {
		u := &fakeUnassigner{}
		srv := NewServer(nil, dispatcher, nil, WithUnassigner(u))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, testutil.NewJSONRequest(t, http.MethodDelete, "/chats/chat-9/owner", nil))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "unassign")
		testutil.AssertJSONResponse(t, rr, models.APIStatusOK)
		if len(u.chats) != 1 || u.chats[0] != "chat-9" {
			t.Errorf("unassigned = %v", u.chats)
		}
	})

	t.Run("gateway failure", func(t *testing.T) {
		srv := NewServer(nil, dispatcher, nil, WithUnassigner(&fakeUnassigner{err: errors.New("boom")}))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, testutil.NewJSONRequest(t, http.MethodDelete, "/chats/chat-9/owner", nil))
		testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "unassign failure")
		testutil.AssertJSONResponse(t, rr, models.APIStatusError)
	})

	t.Run("disabled without an unassigner", func(t *testing.T) {
		srv := NewServer(nil, dispatcher, nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, testutil.NewJSONRequest(t, http.MethodDelete, "/chats/chat-9/owner", nil))
		testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rr.Code, "unassign disabled")
	})
}
