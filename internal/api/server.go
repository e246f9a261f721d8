// Package api provides the HTTP surface of ReplyPipe: the gateway webhook receiver, the
// on-demand send endpoints and operational routes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/ReplyPipe/internal/messaging"
)

// Server defaults.
const (
	DefaultAddr          = ":8080"
	DefaultSampleMessage = "Hello World from Wassenger!"
	shutdownTimeout      = 10 * time.Second
	maxBodyBytes         = 1 << 20
)

// Unassigner releases a chat from its team member so the bot handles it again.
type Unassigner interface {
	Unassign(ctx context.Context, chatID string) error
}

// Opts holds configuration options for the Server.
type Opts struct {
	Addr        string
	DevicePhone string // default recipient of GET /sample
	Unassigner  Unassigner
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithDevicePhone sets the phone number the sample endpoint sends to by default.
func WithDevicePhone(phone string) Option {
	return func(o *Opts) {
		o.DevicePhone = phone
	}
}

// WithUnassigner enables DELETE /chats/{chatID}/owner.
func WithUnassigner(u Unassigner) Option {
	return func(o *Opts) {
		o.Unassigner = u
	}
}

// Server serves the ReplyPipe HTTP API.
type Server struct {
	inbound     *messaging.InboundHandler
	dispatcher  *messaging.Dispatcher
	queue       *messaging.TaskQueue
	unassigner  Unassigner
	addr        string
	devicePhone string
	router      chi.Router
}

// NewServer wires the routes. Webhook events are processed on queue.
func NewServer(inbound *messaging.InboundHandler, dispatcher *messaging.Dispatcher, queue *messaging.TaskQueue, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		inbound:     inbound,
		dispatcher:  dispatcher,
		queue:       queue,
		unassigner:  cfg.Unassigner,
		addr:        cfg.Addr,
		devicePhone: cfg.DevicePhone,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(chimw.RequestSize(maxBodyBytes))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.indexHandler)
	r.Get("/health", s.healthHandler)
	r.Post("/webhook", s.webhookHandler)
	r.Post("/message", s.messageHandler)
	r.Get("/sample", s.sampleHandler)
	r.Delete("/chats/{chatID}/owner", s.unassignHandler)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
