// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the dispatcher over HTTP+JSON.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/docket/pkg/audit"
	"github.com/jllopis/docket/pkg/dispatcher"
	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/health"
	"github.com/jllopis/docket/pkg/llm"
	"github.com/jllopis/docket/pkg/telemetry"
)

const (
	defaultDecisionLimit = 50
	maxDecisionLimit     = 1000
	maxBodyBytes         = 1 << 20
)

// Chatter answers free chat requests.
type Chatter interface {
	Chat(ctx context.Context, text string) (string, error)
	ChatWithHistory(ctx context.Context, history []string, text string) (string, error)
}

// Server serves the docket API.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	chat       Chatter
	store      audit.Store
	health     *health.Provider
	validate   *validator.Validate
	metrics    *httpMetrics
	logger     *slog.Logger
	tracer     trace.Tracer
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithChat enables POST /v1/chat.
func WithChat(c Chatter) Option {
	return func(s *Server) { s.chat = c }
}

// WithAuditStore enables GET /v1/decisions.
func WithAuditStore(store audit.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithHealth replaces the health provider. A dispatcher readiness check
// is always registered on it.
func WithHealth(p *health.Provider) Option {
	return func(s *Server) { s.health = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the API around d.
func New(d *dispatcher.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		health:     health.NewProvider(),
		validate:   validator.New(),
		tracer:     otel.Tracer("docket/server"),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = telemetry.ComponentLogger(s.logger, "server")
	s.metrics = newHTTPMetrics(func() float64 { return float64(d.Len()) })
	s.health.Register("dispatcher", health.CheckerFunc(s.checkDispatcher))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("POST /v1/dispatch", "/v1/dispatch", s.handleDispatch)
	s.handle("GET /v1/roster", "/v1/roster", s.handleRoster)
	s.handle("POST /v1/roster", "/v1/roster", s.handleRegister)
	if s.chat != nil {
		s.handle("POST /v1/chat", "/v1/chat", s.handleChat)
	}
	if s.store != nil {
		s.handle("GET /v1/decisions", "/v1/decisions", s.handleDecisions)
	}
	s.handle("GET /healthz", "/healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.handler())
}

// handle wraps h with a server span and request metrics.
func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	traced := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "HTTP "+r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
		))
		defer span.End()
		h(w, r.WithContext(ctx))
	})
	s.mux.Handle(pattern, s.metrics.instrument(route, traced))
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "could not read request body", err)
	}
	if len(body) == 0 {
		return errors.New(errors.CodeInvalidInput, "empty body", nil)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid json body", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return errors.New(errors.CodeInvalidInput, "validation failed", err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, "Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.")
		}
		return errors.New(errors.CodeInvalidInput, "validation failed", nil).WithContext("fields", fields)
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, string(errors.CodeOf(err)))
	if errors.AsDocketError(err).StatusCode >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	dec, err := s.dispatcher.DispatchDecision(r.Context(), req.Proceeding)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDispatchResponse(dec))
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RosterResponse{
		People: s.dispatcher.Assignments(),
		Ready:  s.dispatcher.Ready(),
		Model:  s.dispatcher.ModelName(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.dispatcher.RegisterPerson(req.Name, req.Responsibilities); err != nil {
		s.fail(w, r, err)
		return
	}
	responsibilities := req.Responsibilities
	if responsibilities == nil {
		responsibilities = []string{}
	}
	writeJSON(w, http.StatusCreated, dispatcher.Assignment{Person: req.Name, Responsibilities: responsibilities})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		reply string
		err   error
	)
	if req.History == nil {
		reply, err = s.chat.Chat(r.Context(), req.Text)
	} else {
		var history []string
		history, err = llm.ParseHistory(req.History)
		if err == nil {
			reply, err = s.chat.ChatWithHistory(r.Context(), history, req.Text)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Person:         q.Get("person"),
		Responsibility: q.Get("responsibility"),
		Outcome:        q.Get("outcome"),
		Limit:          defaultDecisionLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxDecisionLimit {
			s.fail(w, r, errors.Newf(errors.CodeInvalidInput, "limit must be between 1 and %d", maxDecisionLimit))
			return
		}
		filter.Limit = limit
	}

	entries, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, errors.New(errors.CodeInternal, "could not list decisions", err))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, status := s.health.CheckAll(r.Context())
	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: string(status), Checks: results})
}

func (s *Server) checkDispatcher(context.Context) health.Result {
	if !s.dispatcher.Ready() {
		return health.Result{Status: health.StatusDegraded, Message: "model not initialized"}
	}
	return health.Result{Status: health.StatusHealthy, Message: "model " + s.dispatcher.ModelName()}
}
