// Package server implements the relay HTTP server: it hands out
// session ids and streams provider replies to clients over SSE.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ferre795/chatrelay/internal/metrics"
	"github.com/ferre795/chatrelay/pkg/provider"
)

// Options configures the relay server.
type Options struct {
	Host string // default "127.0.0.1"
	Port int    // default 8080

	// RateLimitPerMinute is the per-client request budget, 0 keeps the
	// default of 60
	RateLimitPerMinute int

	// SessionTTL expires idle conversation contexts, 0 keeps the
	// default of 2h
	SessionTTL time.Duration

	// Model names the upstream model for every turn
	Model string

	// MaxTokens caps reply length, 0 keeps the provider default
	MaxTokens int
}

// Server is the relay HTTP server.
type Server struct {
	options       Options
	server        *http.Server
	provider      provider.Provider
	conversations *Conversations
	rateLimiter   *RateLimiter
	metrics       *metrics.Metrics
	cron          *cron.Cron
	logger        zerolog.Logger
	startTime     time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a relay server for the given provider.
func NewServer(options Options, p provider.Provider, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.Port == 0 {
		options.Port = 8080
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 60
	}
	if options.SessionTTL == 0 {
		options.SessionTTL = 2 * time.Hour
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	return &Server{
		options:       options,
		provider:      p,
		conversations: NewConversations(options.SessionTTL),
		rateLimiter:   NewRateLimiter(options.RateLimitPerMinute),
		metrics:       m,
		logger:        logger.With().Str("component", "server").Logger(),
		startTime:     time.Now(),
	}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.options.Host, s.options.Port)
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/new-session", s.withRequest(s.handleNewSession))
	mux.HandleFunc("/api/chat", s.withRequest(s.handleChat))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Start runs the server until Stop is called. It blocks.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.Addr(),
		Handler: s.Handler(),
	}

	// Expire idle conversation contexts in the background
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every 5m", s.pruneConversations); err != nil {
		return fmt.Errorf("failed to schedule context pruning: %w", err)
	}
	s.cron.Start()

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("provider", s.provider.Name()).
		Msg("Starting relay server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start relay server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting for in-flight streams.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down relay server")

	if s.cron != nil {
		s.cron.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown relay server: %w", err)
		}
	}

	s.logger.Info().Msg("Relay server stopped")
	return nil
}

func (s *Server) pruneConversations() {
	if dropped := s.conversations.Prune(); dropped > 0 {
		s.metrics.SessionsActive.Set(float64(s.conversations.Len()))
		s.logger.Info().Int("dropped", dropped).Msg("Pruned idle conversation contexts")
	}
}

// withRequest wraps a handler with the shared request plumbing:
// shutdown refusal, in-flight tracking, rate limiting, and a request id
// for log correlation.
func (s *Server) withRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		ip := clientIP(r)
		if !s.rateLimiter.Allow(ip) {
			retryAfter := s.rateLimiter.RetryAfter(ip)
			s.metrics.RateLimitedRequests.Inc()
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		reqID, err := gonanoid.New()
		if err != nil {
			reqID = "unknown"
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)

		next(w, r.WithContext(ctx))
	}
}

type requestIDKey struct{}

// requestID returns the request's correlation id, empty when absent.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
