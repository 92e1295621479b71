package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/verifier"
)

/*
Server exposes the twin verifier over HTTP and serves the static docs site.

  GET  /              static files from the docs directory
  POST /api/validate  { documentUrl } or { document } -> Validation
  GET  /api/status    state of the validation state machine
  POST /api/reset     done -> idle
  GET  /api/proof     ?hash=0x.. -> proof lookup in the current tree

API requests share one token bucket; requests over the limit get 429.
Remote documents are capped at the inline body limit and, when DocumentHosts
is set, only fetched from those hosts.
*/

// Validator is the verifier surface the server needs
type Validator interface {
	ValidateTwin(ctx context.Context, loader twin.DocumentLoader) (*verifier.Validation, error)
	GetMerkleProof(ctx context.Context, hash [32]byte) (*verifier.Proof, error)
	Status() *types.StatusResponseV1
	Reset() error
}

type Config struct {
	Port    int
	DocsDir string

	// Timeout bounds each API request
	Timeout time.Duration

	// RequestsPerSecond of zero disables rate limiting
	RequestsPerSecond float64
	Burst             int

	// DocumentHosts restricts documentUrl hosts; empty allows any
	DocumentHosts []string
}

type Server struct {
	validator     Validator
	limiter       *rate.Limiter
	timeout       time.Duration
	documentHosts map[string]struct{}
	logger        *zap.Logger
	httpServer    *http.Server
}

// NewServer creates a new server instance
func NewServer(validator Validator, cfg Config, logger *zap.Logger) *Server {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		validator: validator,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
	if len(cfg.DocumentHosts) > 0 {
		s.documentHosts = make(map[string]struct{}, len(cfg.DocumentHosts))
		for _, h := range cfg.DocumentHosts {
			s.documentHosts[h] = struct{}{}
		}
	}

	mux := http.NewServeMux()

	// Verifier API
	mux.Handle("/api/validate", s.rateLimited(s.handleValidate))
	mux.Handle("/api/status", s.rateLimited(s.handleStatus))
	mux.Handle("/api/reset", s.rateLimited(s.handleReset))
	mux.Handle("/api/proof", s.rateLimited(s.handleProof))

	// Static docs site
	if cfg.DocsDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.DocsDir)))
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	})
}

func (s *Server) documentHostAllowed(documentURL string) bool {
	if s.documentHosts == nil {
		return true
	}
	u, err := url.Parse(documentURL)
	if err != nil {
		return false
	}
	_, ok := s.documentHosts[u.Hostname()]
	return ok
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}
