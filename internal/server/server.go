// Package server exposes de-identification over HTTP: PDF, plain text and
// image uploads come back redacted, alongside entity listing and face
// statistics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/alzaheer/privacyshield/analyzer"
	"github.com/alzaheer/privacyshield/faceblur"
	"github.com/alzaheer/privacyshield/internal/otel"
	"github.com/alzaheer/privacyshield/redact"
)

const (
	defaultMaxUpload = 50 << 20
	// Text and entity requests are short; PDF runs get no route timeout.
	shortTimeout = 60 * time.Second
)

// FaceBlurrer blurs faces in encoded images. *faceblur.Blurrer implements it.
type FaceBlurrer interface {
	Blur(ctx context.Context, data []byte) []byte
	Stats(data []byte) (faceblur.Stats, error)
	Preview(data []byte) []byte
}

// Server holds the dependencies of the HTTP API.
type Server struct {
	router    *chi.Mux
	assembler *redact.Assembler
	analyzer  analyzer.Analyzer
	blurrer   FaceBlurrer
	defaults  redact.Options
	limiter   *rate.Limiter
	maxUpload int64
	version   string
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimit caps requests across all clients at rps per second with
// the given burst. A zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxUploadBytes sets the largest accepted request body.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithDefaults sets the options used when a request does not override them.
func WithDefaults(opts redact.Options) Option {
	return func(s *Server) { s.defaults = opts }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds a Server. The analyzer serves the text and entity
// endpoints; the assembler must have been built with the same analyzer
// and blurrer.
func NewServer(assembler *redact.Assembler, a analyzer.Analyzer, blurrer FaceBlurrer, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		assembler: assembler,
		analyzer:  a,
		blurrer:   blurrer,
		defaults:  redact.DefaultOptions(),
		maxUpload: defaultMaxUpload,
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the chi router with all middleware and routes.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(BodyLimitMiddleware(s.maxUpload))

		r.Post("/v1/deidentify/pdf", s.handlePDF)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(shortTimeout))
			r.Get("/v1/entities", s.handleEntities)
			r.Post("/v1/deidentify/text", s.handleText)
			r.Post("/v1/deidentify/image", s.handleImage)
			r.Post("/v1/faces/stats", s.handleFaceStats)
		})
	})
	return r
}
