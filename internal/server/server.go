// Package server exposes the compositor over HTTP. The composite
// endpoint streams its PNG response chunk by chunk, so the server
// never buffers a whole output image.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jburnhams/image-stitch-sub000/internal/source"
	"github.com/jburnhams/image-stitch-sub000/pkg/compose"
	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
	"github.com/jburnhams/image-stitch-sub000/pkg/layout"
	"github.com/jburnhams/image-stitch-sub000/pkg/pixel"
)

// Server handles the composite API.
type Server struct {
	startTime time.Time
	version   string
	resolver  *source.Resolver
	logger    *log.Logger
}

// New creates a server. cache may be nil to disable remote-fetch
// memoization.
func New(version string, cache *decode.Cache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		resolver:  source.NewResolver("image-stitch/"+version, cache),
		logger:    logger,
	}
}

// Router builds the chi router with the standard middleware stack and
// the API routes mounted under /api/v1.
func (s *Server) Router(timeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	// CORS middleware for API access
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.GetHealth)
		r.Post("/composite", s.CreateComposite)
	})
	return r
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// CompositeRequest is the POST /composite body.
type CompositeRequest struct {
	Sources []string `json:"sources"`
	Layout  struct {
		Columns   int    `json:"columns,omitempty"`
		Rows      int    `json:"rows,omitempty"`
		MaxWidth  uint32 `json:"max_width,omitempty"`
		MaxHeight uint32 `json:"max_height,omitempty"`
	} `json:"layout"`
	Background string `json:"background,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// GetHealth implements the health check endpoint.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encode health response", "err", err)
	}
}

// CreateComposite implements the composite endpoint. Source images are
// fetched, composited per the requested layout and streamed back as
// image/png.
func (s *Server) CreateComposite(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	var req CompositeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON in request body", requestID)
		return
	}
	if len(req.Sources) == 0 {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one source is required", requestID)
		return
	}
	spec := layout.Spec{
		Columns:   req.Layout.Columns,
		Rows:      req.Layout.Rows,
		MaxWidth:  req.Layout.MaxWidth,
		MaxHeight: req.Layout.MaxHeight,
	}
	if spec.IsZero() {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"layout requires at least one of columns, rows, max_width, max_height", requestID)
		return
	}
	background, err := pixel.ParseColor(req.Background)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
		return
	}

	inputs := make([]decode.Decoder, 0, len(req.Sources))
	closeAll := func() {
		for _, d := range inputs {
			d.Close()
		}
	}
	for i, src := range req.Sources {
		dec, err := s.resolver.Open(r.Context(), src)
		if err != nil {
			closeAll()
			s.writeError(w, http.StatusBadGateway, "SOURCE_ERROR",
				fmt.Sprintf("source %d: %v", i, err), requestID)
			return
		}
		inputs = append(inputs, dec)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)

	err = compose.Stream(r.Context(), compose.Options{
		Inputs:     inputs,
		Layout:     spec,
		Background: background,
		Logger:     s.logger,
	}, w)
	if err != nil {
		// Headers are already written; all we can do is cut the stream
		// short and log.
		var dim *compose.DimensionMismatchError
		if errors.As(err, &dim) {
			s.logger.Error("composite aborted", "request_id", requestID, "source", dim.Source, "err", err)
		} else {
			s.logger.Error("composite failed", "request_id", requestID, "err", err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	}); err != nil {
		s.logger.Error("encode error response", "err", err)
	}
}
