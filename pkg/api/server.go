package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/metrics"
	"github.com/rs/zerolog"
)

const contentTypeHTML = "text/html; charset=utf-8"

// Server serves the asset directory with an entry-document fallback
type Server struct {
	resolver *assets.Resolver
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	router   *mux.Router
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a new asset server. m may be nil.
func NewServer(resolver *assets.Resolver, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		resolver: resolver,
		metrics:  m,
		logger:   logger.With().Str("component", "http-server").Logger(),
		router:   mux.NewRouter(),
	}

	// fsName cleans paths itself; mux would otherwise redirect //a and /a/./b.
	s.router.SkipClean(true)

	// Every GET/HEAD path goes through two-tier resolution; other methods get 405.
	s.router.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).HandlerFunc(s.ServeAsset)

	return s
}

// ServeAsset answers with the matching static file or, on a miss, the entry
// document
func (s *Server) ServeAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.resolver.Resolve(r.URL.Path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to resolve asset")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := asset.Close(); err != nil {
			s.logger.Warn().Err(err).Str("name", asset.Name).Msg("error closing asset")
		}
	}()

	setOutcome(r, asset.Outcome)

	h := w.Header()
	h.Set("ETag", asset.ETag())
	h.Set("Cache-Control", cacheControl(asset))
	if asset.Outcome == assets.OutcomeFallback {
		h.Set("Content-Type", contentTypeHTML)
	}

	http.ServeContent(w, r, asset.Name, asset.ModTime, asset.Content)
}

// Handler returns the router wrapped in request id, logging, metrics and
// recovery middleware
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = recovery(s.logger)(h)
	h = instrument(s.logger, s.metrics)(h)
	h = withRequestID(h)
	return h
}

// Helper methods
func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, error, message string) {
	resp := ErrorResponse{
		Error:   error,
		Message: message,
	}
	sendJSON(w, status, resp)
}
