package server

import (
	"net/http"
	"strings"

	"recroai/internal/observability"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes and middleware. Health and stats
// are public; everything else sits behind rate limiting, API key auth and
// the request size limit, in that order.
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, "Not found", "no route for "+r.URL.Path, http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, "Method not allowed", r.Method+" is not supported on "+r.URL.Path, http.StatusMethodNotAllowed)
	})

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(s.rateLimitMiddleware(om), s.authMiddleware, s.requestSizeLimitMiddleware)

	api.HandleFunc("/jobs", s.listJobsHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}", s.putJobHandler).Methods(http.MethodPut)
	api.HandleFunc("/jobs/{jobID}", s.getJobHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}/candidates", s.submitCandidatesHandler).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{jobID}/runs", s.createRunHandler(om)).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{jobID}/shortlist", s.shortlistHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}/analytics", s.analyticsHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}/notifications", s.jobNotificationsHandler).Methods(http.MethodPost)

	api.HandleFunc("/runs", s.activeRunsHandler).Methods(http.MethodGet)
	api.HandleFunc("/runs/{runID}", s.getRunHandler).Methods(http.MethodGet)
	api.HandleFunc("/runs/{runID}", s.cancelRunHandler).Methods(http.MethodDelete)

	api.HandleFunc("/notifications/compose", s.composeHandler).Methods(http.MethodPost)

	return router
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if s.apiKeys.len() == 0 {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.apiKeys.has(apiKey) {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next.ServeHTTP(w, r)
	})
}

// requestAPIKey reads X-API-Key, falling back to a Bearer token
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

// routeTemplate is the matched route pattern, so metrics do not carry ids
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
