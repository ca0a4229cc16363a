package api

import (
	"net/http"
	"time"
)

// RouteConfig controls the middleware wired around the handlers.
type RouteConfig struct {
	// AuthSecret enables the government-role token check on privileged
	// routes when non-empty.
	AuthSecret string
	// Limiter enforces per-client rate limits; nil disables limiting.
	Limiter Limiter
}

// Routes builds the HTTP handler: workflow operations, audit views and
// health, wrapped in request-id and rate-limit middleware. Tender
// creation, closing and stage approval additionally require the
// government role when auth is configured.
func (s *Service) Routes(cfg RouteConfig) http.Handler {
	mux := http.NewServeMux()

	government := func(h http.HandlerFunc) http.Handler {
		return RequireRole(cfg.AuthSecret, RoleGovernment, h)
	}

	mux.Handle("POST /tender", government(s.HandleCreateTender))
	mux.HandleFunc("POST /bid", s.HandleBid)
	mux.Handle("POST /close/{tenderId}", government(s.HandleClose))
	mux.HandleFunc("POST /submit-work/{tenderId}", s.HandleSubmitWork)
	mux.Handle("POST /approve-stage/{tenderId}", government(s.HandleApproveStage))
	mux.HandleFunc("POST /check-deadlines", s.HandleCheckDeadlines)

	mux.HandleFunc("GET /tenders", s.HandleListTenders)
	mux.HandleFunc("GET /tenders/{tenderId}", s.HandleGetTender)
	mux.HandleFunc("GET /bids/{tenderId}", s.HandleListBids)
	mux.HandleFunc("GET /chain", s.HandleChain)
	mux.HandleFunc("GET /chain/verify", s.HandleVerifyChain)
	mux.HandleFunc("GET /chain/export/{tenderId}", s.HandleExportBundle)
	mux.HandleFunc("GET /healthz", s.HandleHealth)

	var handler http.Handler = mux
	handler = s.logRequests(handler)
	if cfg.Limiter != nil {
		handler = RateLimit(cfg.Limiter, handler)
	}
	return RequestID(handler)
}

func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"request_id", w.Header().Get("X-Request-ID"),
		)
	})
}
