package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"venue-router/internal/features"
	"venue-router/internal/marketdata"
	"venue-router/internal/storage"
)

// QuoteSource supplies the latest NBBO snapshot for a symbol, used to fill
// in quote fields for route requests that omit them.
type QuoteSource interface {
	Latest(symbol string) (marketdata.Quote, bool)
}

// DecisionWriter persists routing decisions for audit and training.
type DecisionWriter interface {
	StoreDecision(storage.DecisionRecord) error
}

// Server provides the HTTP routing API.
type Server struct {
	router    *Router
	quotes    QuoteSource
	decisions DecisionWriter
	server    *http.Server
}

// RouteRequest is the incoming routing request.
type RouteRequest struct {
	features.OrderRequest
	RequestID string `json:"request_id,omitempty"`
}

// RouteResponse carries the selected venue and its predicted improvement.
type RouteResponse struct {
	Venue                string    `json:"venue"`
	PredictedImprovement float64   `json:"predicted_improvement"`
	RequestID            string    `json:"request_id,omitempty"`
	Latency              float64   `json:"latency_ms"`
	Timestamp            time.Time `json:"timestamp"`
}

// NewServer creates the routing HTTP server. quotes and decisions may be nil
// when no quote feed or persistence is configured.
func NewServer(r *Router, quotes QuoteSource, decisions DecisionWriter, port int) *Server {
	s := &Server{
		router:    r,
		quotes:    quotes,
		decisions: decisions,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/registry/info", s.handleRegistryInfo)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting route server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if req.Side == "" {
		http.Error(w, "side is required", http.StatusBadRequest)
		return
	}

	// Fill missing NBBO fields from the quote feed when available.
	if req.BidPrice == 0 && req.AskPrice == 0 && s.quotes != nil {
		if q, ok := s.quotes.Latest(req.Symbol); ok {
			req.BidPrice = q.BidPrice
			req.AskPrice = q.AskPrice
			req.BidSize = q.BidSize
			req.AskSize = q.AskSize
		}
	}

	venue, improvement, err := s.router.BestPriceImprovement(req.OrderRequest)
	if err != nil {
		log.Error().Err(err).Str("symbol", req.Symbol).Msg("routing failed")
		http.Error(w, fmt.Sprintf("routing failed: %v", err), http.StatusInternalServerError)
		return
	}

	if s.decisions != nil {
		rec := storage.DecisionRecord{
			Symbol:     req.Symbol,
			Side:       req.Side,
			Quantity:   req.Quantity,
			Venue:      venue,
			Prediction: improvement,
			Timestamp:  time.Now(),
		}
		if err := s.decisions.StoreDecision(rec); err != nil {
			log.Warn().Err(err).Msg("failed to persist routing decision")
		}
	}

	resp := RouteResponse{
		Venue:                venue,
		PredictedImprovement: improvement,
		RequestID:            req.RequestID,
		Latency:              float64(time.Since(start).Milliseconds()),
		Timestamp:            time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg, err := s.router.Registry()

	status := http.StatusOK
	body := map[string]interface{}{"healthy": true}
	if err != nil || reg.Len() == 0 {
		status = http.StatusServiceUnavailable
		body["healthy"] = false
		if err != nil {
			body["error"] = err.Error()
		} else {
			body["error"] = ErrEmptyRegistry.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleRegistryInfo(w http.ResponseWriter, r *http.Request) {
	reg, err := s.router.Registry()
	if err != nil {
		http.Error(w, fmt.Sprintf("registry unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}

	info := map[string]interface{}{
		"version":    reg.Version(),
		"trained_at": reg.TrainedAt(),
		"venues":     reg.Venues(),
		"columns":    features.Columns,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
