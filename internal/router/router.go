// Package router scores candidate orders against per-venue price-improvement
// regression models and selects the venue with the best predicted improvement.
//
// The model registry is loaded from a JSON artifact produced by the trainer.
// Loading is lazy and guarded so concurrent first calls perform a single
// disk read; after that the registry is shared read-only for the process
// lifetime.
package router

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"venue-router/internal/features"
)

var (
	// ErrEmptyRegistry is returned when the artifact loads with zero venues.
	ErrEmptyRegistry = errors.New("router: model registry has no venues")

	// ErrNoSelection is returned when the scoring scan finishes without
	// choosing a venue, which happens only when every prediction was
	// unusable (non-finite or failed).
	ErrNoSelection = errors.New("router: no venue produced a usable prediction")
)

// Regressor produces a scalar predicted price improvement from a feature row
// laid out per features.Columns.
type Regressor interface {
	Predict(row []float64) (float64, error)
}

// MetricsInterface defines the metrics methods needed by the router.
type MetricsInterface interface {
	RoutePredictionsInc()
	RouteFailuresInc()
	RouteLatencyObserve(float64)
	PredictionScoresObserve(float64)
	RegistrySizeSet(float64)
	ModelAgeSet(float64)
}

// Registry maps venue identifiers to their price-improvement models.
// It is immutable after construction.
type Registry struct {
	models    map[string]Regressor
	venues    []string
	version   string
	trainedAt time.Time
}

// NewRegistry builds a registry from an explicit venue-to-model mapping.
// Venue order is fixed to sorted identifiers so tie-breaks are stable.
func NewRegistry(models map[string]Regressor) *Registry {
	venues := make([]string, 0, len(models))
	for v := range models {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	return &Registry{models: models, venues: venues}
}

// Len returns the number of venues in the registry.
func (r *Registry) Len() int { return len(r.models) }

// Venues returns venue identifiers in sorted order.
func (r *Registry) Venues() []string { return r.venues }

// Model returns the regressor for a venue.
func (r *Registry) Model(venue string) (Regressor, bool) {
	m, ok := r.models[venue]
	return m, ok
}

// Version reports the artifact version the registry was loaded from.
func (r *Registry) Version() string { return r.version }

// TrainedAt reports when the loaded models were trained.
func (r *Registry) TrainedAt() time.Time { return r.trainedAt }

// Router selects the best venue for an order using a lazily loaded registry.
type Router struct {
	path    string
	metrics MetricsInterface

	loadOnce sync.Once
	loadErr  error
	registry *Registry
}

// New creates a router that loads its registry from the artifact at path on
// first use.
func New(path string, metrics MetricsInterface) *Router {
	return &Router{path: path, metrics: metrics}
}

// NewWithRegistry creates a router around an already-constructed registry.
// No disk access happens; useful for tests and embedding.
func NewWithRegistry(reg *Registry, metrics MetricsInterface) *Router {
	return &Router{registry: reg, metrics: metrics}
}

// Registry returns the venue model registry, loading it from disk exactly
// once. Concurrent first calls share a single load.
func (r *Router) Registry() (*Registry, error) {
	r.loadOnce.Do(func() {
		if r.registry != nil {
			return // injected
		}
		reg, err := LoadRegistry(r.path)
		if err != nil {
			r.loadErr = err
			return
		}
		r.registry = reg
		if r.metrics != nil {
			r.metrics.RegistrySizeSet(float64(reg.Len()))
			if !reg.trainedAt.IsZero() {
				r.metrics.ModelAgeSet(time.Since(reg.trainedAt).Seconds())
			}
		}
	})
	return r.registry, r.loadErr
}

// BestPriceImprovement scores the order against every venue model and
// returns the venue with the highest predicted price improvement together
// with that prediction.
//
// The running maximum uses strict greater-than, so on exact ties the first
// venue in sorted order wins. Non-finite and failed predictions are skipped;
// if nothing usable remains, ErrNoSelection is returned.
func (r *Router) BestPriceImprovement(order features.OrderRequest) (string, float64, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RouteLatencyObserve(time.Since(start).Seconds())
		}
	}()

	reg, err := r.Registry()
	if err != nil {
		r.failure()
		return "", 0, err
	}
	if reg.Len() == 0 {
		r.failure()
		return "", 0, ErrEmptyRegistry
	}

	row := order.Row()

	best := ""
	bestPred := math.Inf(-1)
	for _, venue := range reg.Venues() {
		model, _ := reg.Model(venue)

		pred, err := model.Predict(row)
		if err != nil {
			log.Warn().Err(err).Str("venue", venue).Str("symbol", order.Symbol).Msg("venue model prediction failed")
			continue
		}
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			log.Warn().Str("venue", venue).Float64("prediction", pred).Msg("discarding non-finite prediction")
			continue
		}

		if r.metrics != nil {
			r.metrics.PredictionScoresObserve(pred)
		}
		if pred > bestPred {
			bestPred = pred
			best = venue
		}
	}

	if best == "" {
		r.failure()
		return "", 0, ErrNoSelection
	}

	if r.metrics != nil {
		r.metrics.RoutePredictionsInc()
	}

	log.Debug().
		Str("symbol", order.Symbol).
		Str("venue", best).
		Float64("predicted_improvement", bestPred).
		Msg("order routed")

	return best, bestPred, nil
}

func (r *Router) failure() {
	if r.metrics != nil {
		r.metrics.RouteFailuresInc()
	}
}
