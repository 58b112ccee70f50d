package metrics

// Wrapper adapts Metrics to the narrow interfaces consumed by other
// packages, so they depend on behavior instead of Prometheus types.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) RoutePredictionsInc() {
	if w != nil && w.m != nil {
		w.m.RoutesTotal.Inc()
	}
}

func (w *Wrapper) RouteFailuresInc() {
	if w != nil && w.m != nil {
		w.m.RouteFailures.Inc()
	}
}

func (w *Wrapper) RouteLatencyObserve(seconds float64) {
	if w != nil && w.m != nil {
		w.m.RouteLatency.Observe(seconds)
	}
}

func (w *Wrapper) PredictionScoresObserve(score float64) {
	if w != nil && w.m != nil {
		w.m.PredictionScores.Observe(score)
	}
}

func (w *Wrapper) RegistrySizeSet(n float64) {
	if w != nil && w.m != nil {
		w.m.RegistrySize.Set(n)
	}
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	if w != nil && w.m != nil {
		w.m.ModelAge.Set(seconds)
	}
}

func (w *Wrapper) QuotesReceivedInc() {
	if w != nil && w.m != nil {
		w.m.QuotesReceived.Inc()
	}
}

func (w *Wrapper) WSReconnectsInc() {
	if w != nil && w.m != nil {
		w.m.WSReconnects.Inc()
	}
}

func (w *Wrapper) DecisionsStoredInc() {
	if w != nil && w.m != nil {
		w.m.DecisionsStored.Inc()
	}
}

func (w *Wrapper) ErrorsTotalInc() {
	if w != nil && w.m != nil {
		w.m.ErrorsTotal.Inc()
	}
}
