package metrics

// MetricsWrapper adapts Metrics to the hooks the engine and the model
// server call.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLInvalidInputsInc() {
	w.m.MLInvalidInputs.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.m.MLPredictionScores.Observe(v)
}

func (w *MetricsWrapper) MLModelReadySet(ready bool) {
	if ready {
		w.m.MLModelReady.Set(1)
		return
	}
	w.m.MLModelReady.Set(0)
}

func (w *MetricsWrapper) HTTPRequestObserve(route string, status int, seconds float64) {
	w.m.ObserveRequest(route, status, seconds)
}
