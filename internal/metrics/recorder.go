package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/daemon"
)

var states = []daemon.State{
	daemon.StateIdle,
	daemon.StateSelecting,
	daemon.StateTraining,
	daemon.StateForecasting,
	daemon.StatePaused,
}

// Recorder implements daemon.Recorder using Prometheus.
// ⭐ SSOT: stockcast_* 메트릭은 여기서만 정의
type Recorder struct {
	registry *prometheus.Registry

	state        *prometheus.GaugeVec
	units        *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
	batches      prometheus.Counter
	processed    prometheus.Counter
	failed       prometheus.Counter
	lastBatch    prometheus.Gauge
}

// New creates a recorder on its own registry (with Go/process collectors)
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_daemon_state",
				Help: "1 for the daemon's current state, 0 otherwise",
			},
			[]string{"state"},
		),
		units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_units_total",
				Help: "Per-ticker units of work by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		unitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_unit_duration_seconds",
				Help:    "Duration of per-ticker units in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"stage"},
		),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockcast_batches_total",
			Help: "Completed daemon batches",
		}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockcast_tickers_processed_total",
			Help: "Tickers trained and forecast successfully",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockcast_tickers_failed_total",
			Help: "Tickers that failed training or forecasting",
		}),
		lastBatch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stockcast_last_batch_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// StateChanged implements daemon.Recorder
func (r *Recorder) StateChanged(current daemon.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		r.state.WithLabelValues(string(s)).Set(v)
	}
}

// UnitFinished implements daemon.Recorder
func (r *Recorder) UnitFinished(stage contracts.Stage, err error, elapsed time.Duration) {
	r.units.WithLabelValues(string(stage), outcome(err)).Inc()
	r.unitDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// BatchFinished implements daemon.Recorder
func (r *Recorder) BatchFinished(summary daemon.BatchSummary) {
	r.batches.Inc()
	r.processed.Add(float64(len(summary.Processed)))
	r.failed.Add(float64(len(summary.Failed)))
	r.lastBatch.Set(float64(summary.FinishedAt.Unix()))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, contracts.ErrUnitTimeout):
		return "timeout"
	default:
		return "error"
	}
}
