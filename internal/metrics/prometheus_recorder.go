package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentforge"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	stageDuration     *prom.HistogramVec
	buildDuration     prom.Histogram
	stageResults      *prom.CounterVec
	buildOutcomes     *prom.CounterVec
	pagesRendered     prom.Gauge
	assetVariants     *prom.CounterVec
	assetFailures     prom.Counter
	watchEvents       *prom.CounterVec
	rebuildTriggers   prom.Counter
	liveReloadClients prom.Gauge
	liveReloadEvents  prom.Counter
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		pagesRendered: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_rendered",
			Help:      "Pages rendered by the last successful build",
		}),
		assetVariants: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_variants_total",
			Help:      "Asset variants written, by kind",
		}, []string{"kind"}),
		assetFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_failures_total",
			Help:      "Assets skipped after a processing failure",
		}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "File change events observed, by kind",
		}, []string{"kind"}),
		rebuildTriggers: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_triggers_total",
			Help:      "Rebuilds started by the watch loop",
		}),
		liveReloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live-reload subscribers",
		}),
		liveReloadEvents: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Reload events broadcast to subscribers",
		}),
	}
	reg.MustRegister(
		pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcomes,
		pr.pagesRendered, pr.assetVariants, pr.assetFailures,
		pr.watchEvents, pr.rebuildTriggers, pr.liveReloadClients, pr.liveReloadEvents,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(result ResultLabel) {
	p.buildOutcomes.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetPagesRendered(n int) { p.pagesRendered.Set(float64(n)) }

func (p *PrometheusRecorder) AddAssetVariants(kind string, n int) {
	p.assetVariants.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) IncAssetFailures(n int) { p.assetFailures.Add(float64(n)) }

func (p *PrometheusRecorder) IncWatchEvent(kind string) { p.watchEvents.WithLabelValues(kind).Inc() }

func (p *PrometheusRecorder) IncRebuildTrigger() { p.rebuildTriggers.Inc() }

func (p *PrometheusRecorder) SetLiveReloadClients(n int) { p.liveReloadClients.Set(float64(n)) }

func (p *PrometheusRecorder) IncLiveReloadBroadcast() { p.liveReloadEvents.Inc() }
