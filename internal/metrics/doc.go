// Package metrics records build, watch and live-reload metrics.
//
// Components take a Recorder by injection and default to NoopRecorder, so
// metrics cost nothing unless a PrometheusRecorder is wired in:
//
//	reg := prometheus.NewRegistry()
//	b := build.New(cfg, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
