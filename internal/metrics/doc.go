// Package metrics records gsb run and daemon metrics.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default so call sites never need nil checks; PrometheusRecorder is
// installed by the sync daemon when metrics are enabled and is scraped through
// HTTPHandler.
package metrics
