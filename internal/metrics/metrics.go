// Package metrics holds the Prometheus instruments for clip rendering.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage labels for ClipDuration.
const (
	StageRender = "render"
	StageUpload = "upload"
)

var (
	// ClipsTotal counts finished clip jobs by outcome ("ok" or an error kind).
	ClipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoomclip_clips_total",
		Help: "Total number of clip jobs processed, by outcome",
	}, []string{"outcome"})

	// ClipDuration observes wall time spent per pipeline stage.
	ClipDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoomclip_clip_duration_seconds",
		Help:    "Duration of clip pipeline stages",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	// JobsInProgress is the number of jobs currently being processed.
	JobsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zoomclip_jobs_in_progress",
		Help: "Number of clip jobs currently being processed",
	})
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
