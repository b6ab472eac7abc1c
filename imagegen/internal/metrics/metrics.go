package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gi_imagegen_pipeline_runs_total",
			Help: "Total number of image generation pipeline runs",
		},
		[]string{"status"},
	)

	ImagesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gi_imagegen_images_generated_total",
			Help: "Total number of images produced and uploaded",
		},
	)

	InpaintFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gi_imagegen_inpaint_fallbacks_total",
			Help: "Total number of images kept unenhanced after an inpainting failure",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gi_imagegen_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)
