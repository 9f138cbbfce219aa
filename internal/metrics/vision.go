package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "detector_frames_total",
	Help: "Frames read from the capture device and run through the detector",
})

var detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "detector_detections_total",
	Help: "Objects detected labelled by class",
}, []string{"class"})

var inferenceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "detector_inference_seconds",
	Help:    "Time spent running the model on one frame.",
	Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
})

func IncrementFrames() {
	framesProcessed.Inc()
}

func CaptureDetection(class string) {
	detectionsTotal.WithLabelValues(class).Inc()
}

func CaptureInferenceLatency(elapsed time.Duration) {
	inferenceLatency.Observe(elapsed.Seconds())
}
