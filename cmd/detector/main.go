package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/vision"
	"github.com/akolanti/rightsbot/internal/vision/opencv"
	"github.com/akolanti/rightsbot/internal/vision/yolo"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadEnv()
	logger_i.Init()
	logger := logger_i.NewLogger("detector")

	cfg := vision.DefaultConfig()
	var (
		confidence  float64
		nms         float64
		labelsPath  string
		metricsAddr string
	)
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "YOLOv8 model exported to ONNX")
	flag.IntVar(&cfg.Device, "device", cfg.Device, "video capture device index")
	flag.StringVar(&cfg.WindowTitle, "title", cfg.WindowTitle, "window title")
	flag.Float64Var(&confidence, "conf", config.DetectorConfidence, "minimum class score")
	flag.Float64Var(&nms, "nms", config.DetectorNMSThreshold, "IoU threshold for non max suppression")
	flag.StringVar(&labelsPath, "labels", "", "class names, one per line")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flag.Parse()

	var labels []string
	if labelsPath != "" {
		var err error
		if labels, err = yolo.LoadLabels(labelsPath); err != nil {
			logger.Error("Could not read labels", "err", err)
			os.Exit(1)
		}
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := opencv.NewBackend(labels)
	backend.Confidence = float32(confidence)
	backend.NMSThreshold = float32(nms)

	stats, err := vision.Run(ctx, cfg, backend)
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrModelNotFound):
			logger.Error("Model file not found, export the trained weights to ONNX first", "model", cfg.ModelPath)
		case errors.Is(err, vision.ErrCaptureOpen):
			logger.Error("Could not open webcam", "device", cfg.Device, "err", err)
		default:
			logger.Error("Detection failed", "err", err)
		}
		stop()
		os.Exit(1)
	}
	logger.Info("Detector stopped", "frames", stats.Frames, "detections", stats.Detections)
}
