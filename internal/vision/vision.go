// Package vision runs the webcam detection loop. Capture, inference and
// rendering sit behind Backend so the loop itself needs no OpenCV.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/metrics"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var (
	ErrModelNotFound = errors.New("model file not found")
	ErrModelLoad     = errors.New("could not load model")
	ErrCaptureOpen   = errors.New("could not open capture device")
	ErrDisplayOpen   = errors.New("could not open display")
)

var logger = logger_i.NewLogger("Detector")

// Detection is one object found in a frame, Box is in frame pixel coordinates
type Detection struct {
	Box     image.Rectangle
	Score   float32
	ClassID int
	Label   string
}

// Frame is only valid until the next Read of the capture it came from
type Frame interface {
	Empty() bool
}

type Capture interface {
	Read() (Frame, bool)
	io.Closer
}

type Detector interface {
	Detect(frame Frame) ([]Detection, error)
	io.Closer
}

type Display interface {
	Show(frame Frame, detections []Detection) error
	WaitKey(delayMs int) int
	io.Closer
}

type Backend interface {
	LoadModel(path string) (Detector, error)
	OpenCapture(device int) (Capture, error)
	OpenDisplay(title string) (Display, error)
}

type Config struct {
	ModelPath     string
	Device        int
	WindowTitle   string
	ExitKey       rune
	WaitKeyMillis int
}

func DefaultConfig() Config {
	return Config{
		ModelPath:     config.DetectorModelPath,
		Device:        config.DetectorWebcamSource,
		WindowTitle:   config.DetectorWindowTitle,
		ExitKey:       config.DetectorExitKey,
		WaitKeyMillis: config.DetectorWaitKeyMillis,
	}
}

type Stats struct {
	Frames     int
	Detections int
}

// Run opens the model, the camera and the window, then detects frame by frame until the
// exit key, the end of the stream or ctx cancellation. Everything opened is closed once on return.
func Run(ctx context.Context, cfg Config, backend Backend) (Stats, error) {
	var stats Stats
	log := logger.With("model", cfg.ModelPath, "device", cfg.Device)

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return stats, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	detector, err := backend.LoadModel(cfg.ModelPath)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	defer closeLogged(log, "model", detector)
	log.Info("Model loaded")

	capture, err := backend.OpenCapture(cfg.Device)
	if err != nil {
		return stats, fmt.Errorf("%w %d: %w", ErrCaptureOpen, cfg.Device, err)
	}
	defer closeLogged(log, "capture", capture)
	log.Info("Capture device opened")

	display, err := backend.OpenDisplay(cfg.WindowTitle)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrDisplayOpen, err)
	}
	defer closeLogged(log, "display", display)

	waitMillis := max(cfg.WaitKeyMillis, 1)
	for {
		if ctx.Err() != nil {
			log.Info("Detection cancelled", "frames", stats.Frames)
			return stats, nil
		}

		frame, ok := capture.Read()
		if !ok || frame == nil || frame.Empty() {
			log.Info("Capture ended", "frames", stats.Frames)
			return stats, nil
		}

		start := time.Now()
		detections, err := detector.Detect(frame)
		if err != nil {
			return stats, fmt.Errorf("inference on frame %d: %w", stats.Frames+1, err)
		}
		metrics.CaptureInferenceLatency(time.Since(start))
		metrics.IncrementFrames()
		for _, d := range detections {
			metrics.CaptureDetection(d.Label)
		}
		stats.Frames++
		stats.Detections += len(detections)

		if err = display.Show(frame, detections); err != nil {
			return stats, fmt.Errorf("render frame %d: %w", stats.Frames, err)
		}
		if key := display.WaitKey(waitMillis); key >= 0 && key&0xFF == int(cfg.ExitKey) {
			log.Info("Exit key pressed", "frames", stats.Frames)
			return stats, nil
		}
	}
}

func closeLogged(log *logger_i.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("Failed to release "+what, "err", err)
	}
}
