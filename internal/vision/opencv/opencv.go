// Package opencv implements the detector backend on gocv. It needs OpenCV with the dnn module.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/vision"
	"github.com/akolanti/rightsbot/internal/vision/yolo"
	"gocv.io/x/gocv"
)

var errForeignFrame = errors.New("frame was not produced by the opencv capture")

var boxColor = color.RGBA{G: 255, A: 255}

type Backend struct {
	InputSize    int
	Confidence   float32
	NMSThreshold float32
	Labels       []string
}

func NewBackend(labels []string) Backend {
	return Backend{
		InputSize:    config.DetectorInputSize,
		Confidence:   config.DetectorConfidence,
		NMSThreshold: config.DetectorNMSThreshold,
		Labels:       labels,
	}
}

type frame struct {
	mat *gocv.Mat
}

func (f frame) Empty() bool { return f.mat.Empty() }

type capture struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// Read reuses one Mat, the returned frame is overwritten by the next Read
func (c *capture) Read() (vision.Frame, bool) {
	if ok := c.vc.Read(&c.mat); !ok {
		return nil, false
	}
	return frame{mat: &c.mat}, true
}

func (c *capture) Close() error {
	return errors.Join(c.mat.Close(), c.vc.Close())
}

type detector struct {
	net    gocv.Net
	size   int
	conf   float32
	nms    float32
	labels []string
}

func (d *detector) Detect(f vision.Frame) ([]vision.Detection, error) {
	fr, ok := f.(frame)
	if !ok {
		return nil, errForeignFrame
	}
	img := *fr.mat

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.size, d.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scale := yolo.Scale{
		X:      float32(img.Cols()) / float32(d.size),
		Y:      float32(img.Rows()) / float32(d.size),
		Width:  img.Cols(),
		Height: img.Rows(),
	}
	dets := yolo.NonMaxSuppression(yolo.Decode(data, dims[1], dims[2], scale, d.conf), d.nms)
	for i := range dets {
		dets[i].Label = yolo.Label(d.labels, dets[i].ClassID)
	}
	return dets, nil
}

func (d *detector) Close() error {
	return d.net.Close()
}

type display struct {
	window *gocv.Window
}

func (d *display) Show(f vision.Frame, detections []vision.Detection) error {
	fr, ok := f.(frame)
	if !ok {
		return errForeignFrame
	}
	for _, det := range detections {
		gocv.Rectangle(fr.mat, det.Box, boxColor, 2)
		caption := fmt.Sprintf("%s %.2f", det.Label, det.Score)
		gocv.PutText(fr.mat, caption, image.Pt(det.Box.Min.X, max(det.Box.Min.Y-6, 12)), gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}
	d.window.IMShow(*fr.mat)
	return nil
}

func (d *display) WaitKey(delayMs int) int {
	return d.window.WaitKey(delayMs)
}

func (d *display) Close() error {
	return d.window.Close()
}

func (b Backend) LoadModel(path string) (vision.Detector, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("no network in %s", path)
	}
	return &detector{
		net:    net,
		size:   b.InputSize,
		conf:   b.Confidence,
		nms:    b.NMSThreshold,
		labels: b.Labels,
	}, nil
}

func (b Backend) OpenCapture(device int) (vision.Capture, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("device %d did not open", device)
	}
	return &capture{vc: vc, mat: gocv.NewMat()}, nil
}

func (b Backend) OpenDisplay(title string) (vision.Display, error) {
	return &display{window: gocv.NewWindow(title)}, nil
}
