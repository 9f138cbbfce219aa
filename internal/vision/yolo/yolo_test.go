package yolo

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/rightsbot/internal/vision"
)

// head builds a [4+classes, anchors] output from per anchor columns
func head(classes int, anchors ...[]float32) ([]float32, int, int) {
	rows, cols := 4+classes, len(anchors)
	out := make([]float32, rows*cols)
	for a, col := range anchors {
		for r, v := range col {
			out[r*cols+a] = v
		}
	}
	return out, rows, cols
}

func TestDecode(t *testing.T) {
	out, rows, cols := head(2,
		[]float32{100, 100, 20, 40, 0.1, 0.8}, // class 1 kept
		[]float32{300, 300, 10, 10, 0.3, 0.2}, // below threshold
		[]float32{630, 630, 40, 40, 0.9, 0.0}, // clipped at the frame edge
	)
	dets := Decode(out, rows, cols, Scale{X: 2, Y: 1, Width: 1280, Height: 640}, 0.5)
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %+v", dets)
	}

	if dets[0].ClassID != 1 || dets[0].Score != 0.8 {
		t.Errorf("unexpected first detection %+v", dets[0])
	}
	if want := image.Rect(180, 80, 220, 120); dets[0].Box != want {
		t.Errorf("box %v, want %v", dets[0].Box, want)
	}
	if want := image.Rect(1220, 610, 1280, 640); dets[1].Box != want {
		t.Errorf("clipped box %v, want %v", dets[1].Box, want)
	}
}

func TestDecode_BadShape(t *testing.T) {
	if dets := Decode(make([]float32, 10), 5, 4, Scale{X: 1, Y: 1}, 0.5); dets != nil {
		t.Errorf("short output should decode to nothing, got %v", dets)
	}
	if dets := Decode(make([]float32, 8), 4, 2, Scale{X: 1, Y: 1}, 0.5); dets != nil {
		t.Errorf("output without classes should decode to nothing, got %v", dets)
	}
}

func TestNonMaxSuppression(t *testing.T) {
	dets := []vision.Detection{
		{Box: image.Rect(0, 0, 10, 10), Score: 0.6, ClassID: 0},
		{Box: image.Rect(1, 1, 11, 11), Score: 0.9, ClassID: 0},   // overlaps the first, wins
		{Box: image.Rect(1, 1, 11, 11), Score: 0.7, ClassID: 1},   // other class, kept
		{Box: image.Rect(50, 50, 60, 60), Score: 0.55, ClassID: 0}, // far away, kept
	}
	kept := NonMaxSuppression(dets, 0.45)
	if len(kept) != 3 {
		t.Fatalf("expected 3 boxes, got %+v", kept)
	}
	if kept[0].Score != 0.9 || kept[1].ClassID != 1 || kept[2].Score != 0.55 {
		t.Errorf("unexpected order %+v", kept)
	}
	if dets[0].Score != 0.6 {
		t.Error("input must not be reordered")
	}
}

func TestIoU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	if got := IoU(a, a); got != 1 {
		t.Errorf("IoU of a box with itself = %v", got)
	}
	if got := IoU(a, image.Rect(20, 20, 30, 30)); got != 0 {
		t.Errorf("disjoint IoU = %v", got)
	}
	if got := IoU(a, image.Rect(5, 0, 15, 10)); got < 0.333 || got > 0.334 {
		t.Errorf("half overlap IoU = %v", got)
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("person\n bicycle \n\ncar\n\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if len(labels) != 4 || labels[1] != "bicycle" || labels[3] != "car" {
		t.Errorf("unexpected labels %q", labels)
	}
	if Label(labels, 3) != "car" || Label(labels, 2) != "class 2" || Label(labels, 9) != "class 9" {
		t.Error("missing labels should fall back to the class id")
	}

	if _, err = LoadLabels(filepath.Join(t.TempDir(), "none.txt")); err == nil {
		t.Error("missing file should fail")
	}
}
