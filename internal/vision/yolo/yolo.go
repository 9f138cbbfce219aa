// Package yolo decodes the raw output of a YOLOv8 detection head.
package yolo

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/akolanti/rightsbot/internal/vision"
)

// Scale maps model input coordinates back onto the source frame
type Scale struct {
	X, Y          float32
	Width, Height int // source frame size, boxes are clipped to it when set
}

// Decode reads a [4+classes, anchors] output laid out row major, each anchor column holds
// cx, cy, w, h followed by the class scores. The best class of an anchor is kept when its
// score reaches conf.
func Decode(output []float32, rows, cols int, scale Scale, conf float32) []vision.Detection {
	if rows <= 4 || cols <= 0 || len(output) < rows*cols {
		return nil
	}
	var dets []vision.Detection
	for a := 0; a < cols; a++ {
		classID, best := -1, float32(0)
		for r := 4; r < rows; r++ {
			if s := output[r*cols+a]; s > best {
				classID, best = r-4, s
			}
		}
		if classID < 0 || best < conf {
			continue
		}

		cx, cy := output[a], output[cols+a]
		w, h := output[2*cols+a], output[3*cols+a]
		box := image.Rect(
			int((cx-w/2)*scale.X),
			int((cy-h/2)*scale.Y),
			int((cx+w/2)*scale.X),
			int((cy+h/2)*scale.Y),
		)
		if scale.Width > 0 && scale.Height > 0 {
			box = box.Intersect(image.Rect(0, 0, scale.Width, scale.Height))
		}
		if box.Empty() {
			continue
		}
		dets = append(dets, vision.Detection{Box: box, Score: best, ClassID: classID})
	}
	return dets
}

// NonMaxSuppression keeps the highest scoring box of every overlapping group of the same class
func NonMaxSuppression(dets []vision.Detection, iouThreshold float32) []vision.Detection {
	sorted := make([]vision.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]vision.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k.Box, d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

func IoU(a, b image.Rectangle) float32 {
	inter := area(a.Intersect(b))
	if inter == 0 {
		return 0
	}
	return float32(inter) / float32(area(a)+area(b)-inter)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// LoadLabels reads one class name per line, the line number is the class id
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

func Label(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) && labels[classID] != "" {
		return labels[classID]
	}
	return fmt.Sprintf("class %d", classID)
}
