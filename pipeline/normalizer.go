package pipeline

import (
	"math"

	"github.com/Tutortoise/object-detection-service/models"
)

// LabelResolver maps engine class ids to names.
type LabelResolver interface {
	LabelFor(classID int) (string, error)
}

// Normalize turns raw engine output into canonical detections for an image
// of the given size. Order is preserved; boxes that are inverted after
// clamping, or have non-finite coordinates, are dropped. Boxes that collapse
// to a line or point on the image edge are kept. A class id the resolver does not know aborts
// with its error.
func Normalize(width, height int, raw []models.RawDetection, labels LabelResolver) ([]models.Detection, error) {
	detections := make([]models.Detection, 0, len(raw))

	for _, r := range raw {
		label, err := labels.LabelFor(r.ClassID)
		if err != nil {
			return nil, err
		}

		box, ok := clampBox(r.Box, width, height)
		if !ok {
			continue
		}

		detections = append(detections, models.Detection{
			Label:      label,
			Confidence: RoundConfidence(r.Confidence),
			BBox:       box,
		})
	}

	return detections, nil
}

// RoundConfidence rounds to two decimals, halves away from zero, and clamps
// the result into [0, 1].
func RoundConfidence(c float32) float64 {
	v := float64(c)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v*100) / 100
	return math.Min(1, math.Max(0, v))
}

// clampBox truncates coordinates toward zero and clamps them to
// [0,width-1] x [0,height-1].
func clampBox(b [4]float32, width, height int) ([4]int, bool) {
	for _, v := range b {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return [4]int{}, false
		}
	}

	x1 := clamp(b[0], width-1)
	y1 := clamp(b[1], height-1)
	x2 := clamp(b[2], width-1)
	y2 := clamp(b[3], height-1)

	if x1 > x2 || y1 > y2 {
		return [4]int{}, false
	}
	return [4]int{x1, y1, x2, y2}, true
}

func clamp(v float32, hi int) int {
	if v <= 0 {
		return 0
	}
	if v >= float32(hi) {
		return hi
	}
	return int(v)
}
