package detections

import (
	"math"
	"sort"
)

// nonMaxSuppression keeps the highest scoring box of every overlapping group
// of the same class. The result is ordered by descending score and holds at
// most limit entries.
func nonMaxSuppression(candidates []candidate, iouThreshold float64, limit int) []candidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]candidate, 0, min(limit, len(sorted)))

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if len(kept) == limit {
			break
		}
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].classID != sorted[i].classID {
				continue
			}
			if calculateIOU(sorted[i].box, sorted[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}

func calculateIOU(box1, box2 [4]float32) float64 {
	x1 := math.Max(float64(box1[0]), float64(box2[0]))
	y1 := math.Max(float64(box1[1]), float64(box2[1]))
	x2 := math.Min(float64(box1[2]), float64(box2[2]))
	y2 := math.Min(float64(box1[3]), float64(box2[3]))

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := float64(box1[2]-box1[0]) * float64(box1[3]-box1[1])
	area2 := float64(box2[2]-box2[0]) * float64(box2[3]-box2[1])
	union := area1 + area2 - intersection
	if union <= 0 {
		return 0.0
	}

	return intersection / union
}
