package detections

import (
	"fmt"
	"runtime"
	"sync"
)

type candidate struct {
	classID int
	score   float32
	box     [4]float32
}

// processPredictions decodes a YOLOv8 head laid out as [4+numClasses, anchors]:
// rows 0-3 are cx, cy, w, h in input pixels, the rest are per-class scores.
// Candidates keep anchor order; callers sort.
func processPredictions(predictions []float32, numClasses int, lb letterbox, threshold float32) ([]candidate, error) {
	rows := 4 + numClasses
	if numClasses <= 0 || len(predictions) == 0 || len(predictions)%rows != 0 {
		return nil, fmt.Errorf("unexpected predictions length %d for %d classes", len(predictions), numClasses)
	}
	numPredictions := len(predictions) / rows

	const chunkSize = 512
	numChunks := (numPredictions + chunkSize - 1) / chunkSize
	chunks := make([][]candidate, numChunks)

	jobs := make(chan int, numChunks)
	for c := 0; c < numChunks; c++ {
		jobs <- c
	}
	close(jobs)

	var wg sync.WaitGroup
	numWorkers := min(runtime.NumCPU(), numChunks)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				start := c * chunkSize
				end := min(start+chunkSize, numPredictions)
				var local []candidate

				for i := start; i < end; i++ {
					classID, score := bestClass(predictions, numPredictions, numClasses, i)
					if score < threshold {
						continue
					}
					local = append(local, candidate{
						classID: classID,
						score:   score,
						box: calculateBBox(
							predictions[i],
							predictions[numPredictions+i],
							predictions[2*numPredictions+i],
							predictions[3*numPredictions+i],
							lb,
						),
					})
				}
				chunks[c] = local
			}
		}()
	}
	wg.Wait()

	var candidates []candidate
	for _, chunk := range chunks {
		candidates = append(candidates, chunk...)
	}
	return candidates, nil
}

func bestClass(predictions []float32, stride, numClasses, i int) (int, float32) {
	best, bestScore := 0, float32(-1)
	for c := 0; c < numClasses; c++ {
		if s := predictions[(4+c)*stride+i]; s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// calculateBBox converts a centre-format box in input space to corners in
// the original image. The result is not clamped.
func calculateBBox(cx, cy, w, h float32, lb letterbox) [4]float32 {
	x1, y1 := lb.toOriginal(cx-w/2, cy-h/2)
	x2, y2 := lb.toOriginal(cx+w/2, cy+h/2)
	return [4]float32{x1, y1, x2, y2}
}
