package detections

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeRunner struct {
	output []float32
	delay  time.Duration

	mu        sync.Mutex
	failNext  bool
	destroyed bool

	running    *int32
	maxRunning *int32
}

func (f *fakeRunner) Run(input []float32) ([]float32, error) {
	if f.running != nil {
		n := atomic.AddInt32(f.running, 1)
		defer atomic.AddInt32(f.running, -1)
		for {
			old := atomic.LoadInt32(f.maxRunning)
			if n <= old || atomic.CompareAndSwapInt32(f.maxRunning, old, n) {
				break
			}
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("runtime failure")
	}

	out := make([]float32, len(f.output))
	copy(out, f.output)
	return out, nil
}

func (f *fakeRunner) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

// fullOutput builds a full-size YOLOv8 head with the given anchors set.
func fullOutput(anchors map[int][]float32) []float32 {
	n := int(numAnchors())
	out := make([]float32, (4+NumClasses)*n)
	for i, a := range anchors {
		for row, v := range a {
			out[row*n+i] = v
		}
	}
	return out
}

// anchor returns an anchor column with a single class score set.
func anchor(cx, cy, w, h float32, classID int, score float32) []float32 {
	col := make([]float32, 4+NumClasses)
	col[0], col[1], col[2], col[3] = cx, cy, w, h
	col[4+classID] = score
	return col
}
