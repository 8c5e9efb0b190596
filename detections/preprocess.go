package detections

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

// letterbox records how an original image was fitted into the model input,
// so boxes can be mapped back.
type letterbox struct {
	scale float64
	padX  int
	padY  int
}

func newLetterbox(width, height int) letterbox {
	scale := math.Min(float64(InputWidth)/float64(width), float64(InputHeight)/float64(height))
	newW, newH := scaledSize(width, height, scale)
	return letterbox{
		scale: scale,
		padX:  (InputWidth - newW) / 2,
		padY:  (InputHeight - newH) / 2,
	}
}

func scaledSize(width, height int, scale float64) (int, int) {
	newW := int(math.Round(float64(width) * scale))
	newH := int(math.Round(float64(height) * scale))
	return max(1, min(InputWidth, newW)), max(1, min(InputHeight, newH))
}

// toOriginal maps a point from model-input space back to the source image.
func (l letterbox) toOriginal(x, y float32) (float32, float32) {
	return float32((float64(x) - float64(l.padX)) / l.scale),
		float32((float64(y) - float64(l.padY)) / l.scale)
}

// letterboxImage resizes img to fit the model input keeping its aspect ratio
// and pads the remainder with neutral grey.
func letterboxImage(img image.Image) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	lb := newLetterbox(b.Dx(), b.Dy())
	newW, newH := scaledSize(b.Dx(), b.Dy(), lb.scale)

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(InputWidth, InputHeight, color.NRGBA{R: LetterboxFill, G: LetterboxFill, B: LetterboxFill, A: 0xff})
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))

	return canvas, lb
}

var inputPool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, InputWidth*InputHeight*3)
		return &buf
	},
}

// fillInput writes img as a planar RGB tensor scaled to [0,1]. Rows are split
// across workers.
func fillInput(img *image.NRGBA, dst []float32) {
	channelSize := InputWidth * InputHeight
	numWorkers := runtime.GOMAXPROCS(0)
	rowsPerWorker := InputHeight / numWorkers
	if rowsPerWorker == 0 {
		numWorkers, rowsPerWorker = 1, InputHeight
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == numWorkers-1 {
			endRow = InputHeight
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				src := img.Pix[y*img.Stride:]
				offset := y * InputWidth
				for x := 0; x < InputWidth; x++ {
					i := offset + x
					dst[i] = float32(src[x*4]) / 255.0
					dst[channelSize+i] = float32(src[x*4+1]) / 255.0
					dst[channelSize*2+i] = float32(src[x*4+2]) / 255.0
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
}
