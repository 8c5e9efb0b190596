// Package annotate draws detection boxes and labels onto a pixel buffer.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Tutortoise/object-detection-service/models"
)

var (
	BoxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	TextColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

const (
	BoxThickness = 2
	LabelHeight  = 20
	// distance from the bottom of the label rectangle to the text baseline
	labelBaseline = 5
)

type Renderer struct {
	face font.Face
}

func NewRenderer() *Renderer {
	return &Renderer{face: basicfont.Face7x13}
}

// Render draws every detection onto buf in order, so later detections paint
// over earlier ones. It mutates and returns buf. Detections are expected to
// be clamped to buf already.
func (r *Renderer) Render(buf *models.PixelBuffer, detections []models.Detection) *models.PixelBuffer {
	for _, d := range detections {
		x1, y1, x2, y2 := d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]
		drawRect(buf, x1, y1, x2, y2, BoxColor, BoxThickness)

		text := Label(d)
		rect := r.LabelRect(buf.Bounds(), x1, y1, text)
		draw.Draw(buf, rect, image.NewUniform(BoxColor), image.Point{}, draw.Src)

		drawer := &font.Drawer{
			Dst:  buf,
			Src:  image.NewUniform(TextColor),
			Face: r.face,
			Dot:  fixed.P(rect.Min.X, rect.Max.Y-labelBaseline),
		}
		drawer.DrawString(text)
	}
	return buf
}

// Label is the text drawn above a box: class name and confidence.
func Label(d models.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// LabelRect is the filled background behind a label anchored at the box's
// top-left corner. It sits directly above the box, moves inside the box when
// there is no room above, and is shifted left rather than leave the buffer.
func (r *Renderer) LabelRect(bounds image.Rectangle, x1, y1 int, text string) image.Rectangle {
	width := font.MeasureString(r.face, text).Ceil()
	height := LabelHeight

	top := y1 - height
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}
	left := x1
	if left+width > bounds.Max.X {
		left = bounds.Max.X - width
	}
	if left < bounds.Min.X {
		left = bounds.Min.X
	}

	return image.Rect(left, top, left+width, top+height).Intersect(bounds)
}

func drawRect(img *models.PixelBuffer, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			img.SetRGBA(x, y1+t, col)
			img.SetRGBA(x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			img.SetRGBA(x1+t, y, col)
			img.SetRGBA(x2-t, y, col)
		}
	}
}
