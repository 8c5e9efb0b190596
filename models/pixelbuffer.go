package models

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is fixed for the whole pipeline: R, G, B.
const Channels = 3

// PixelBuffer is a row-major RGB raster. It implements draw.Image so the
// standard drawing and encoding packages can work on it directly.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewPixelBuffer(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid pixel buffer dimensions %dx%d", width, height)
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}, nil
}

// PixelBufferFromImage copies img into a new buffer, dropping alpha the way
// a colour-only decode does.
func PixelBufferFromImage(img image.Image) (*PixelBuffer, error) {
	b := img.Bounds()
	buf, err := NewPixelBuffer(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < buf.Height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			dst := buf.Pix[y*buf.Stride():]
			for x := 0; x < buf.Width; x++ {
				dst[x*3] = row[x*4]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
	default:
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := y*buf.Stride() + x*3
				buf.Pix[i] = c.R
				buf.Pix[i+1] = c.G
				buf.Pix[i+2] = c.B
			}
		}
	}

	return buf, nil
}

func (p *PixelBuffer) Stride() int {
	return p.Width * Channels
}

func (p *PixelBuffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (p *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

func (p *PixelBuffer) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

func (p *PixelBuffer) RGBAAt(x, y int) color.RGBA {
	if !p.inBounds(x, y) {
		return color.RGBA{}
	}
	i := y*p.Stride() + x*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// Set writes c, ignoring alpha. The buffer is always opaque, so composited
// colours arriving here already carry their final value.
func (p *PixelBuffer) Set(x, y int, c color.Color) {
	if !p.inBounds(x, y) {
		return
	}
	r, g, b, _ := c.RGBA()
	i := y*p.Stride() + x*3
	p.Pix[i] = uint8(r >> 8)
	p.Pix[i+1] = uint8(g >> 8)
	p.Pix[i+2] = uint8(b >> 8)
}

func (p *PixelBuffer) SetRGBA(x, y int, c color.RGBA) {
	if !p.inBounds(x, y) {
		return
	}
	i := y*p.Stride() + x*3
	p.Pix[i] = c.R
	p.Pix[i+1] = c.G
	p.Pix[i+2] = c.B
}

func (p *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(p.Pix))
	copy(pix, p.Pix)
	return &PixelBuffer{Width: p.Width, Height: p.Height, Pix: pix}
}

func (p *PixelBuffer) inBounds(x, y int) bool {
	return x >= 0 && x < p.Width && y >= 0 && y < p.Height
}
