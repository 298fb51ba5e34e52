package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/icza/mjpeg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"bioevo/internal/model"
)

// Frame is one labelled voltage field of an animation.
type Frame struct {
	Label   string
	Pattern model.Pattern
}

type VideoOptions struct {
	CellSize int
	FPS      int
	Quality  int
}

const labelBand = 18

func (o VideoOptions) withDefaults() VideoOptions {
	if o.CellSize <= 0 {
		o.CellSize = 24
	}
	if o.FPS <= 0 {
		o.FPS = 10
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 75
	}
	return o
}

// WriteAnimation encodes the frames as a Motion-JPEG AVI on one colour scale.
func WriteAnimation(path string, frames []Frame, opts VideoOptions) error {
	if len(frames) == 0 {
		return fmt.Errorf("animation needs at least one frame")
	}
	opts = opts.withDefaults()
	rows, cols := frames[0].Pattern.Rows(), frames[0].Pattern.Cols()
	patterns := make([]model.Pattern, 0, len(frames))
	for i, f := range frames {
		if f.Pattern.Rows() != rows || f.Pattern.Cols() != cols {
			return fmt.Errorf("frame %d is %dx%d, want %dx%d", i, f.Pattern.Rows(), f.Pattern.Cols(), rows, cols)
		}
		patterns = append(patterns, f.Pattern)
	}
	lo, hi := SharedRange(patterns...)
	cm := colorMap(lo, hi)

	width := cols * opts.CellSize
	height := rows*opts.CellSize + labelBand
	video, err := mjpeg.New(path, int32(width), int32(height), int32(opts.FPS))
	if err != nil {
		return fmt.Errorf("create video: %w", err)
	}

	var buf bytes.Buffer
	jpegOptions := &jpeg.Options{Quality: opts.Quality}
	for i, f := range frames {
		img := frameImage(f, cm, opts.CellSize, width, height)
		if err := jpeg.Encode(&buf, img, jpegOptions); err != nil {
			_ = video.Close()
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
		if err := video.AddFrame(buf.Bytes()); err != nil {
			_ = video.Close()
			return fmt.Errorf("add frame %d: %w", i, err)
		}
		buf.Reset()
	}
	return video.Close()
}

type valueColorer interface {
	At(float64) (color.Color, error)
}

func frameImage(f Frame, cm valueColorer, cellSize, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	rows, cols := f.Pattern.Rows(), f.Pattern.Cols()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fill, err := cm.At(f.Pattern.At(r, c))
			if err != nil {
				fill = color.Black
			}
			rect := image.Rect(c*cellSize, labelBand+r*cellSize, (c+1)*cellSize, labelBand+(r+1)*cellSize)
			draw.Draw(img, rect, image.NewUniform(fill), image.Point{}, draw.Src)
		}
	}
	addLabel(img, 4, 13, f.Label, color.Black)
	return img
}

// addLabel draws text with its baseline at (x, y).
func addLabel(img *image.RGBA, x, y int, label string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}
