// Package render draws arena snapshots with fogleman/gg: grid lines, bucket
// occupancy highlights, and the circles themselves. Frames are produced on
// demand (the /frame.png endpoint); nothing here touches live engine state.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"

	"grid-arena/internal/game"
)

// Renderer rasterizes snapshots at a fixed output size.
type Renderer struct {
	width  int
	height int
}

// New creates a renderer producing width x height frames. The world is scaled
// to fill the frame.
func New(width, height int) *Renderer {
	return &Renderer{width: width, height: height}
}

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorGridLine   = color.RGBA{30, 30, 45, 255}
	colorBucket     = color.RGBA{40, 70, 110, 90} // alpha scales with occupancy
	colorCircle     = color.RGBA{64, 200, 180, 255}
	colorOverlap    = color.RGBA{235, 80, 80, 255}
	colorOutline    = color.RGBA{230, 230, 240, 200}
)

// Frame renders one snapshot to an image.
func (r *Renderer) Frame(snap *game.Snapshot) image.Image {
	dc := gg.NewContext(r.width, r.height)

	sx := float64(r.width) / snap.WorldWidth
	sy := float64(r.height) / snap.WorldHeight

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	r.drawBuckets(dc, snap, sx, sy)
	r.drawGrid(dc, snap, sx, sy)
	r.drawCircles(dc, snap, sx, sy)

	return dc.Image()
}

// EncodePNG renders the snapshot and writes it as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	return png.Encode(w, r.Frame(snap))
}

// drawBuckets shades every occupied grid cell, brighter when fuller. This is
// the visualization of the index's introspection data.
func (r *Renderer) drawBuckets(dc *gg.Context, snap *game.Snapshot, sx, sy float64) {
	largest := snap.GridStats.LargestBucket
	if largest < 1 {
		largest = 1
	}
	for _, b := range snap.Buckets {
		c := colorBucket
		// Scale alpha from 60 up to 220 with relative occupancy.
		c.A = uint8(60 + 160*b.Count/largest)
		dc.SetColor(c)
		dc.DrawRectangle(b.X*sx, b.Y*sy, b.W*sx, b.H*sy)
		dc.Fill()
	}
}

func (r *Renderer) drawGrid(dc *gg.Context, snap *game.Snapshot, sx, sy float64) {
	dc.SetColor(colorGridLine)
	dc.SetLineWidth(1)

	for x := 0.0; x < snap.WorldWidth; x += snap.CellSize {
		dc.DrawLine(x*sx, 0, x*sx, float64(r.height))
		dc.Stroke()
	}
	for y := 0.0; y < snap.WorldHeight; y += snap.CellSize {
		dc.DrawLine(0, y*sy, float64(r.width), y*sy)
		dc.Stroke()
	}
}

func (r *Renderer) drawCircles(dc *gg.Context, snap *game.Snapshot, sx, sy float64) {
	for _, c := range snap.Circles {
		if c.Overlapping {
			dc.SetColor(colorOverlap)
		} else {
			dc.SetColor(colorCircle)
		}
		dc.DrawEllipse(c.X*sx, c.Y*sy, c.Radius*sx, c.Radius*sy)
		dc.Fill()

		dc.SetColor(colorOutline)
		dc.SetLineWidth(1.5)
		dc.DrawEllipse(c.X*sx, c.Y*sy, c.Radius*sx, c.Radius*sy)
		dc.Stroke()
	}
}
