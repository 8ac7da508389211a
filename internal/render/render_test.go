package render

import (
	"bytes"
	"image/png"
	"testing"

	"grid-arena/internal/game"
	"grid-arena/internal/game/spatial"
)

func testSnapshot() *game.Snapshot {
	return &game.Snapshot{
		Tick:        1,
		WorldWidth:  400,
		WorldHeight: 300,
		CellSize:    50,
		Circles: []game.CircleSnapshot{
			{ID: 0, X: 200, Y: 150, Radius: 40},
			{ID: 1, X: 230, Y: 150, Radius: 40, Overlapping: true},
		},
		Buckets: []game.BucketSnapshot{
			{X: 150, Y: 100, W: 50, H: 50, Count: 2},
		},
		GridStats: spatial.GridStats{LargestBucket: 2},
	}
}

// TestFrame verifies frame dimensions and that circles actually land on the
// canvas.
func TestFrame(t *testing.T) {
	r := New(400, 300)
	img := r.Frame(testSnapshot())

	bounds := img.Bounds()
	if bounds.Dx() != 400 || bounds.Dy() != 300 {
		t.Fatalf("frame is %dx%d, want 400x300", bounds.Dx(), bounds.Dy())
	}

	// The circle center must differ from an empty corner of the canvas.
	center := img.At(200, 150)
	corner := img.At(5, 290)
	if center == corner {
		t.Error("circle center pixel matches empty background")
	}
}

// TestFrameScaled checks that the world is scaled to a differently sized
// output frame.
func TestFrameScaled(t *testing.T) {
	r := New(800, 600)
	img := r.Frame(testSnapshot())
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("scaled frame is %dx%d, want 800x600", img.Bounds().Dx(), img.Bounds().Dy())
	}
	// World center maps to frame center.
	center := img.At(400, 300)
	corner := img.At(5, 590)
	if center == corner {
		t.Error("scaled circle center pixel matches empty background")
	}
}

// TestEncodePNG round-trips the encoded frame through the PNG decoder.
func TestEncodePNG(t *testing.T) {
	r := New(400, 300)
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf, testSnapshot()); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decoding produced PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Errorf("decoded width = %d, want 400", img.Bounds().Dx())
	}
}
