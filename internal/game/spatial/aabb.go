package spatial

import "math"

// AABB is an axis-aligned bounding box in world coordinates, expressed as
// min/max corners. This is the canonical encoding for every Grid operation.
type AABB struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// AABBFromRect converts an origin+extent rectangle (x, y, width, height)
// to the canonical min/max corner encoding.
func AABBFromRect(x, y, width, height float64) AABB {
	return AABB{MinX: x, MinY: y, MaxX: x + width, MaxY: y + height}
}

// Width returns the horizontal extent of the box.
func (b AABB) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b AABB) Height() float64 { return b.MaxY - b.MinY }

// usable reports whether the box can be mapped to cell indices: all four
// coordinates finite and min <= max on both axes. Zero-area boxes are fine.
func (b AABB) usable() bool {
	for _, v := range [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}
