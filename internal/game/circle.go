package game

import "grid-arena/internal/game/spatial"

// Circle is a moving disc in the arena. Position is the center; the grid
// indexes its axis-aligned bounding box.
type Circle struct {
	ID     int
	X, Y   float64
	VX, VY float64
	Radius float64

	// Overlapping is set each tick when the narrow phase confirms contact
	// with at least one other circle.
	Overlapping bool
}

// circleBounds is the accessor bound into the spatial grid at construction.
func circleBounds(c *Circle) spatial.AABB {
	return spatial.AABB{
		MinX: c.X - c.Radius,
		MinY: c.Y - c.Radius,
		MaxX: c.X + c.Radius,
		MaxY: c.Y + c.Radius,
	}
}

// circlesOverlap is the narrow-phase test: exact center-distance check,
// squared to avoid the sqrt.
func circlesOverlap(a, b *Circle) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	r := a.Radius + b.Radius
	return dx*dx+dy*dy <= r*r
}

// advance integrates one tick of motion and reflects off the world edges.
// Reflection clamps the center back inside so a circle can never tunnel out.
func (c *Circle) advance(dt, worldWidth, worldHeight float64) {
	c.X += c.VX * dt
	c.Y += c.VY * dt

	if c.X-c.Radius < 0 {
		c.X = c.Radius
		c.VX = -c.VX
	} else if c.X+c.Radius > worldWidth {
		c.X = worldWidth - c.Radius
		c.VX = -c.VX
	}
	if c.Y-c.Radius < 0 {
		c.Y = c.Radius
		c.VY = -c.VY
	} else if c.Y+c.Radius > worldHeight {
		c.Y = worldHeight - c.Radius
		c.VY = -c.VY
	}
}
