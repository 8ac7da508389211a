package game

import "grid-arena/internal/game/spatial"

// Snapshot is an immutable copy of the arena state, safe to hand to the API,
// websocket, and render layers while the tick loop keeps running.
type Snapshot struct {
	Tick         int64             `json:"tick"`
	WorldWidth   float64           `json:"worldWidth"`
	WorldHeight  float64           `json:"worldHeight"`
	CellSize     float64           `json:"cellSize"`
	Circles      []CircleSnapshot  `json:"circles"`
	Buckets      []BucketSnapshot  `json:"buckets"` // non-empty buckets only
	OverlapPairs int               `json:"overlapPairs"`
	GridStats    spatial.GridStats `json:"gridStats"`
}

// CircleSnapshot is one circle's render-relevant state.
type CircleSnapshot struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Overlapping bool    `json:"overlapping"`
}

// BucketSnapshot is one occupied grid cell with its occupancy count.
type BucketSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Count int     `json:"count"`
}

// Snapshot copies the current state. Called from other goroutines; the read
// lock excludes ticks for the duration of the copy.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &Snapshot{
		Tick:         e.tickCount,
		WorldWidth:   e.cfg.WorldWidth,
		WorldHeight:  e.cfg.WorldHeight,
		CellSize:     e.cfg.CellSize,
		Circles:      make([]CircleSnapshot, len(e.circles)),
		OverlapPairs: e.overlapPairs,
		GridStats:    e.grid.Stats(),
	}
	for i, c := range e.circles {
		snap.Circles[i] = CircleSnapshot{
			ID:          c.ID,
			X:           c.X,
			Y:           c.Y,
			Radius:      c.Radius,
			Overlapping: c.Overlapping,
		}
	}
	for _, view := range e.grid.Buckets() {
		if len(view.Items) == 0 {
			continue
		}
		snap.Buckets = append(snap.Buckets, BucketSnapshot{
			X:     view.Cell.MinX,
			Y:     view.Cell.MinY,
			W:     view.Cell.Width(),
			H:     view.Cell.Height(),
			Count: len(view.Items),
		})
	}
	return snap
}
