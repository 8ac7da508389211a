// Package game runs the demo arena: circles bouncing inside a fixed world,
// with overlap detection split into the broad phase (the uniform grid in
// internal/game/spatial) and an exact circle-circle narrow phase.
//
// The engine owns the grid on its tick goroutine; everything outside the
// package reads immutable snapshots instead of touching the grid directly.
package game

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"grid-arena/internal/game/spatial"
)

// EngineConfig configures the arena.
type EngineConfig struct {
	TickRate    int     // simulation ticks per second
	WorldWidth  float64 // world extent in pixels
	WorldHeight float64
	CellSize    float64 // grid cell size; tune against LargestBucketSize
	CircleCount int     // circles spawned at start
	MinRadius   float64
	MaxRadius   float64
	MaxSpeed    float64 // max per-axis speed in pixels/second
	Seed        int64   // RNG seed; 0 means derive from wall clock

	// UseRefresh switches the per-tick grid maintenance from one Update call
	// per circle to a single bulk Refresh pass. Both rely on the grid's
	// skip-if-unchanged contract; the toggle exists to compare the two paths.
	UseRefresh bool
}

// Engine is the demo simulation loop.
type Engine struct {
	mu      sync.RWMutex
	cfg     EngineConfig
	grid    *spatial.Grid[*Circle]
	circles []*Circle
	handles []spatial.Handle
	nextID  int

	tickCount    int64
	overlapPairs int

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	rng *rand.Rand

	// OnTick, when set before Start, is invoked after every tick with the
	// tick duration and the number of overlapping pairs found. Used to feed
	// metrics without the engine importing the observability layer.
	OnTick func(d time.Duration, overlapPairs int)
}

// NewEngine builds the arena, spawns the configured circles, and inserts them
// into the grid. Construction errors come from invalid world/cell dimensions.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.MinRadius <= 0 {
		cfg.MinRadius = 8
	}
	if cfg.MaxRadius < cfg.MinRadius {
		cfg.MaxRadius = cfg.MinRadius
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = 120
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	grid, err := spatial.NewGrid(cfg.WorldWidth, cfg.WorldHeight, cfg.CellSize,
		circleBounds, spatial.WithRefreshTracking())
	if err != nil {
		return nil, fmt.Errorf("game: building grid: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		grid:     grid,
		stopChan: make(chan struct{}),
		rng:      rand.New(rand.NewSource(seed)),
	}

	for i := 0; i < cfg.CircleCount; i++ {
		if _, err := e.spawnLocked(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// spawnLocked creates one circle at a random position and inserts it into the
// grid. Caller holds e.mu (or has exclusive access during construction).
func (e *Engine) spawnLocked() (*Circle, error) {
	r := e.cfg.MinRadius + e.rng.Float64()*(e.cfg.MaxRadius-e.cfg.MinRadius)
	c := &Circle{
		ID:     e.nextID,
		X:      r + e.rng.Float64()*(e.cfg.WorldWidth-2*r),
		Y:      r + e.rng.Float64()*(e.cfg.WorldHeight-2*r),
		VX:     (e.rng.Float64()*2 - 1) * e.cfg.MaxSpeed,
		VY:     (e.rng.Float64()*2 - 1) * e.cfg.MaxSpeed,
		Radius: r,
	}
	h, err := e.grid.Insert(c)
	if err != nil {
		return nil, fmt.Errorf("game: inserting circle %d: %w", c.ID, err)
	}
	e.nextID++
	e.circles = append(e.circles, c)
	e.handles = append(e.handles, h)
	return c, nil
}

// AddCircle spawns one extra circle at a random position and returns a copy
// of it. Safe to call while the engine is running.
func (e *Engine) AddCircle() (Circle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.spawnLocked()
	if err != nil {
		return Circle{}, err
	}
	return *c, nil
}

// RemoveCircle removes the circle with the given ID from the arena and the
// grid. Returns false if no such circle exists.
func (e *Engine) RemoveCircle(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.circles {
		if c.ID != id {
			continue
		}
		e.grid.Remove(e.handles[i])
		e.circles = append(e.circles[:i], e.circles[i+1:]...)
		e.handles = append(e.handles[:i], e.handles[i+1:]...)
		return true
	}
	return false
}

// CircleCount returns the number of circles currently in the arena.
func (e *Engine) CircleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.circles)
}

// Start launches the tick loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	ticker := e.ticker
	e.mu.Unlock()

	log.Printf("🟢 Arena started: %d circles, %d TPS, world %.0fx%.0f, cell %.0f",
		e.CircleCount(), e.cfg.TickRate, e.cfg.WorldWidth, e.cfg.WorldHeight, e.cfg.CellSize)

	go func() {
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				pairs := e.tick()
				if e.OnTick != nil {
					e.OnTick(time.Since(start), pairs)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the tick loop. Safe to call twice.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	log.Println("🔴 Arena stopped")
}

// tick advances the simulation one step: integrate motion, refresh grid
// membership, then broad-phase + narrow-phase overlap detection. Returns the
// number of overlapping pairs found.
func (e *Engine) tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dt := 1.0 / float64(e.cfg.TickRate)

	for _, c := range e.circles {
		c.advance(dt, e.cfg.WorldWidth, e.cfg.WorldHeight)
		c.Overlapping = false
	}

	// Membership maintenance. Circles whose coverage did not change cost
	// nothing beyond the coverage computation on either path.
	if e.cfg.UseRefresh {
		if err := e.grid.Refresh(); err != nil {
			log.Printf("⚠️ grid refresh: %v", err)
		}
	} else {
		for i := range e.circles {
			if err := e.grid.Update(e.handles[i]); err != nil {
				log.Printf("⚠️ grid update for circle %d: %v", e.circles[i].ID, err)
			}
		}
	}

	// Overlap detection: the handle query visits only bucket-sharing
	// neighbors, each at most once. Counting c.ID < o.ID keeps a pair from
	// being counted from both ends.
	pairs := 0
	for i, c := range e.circles {
		self := c
		e.grid.QueryHandleFunc(e.handles[i], func(o *Circle) bool {
			if circlesOverlap(self, o) {
				self.Overlapping = true
				o.Overlapping = true
				if self.ID < o.ID {
					pairs++
				}
			}
			return false
		})
	}

	e.overlapPairs = pairs
	e.tickCount++
	return pairs
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// GridStats returns the grid's current occupancy aggregates.
func (e *Engine) GridStats() spatial.GridStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grid.Stats()
}
