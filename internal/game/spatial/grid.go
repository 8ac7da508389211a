// Package spatial provides cache-efficient spatial data structures for
// broad-phase collision detection and neighbor queries.
//
// The core structure is Grid, a uniform-grid index over axis-aligned bounding
// boxes. Buckets store integer entry indices (not pointers) to minimize GC
// pressure and maximize cache locality.
//
// Grid is deliberately single-threaded: every operation runs to completion on
// the caller's goroutine with no internal locking. The intended usage is one
// simulation tick at a time - mutate (Insert/Update/Remove/Refresh) for all
// items, then query. Callers that share a Grid across goroutines must
// synchronize externally.
package spatial

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by Grid operations.
var (
	// ErrInvalidArgument is returned for non-positive construction parameters
	// and for items whose accessor produces an unusable bounding box.
	ErrInvalidArgument = errors.New("spatial: invalid argument")

	// ErrInvalidHandle is returned by Update when the handle is zero, stale,
	// or belongs to a removed item.
	ErrInvalidHandle = errors.New("spatial: invalid handle")

	// ErrRefreshDisabled is returned by Refresh when the grid was built
	// without WithRefreshTracking.
	ErrRefreshDisabled = errors.New("spatial: refresh tracking not enabled")
)

// coverEpsilon keeps a box whose max edge sits exactly on a cell boundary
// from claiming the next cell over.
const coverEpsilon = 1e-9

// BoundsFunc produces the current bounding box for an item. It is bound once
// at construction and re-invoked on every Insert/Update/Refresh, so items may
// move freely between calls.
type BoundsFunc[T any] func(T) AABB

// Option configures a Grid at construction.
type Option func(*options)

type options struct {
	refreshTracking bool
}

// WithRefreshTracking enables the bulk Refresh operation. The handle table
// already knows every live item; this option only gates the API so that
// callers who update items individually don't call Refresh by accident.
func WithRefreshTracking() Option {
	return func(o *options) { o.refreshTracking = true }
}

// Grid is a uniform-grid spatial index over AABBs in a fixed-size world.
//
// The world is divided into cellSize x cellSize buckets (row-major). Each
// item occupies every bucket its box overlaps; queries touch only the buckets
// overlapping the query box. Cell coverage is an inclusive range on both
// axes, and boxes partially or fully outside the world are clamped to the
// nearest valid cells rather than rejected.
//
// World and cell size are fixed for the grid's lifetime; resizing is not
// supported.
type Grid[T any] struct {
	cellSize   float64
	cols, rows int
	bounds     BoundsFunc[T]

	buckets [][]int32 // buckets[row*cols+col] = entry indices
	entries []entry[T]
	free    []int32 // recycled entry slots
	live    int

	// stamp is the per-grid traversal generation. Each QueryFunc /
	// QueryHandleFunc call advances it once and marks visited entries, which
	// dedupes items spanning multiple buckets without allocating a set.
	stamp uint64

	// mutations counts individual bucket adds and removes. Updating a
	// stationary item performs none; tests and metrics rely on that.
	mutations uint64

	refreshTracking bool
}

// NewGrid creates a grid covering a worldWidth x worldHeight world with the
// given cell size. bounds is the accessor used to read each item's box.
//
// Returns ErrInvalidArgument if any dimension or the cell size is not
// strictly positive, or if bounds is nil.
//
// Cell size tuning: a good starting point is the extent of a typical item (or
// the typical query radius). AverageBucketSize and LargestBucketSize exist to
// measure how well the choice fits the data.
func NewGrid[T any](worldWidth, worldHeight, cellSize float64, bounds BoundsFunc[T], opts ...Option) (*Grid[T], error) {
	if bounds == nil {
		return nil, fmt.Errorf("%w: nil bounds accessor", ErrInvalidArgument)
	}
	// The negated comparisons also reject NaN.
	if !(cellSize > 0) || !(worldWidth > 0) || !(worldHeight > 0) ||
		math.IsInf(cellSize, 0) || math.IsInf(worldWidth, 0) || math.IsInf(worldHeight, 0) {
		return nil, fmt.Errorf("%w: cellSize=%v worldWidth=%v worldHeight=%v (all must be finite and > 0)",
			ErrInvalidArgument, cellSize, worldWidth, worldHeight)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	return &Grid[T]{
		cellSize:        cellSize,
		cols:            cols,
		rows:            rows,
		bounds:          bounds,
		buckets:         make([][]int32, cols*rows),
		refreshTracking: o.refreshTracking,
	}, nil
}

// coverage maps a box to the inclusive cell range it overlaps, clamped to
// grid bounds. Degenerate (zero-area) boxes map to exactly one cell.
func (g *Grid[T]) coverage(box AABB) cellRange {
	c := cellRange{
		x0: g.clampCol(math.Floor(box.MinX / g.cellSize)),
		y0: g.clampRow(math.Floor(box.MinY / g.cellSize)),
		x1: g.clampCol(math.Floor((box.MaxX - coverEpsilon) / g.cellSize)),
		y1: g.clampRow(math.Floor((box.MaxY - coverEpsilon) / g.cellSize)),
	}
	// The epsilon can push a degenerate box's max edge below its min edge.
	if c.x1 < c.x0 {
		c.x1 = c.x0
	}
	if c.y1 < c.y0 {
		c.y1 = c.y0
	}
	return c
}

// clampCol and clampRow compare in float space before converting: a finite
// coordinate can floor to a value past the int range, where the conversion
// result is not defined.
func (g *Grid[T]) clampCol(v float64) int {
	if v < 0 {
		return 0
	}
	if v >= float64(g.cols) {
		return g.cols - 1
	}
	return int(v)
}

func (g *Grid[T]) clampRow(v float64) int {
	if v < 0 {
		return 0
	}
	if v >= float64(g.rows) {
		return g.rows - 1
	}
	return int(v)
}

// Insert adds an item to the grid and returns its handle. The item's box is
// read through the bounds accessor; an unusable box (NaN, infinite, or
// min > max) yields ErrInvalidArgument and leaves the grid untouched.
//
// To move an item each tick, keep the handle and call Update - do not insert
// the item again.
func (g *Grid[T]) Insert(item T) (Handle, error) {
	box := g.bounds(item)
	if !box.usable() {
		return Handle{}, fmt.Errorf("%w: unusable bounding box %+v", ErrInvalidArgument, box)
	}

	var idx int32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.entries = append(g.entries, entry[T]{})
		idx = int32(len(g.entries) - 1)
	}

	e := &g.entries[idx]
	e.item = item
	e.gen++ // generational: stale handles to this slot stop matching
	e.live = true
	e.seen = 0
	e.cover = g.coverage(box)
	g.link(idx, e)
	g.live++

	return Handle{index: idx, gen: e.gen}, nil
}

// Update re-reads the item's box and refreshes its bucket membership.
//
// If the new cell coverage equals the cached one, Update returns without
// touching any bucket. This is a contract, not an optimization: re-inserting
// a stationary item every tick costs a coverage computation and nothing else,
// which is what makes calling Update for every item each frame affordable.
//
// Returns ErrInvalidHandle for zero or stale handles and ErrInvalidArgument
// if the accessor now produces an unusable box (membership is left as-is).
func (g *Grid[T]) Update(h Handle) error {
	e := g.lookup(h)
	if e == nil {
		return ErrInvalidHandle
	}
	box := g.bounds(e.item)
	if !box.usable() {
		return fmt.Errorf("%w: unusable bounding box %+v", ErrInvalidArgument, box)
	}
	cover := g.coverage(box)
	if cover == e.cover {
		return nil // stationary: zero bucket mutations
	}
	g.unlink(h.index, e)
	e.cover = cover
	g.link(h.index, e)
	return nil
}

// Remove erases the item from every bucket it occupies and retires the
// handle. Removing with a zero or stale handle is a no-op, so callers may
// remove defensively without tracking liveness themselves.
func (g *Grid[T]) Remove(h Handle) {
	e := g.lookup(h)
	if e == nil {
		return
	}
	g.unlink(h.index, e)
	e.live = false
	e.cover = cellRange{}
	var zero T
	e.item = zero // drop the reference so the caller's item can be collected
	g.free = append(g.free, h.index)
	g.live--
}

// link adds the entry to every bucket in its coverage range.
func (g *Grid[T]) link(idx int32, e *entry[T]) {
	for cy := e.cover.y0; cy <= e.cover.y1; cy++ {
		base := cy * g.cols
		for cx := e.cover.x0; cx <= e.cover.x1; cx++ {
			b := base + cx
			g.buckets[b] = append(g.buckets[b], idx)
			e.buckets = append(e.buckets, int32(b))
			g.mutations++
		}
	}
}

// unlink removes the entry from every bucket listed in its membership.
// Order within a bucket is not significant, so removal is swap-with-last.
func (g *Grid[T]) unlink(idx int32, e *entry[T]) {
	for _, b := range e.buckets {
		bucket := g.buckets[b]
		for i, id := range bucket {
			if id == idx {
				bucket[i] = bucket[len(bucket)-1]
				g.buckets[b] = bucket[:len(bucket)-1]
				g.mutations++
				break
			}
		}
	}
	e.buckets = e.buckets[:0] // keep capacity for the next link
}

// lookup resolves a handle to its live entry, or nil.
func (g *Grid[T]) lookup(h Handle) *entry[T] {
	if h.gen == 0 || h.index < 0 || int(h.index) >= len(g.entries) {
		return nil
	}
	e := &g.entries[h.index]
	if !e.live || e.gen != h.gen {
		return nil
	}
	return e
}

// Query returns the concatenated contents of every bucket the box overlaps.
//
// The result MAY contain duplicates: an item spanning multiple covered
// buckets appears once per bucket. That is the documented contract - use
// QueryFunc when each item must be seen at most once. An unusable box yields
// nil.
func (g *Grid[T]) Query(box AABB) []T {
	if !box.usable() {
		return nil
	}
	cover := g.coverage(box)
	var out []T
	for cy := cover.y0; cy <= cover.y1; cy++ {
		base := cy * g.cols
		for cx := cover.x0; cx <= cover.x1; cx++ {
			for _, idx := range g.buckets[base+cx] {
				out = append(out, g.entries[idx].item)
			}
		}
	}
	return out
}

// QueryFunc visits every distinct item whose coverage overlaps the box,
// invoking visit at most once per item no matter how many covered buckets the
// item occupies. Deduplication uses the grid's generation stamp, so the
// traversal allocates nothing.
//
// visit returning true stops the traversal immediately; QueryFunc then
// returns true. It returns false after exhausting all covered buckets.
func (g *Grid[T]) QueryFunc(box AABB, visit func(T) bool) bool {
	if visit == nil || !box.usable() {
		return false
	}
	cover := g.coverage(box)
	g.stamp++
	stamp := g.stamp
	for cy := cover.y0; cy <= cover.y1; cy++ {
		base := cy * g.cols
		for cx := cover.x0; cx <= cover.x1; cx++ {
			for _, idx := range g.buckets[base+cx] {
				e := &g.entries[idx]
				if e.seen == stamp {
					continue
				}
				e.seen = stamp
				if visit(e.item) {
					return true
				}
			}
		}
	}
	return false
}

// QueryHandleFunc visits every distinct item sharing at least one bucket with
// h's current membership - the usual "who might I collide with" query for a
// known item. The same stamp protocol as QueryFunc applies, and the item
// behind h is pre-stamped so visit never sees it.
//
// The traversal iterates the buckets recorded by h's last Insert/Update, not
// a fresh coverage computation, so results are only as fresh as that call.
// A zero or stale handle visits nothing and returns false.
func (g *Grid[T]) QueryHandleFunc(h Handle, visit func(T) bool) bool {
	e := g.lookup(h)
	if e == nil || visit == nil {
		return false
	}
	g.stamp++
	stamp := g.stamp
	e.seen = stamp
	for _, b := range e.buckets {
		for _, idx := range g.buckets[b] {
			o := &g.entries[idx]
			if o.seen == stamp {
				continue
			}
			o.seen = stamp
			if visit(o.item) {
				return true
			}
		}
	}
	return false
}

// Refresh re-runs Update for every live item. Thanks to the unchanged-
// coverage early-out, the cost is proportional to the number of items that
// actually moved between cells, plus one coverage computation per item.
//
// Only valid when the grid was built with WithRefreshTracking; otherwise
// returns ErrRefreshDisabled. Stops at the first item whose box has become
// unusable.
func (g *Grid[T]) Refresh() error {
	if !g.refreshTracking {
		return ErrRefreshDisabled
	}
	for i := range g.entries {
		e := &g.entries[i]
		if !e.live {
			continue
		}
		if err := g.Update(Handle{index: int32(i), gen: e.gen}); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of live items in the grid.
func (g *Grid[T]) Len() int { return g.live }

// Dimensions returns the grid dimensions.
func (g *Grid[T]) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

// Mutations returns the cumulative count of individual bucket adds and
// removes. Exposed for tests and metrics; Update of a stationary item leaves
// it unchanged.
func (g *Grid[T]) Mutations() uint64 { return g.mutations }

// GridStats contains occupancy statistics for debugging and cell-size tuning.
type GridStats struct {
	TotalBuckets    int     `json:"totalBuckets"`
	NonEmptyBuckets int     `json:"nonEmptyBuckets"`
	Items           int     `json:"items"`
	ItemRefs        int     `json:"itemRefs"` // bucket references; items spanning k buckets count k times
	LargestBucket   int     `json:"largestBucket"`
	AverageBucket   float64 `json:"averageBucket"` // refs / total buckets
	Mutations       uint64  `json:"mutations"`
}

// Stats walks all buckets and aggregates occupancy counts. Pure; no side
// effects.
func (g *Grid[T]) Stats() GridStats {
	var refs, largest, nonEmpty int
	for _, bucket := range g.buckets {
		n := len(bucket)
		refs += n
		if n > largest {
			largest = n
		}
		if n > 0 {
			nonEmpty++
		}
	}
	return GridStats{
		TotalBuckets:    len(g.buckets),
		NonEmptyBuckets: nonEmpty,
		Items:           g.live,
		ItemRefs:        refs,
		LargestBucket:   largest,
		AverageBucket:   float64(refs) / float64(len(g.buckets)),
		Mutations:       g.mutations,
	}
}

// AverageBucketSize returns the mean occupancy across all buckets (including
// empty ones). A value far below 1 with a large LargestBucketSize suggests
// the cell size is too small for the data.
func (g *Grid[T]) AverageBucketSize() float64 {
	return g.Stats().AverageBucket
}

// LargestBucketSize returns the occupancy of the fullest bucket.
func (g *Grid[T]) LargestBucketSize() int {
	return g.Stats().LargestBucket
}

// BucketView is one bucket's world-space rectangle and a copy of its
// contents, as returned by Buckets.
type BucketView[T any] struct {
	Cell  AABB
	Items []T
}

// Buckets returns every bucket with its cell rectangle and current contents,
// in row-major order. Intended for visualization and debugging only; no core
// operation depends on it. Items slices are copies and safe to retain.
func (g *Grid[T]) Buckets() []BucketView[T] {
	views := make([]BucketView[T], 0, len(g.buckets))
	for b, bucket := range g.buckets {
		cx := b % g.cols
		cy := b / g.cols
		view := BucketView[T]{
			Cell: AABB{
				MinX: float64(cx) * g.cellSize,
				MinY: float64(cy) * g.cellSize,
				MaxX: float64(cx+1) * g.cellSize,
				MaxY: float64(cy+1) * g.cellSize,
			},
		}
		if len(bucket) > 0 {
			view.Items = make([]T, len(bucket))
			for i, idx := range bucket {
				view.Items[i] = g.entries[idx].item
			}
		}
		views = append(views, view)
	}
	return views
}
