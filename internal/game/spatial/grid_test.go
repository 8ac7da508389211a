package spatial

import (
	"errors"
	"math"
	"testing"
)

// box is a minimal movable item for exercising the grid.
type box struct {
	id     int
	bounds AABB
}

func boxBounds(b *box) AABB { return b.bounds }

// newTestGrid builds the canonical test world: cellSize 10, 100x100 world,
// 10x10 = 100 buckets.
func newTestGrid(t *testing.T, opts ...Option) *Grid[*box] {
	t.Helper()
	g, err := NewGrid(100, 100, 10, boxBounds, opts...)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	return g
}

func worldBox() AABB { return AABB{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100} }

func count(items []*box, want *box) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

// TestNewGrid verifies construction argument validation and grid dimensions.
func TestNewGrid(t *testing.T) {
	tests := []struct {
		name               string
		w, h, cell         float64
		nilBounds          bool
		wantErr            bool
		wantCols, wantRows int
	}{
		{name: "valid 10x10", w: 100, h: 100, cell: 10, wantCols: 10, wantRows: 10},
		{name: "non-divisible world rounds up", w: 105, h: 95, cell: 10, wantCols: 11, wantRows: 10},
		{name: "world smaller than one cell", w: 5, h: 5, cell: 10, wantCols: 1, wantRows: 1},
		{name: "zero cell size", w: 100, h: 100, cell: 0, wantErr: true},
		{name: "negative cell size", w: 100, h: 100, cell: -1, wantErr: true},
		{name: "NaN cell size", w: 100, h: 100, cell: math.NaN(), wantErr: true},
		{name: "zero world width", w: 0, h: 100, cell: 10, wantErr: true},
		{name: "negative world height", w: 100, h: -100, cell: 10, wantErr: true},
		{name: "infinite world width", w: math.Inf(1), h: 100, cell: 10, wantErr: true},
		{name: "nil bounds accessor", w: 100, h: 100, cell: 10, nilBounds: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bounds := boxBounds
			if tt.nilBounds {
				bounds = nil
			}
			g, err := NewGrid(tt.w, tt.h, tt.cell, bounds)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("want ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGrid failed: %v", err)
			}
			cols, rows, cell := g.Dimensions()
			if cols != tt.wantCols || rows != tt.wantRows || cell != tt.cell {
				t.Errorf("Dimensions() = (%d, %d, %v), want (%d, %d, %v)",
					cols, rows, cell, tt.wantCols, tt.wantRows, tt.cell)
			}
		})
	}
}

// TestInsertThenQueryContains checks the basic round trip: immediately after
// Insert, querying the item's own box finds it.
func TestInsertThenQueryContains(t *testing.T) {
	g := newTestGrid(t)
	b := &box{id: 1, bounds: AABB{MinX: 33, MinY: 47, MaxX: 38, MaxY: 52}}
	if _, err := g.Insert(b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if count(g.Query(b.bounds), b) < 1 {
		t.Error("Query(item's own box) does not contain the item")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

// TestFourBucketScenario covers the canonical multi-bucket case: cellSize 10,
// item (5,5,15,15) spans cells (0,0),(1,0),(0,1),(1,1). Query duplicates
// equal the number of shared covering buckets; QueryFunc dedupes to one visit.
func TestFourBucketScenario(t *testing.T) {
	g := newTestGrid(t)
	a := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}}
	if _, err := g.Insert(a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Exactly the four expected buckets hold a reference.
	wantCells := map[[2]float64]bool{
		{0, 0}: true, {10, 0}: true, {0, 10}: true, {10, 10}: true,
	}
	for _, view := range g.Buckets() {
		holds := count(view.Items, a) == 1
		if wantCells[[2]float64{view.Cell.MinX, view.Cell.MinY}] {
			if !holds {
				t.Errorf("bucket at (%v,%v) should contain the item", view.Cell.MinX, view.Cell.MinY)
			}
		} else if count(view.Items, a) != 0 {
			t.Errorf("bucket at (%v,%v) should not contain the item", view.Cell.MinX, view.Cell.MinY)
		}
	}

	// Query covering all four buckets returns the item once per bucket.
	q := AABB{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}
	if n := count(g.Query(q), a); n != 4 {
		t.Errorf("Query returned item %d times, want 4", n)
	}

	// A query sharing only two covering buckets returns it twice.
	q2 := AABB{MinX: 0, MinY: 0, MaxX: 20, MaxY: 10}
	if n := count(g.Query(q2), a); n != 2 {
		t.Errorf("partial Query returned item %d times, want 2", n)
	}

	// QueryFunc visits exactly once regardless of bucket span.
	visits := 0
	stopped := g.QueryFunc(q, func(it *box) bool {
		if it == a {
			visits++
		}
		return false
	})
	if stopped {
		t.Error("QueryFunc reported early stop without one being requested")
	}
	if visits != 1 {
		t.Errorf("QueryFunc visited item %d times, want 1", visits)
	}
}

// TestOutOfWorldClamping checks that boxes beyond the world edge clamp to the
// nearest valid cells instead of faulting or vanishing.
func TestOutOfWorldClamping(t *testing.T) {
	tests := []struct {
		name     string
		bounds   AABB
		wantCell AABB // the single bucket expected to hold the item
	}{
		{
			name:     "straddles origin",
			bounds:   AABB{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5},
			wantCell: AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
		},
		{
			name:     "fully outside negative",
			bounds:   AABB{MinX: -50, MinY: -50, MaxX: -40, MaxY: -40},
			wantCell: AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
		},
		{
			name:     "fully outside positive",
			bounds:   AABB{MinX: 150, MinY: 150, MaxX: 160, MaxY: 160},
			wantCell: AABB{MinX: 90, MinY: 90, MaxX: 100, MaxY: 100},
		},
		{
			// Finite but far beyond the int range once divided by cellSize;
			// the clamp must not go through an overflowing conversion.
			name:     "huge positive coordinates",
			bounds:   AABB{MinX: 1e300, MinY: 1e300, MaxX: 1e300, MaxY: 1e300},
			wantCell: AABB{MinX: 90, MinY: 90, MaxX: 100, MaxY: 100},
		},
		{
			name:     "huge negative coordinates",
			bounds:   AABB{MinX: -1e300, MinY: -1e300, MaxX: -1e300, MaxY: -1e300},
			wantCell: AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrid(t)
			b := &box{id: 1, bounds: tt.bounds}
			if _, err := g.Insert(b); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
			refs := 0
			for _, view := range g.Buckets() {
				n := count(view.Items, b)
				refs += n
				if n > 0 && (view.Cell.MinX != tt.wantCell.MinX || view.Cell.MinY != tt.wantCell.MinY) {
					t.Errorf("item placed in bucket at (%v,%v), want (%v,%v)",
						view.Cell.MinX, view.Cell.MinY, tt.wantCell.MinX, tt.wantCell.MinY)
				}
			}
			if refs != 1 {
				t.Errorf("item referenced by %d buckets, want exactly 1", refs)
			}
		})
	}

	t.Run("huge box covers the whole grid", func(t *testing.T) {
		g := newTestGrid(t)
		b := &box{id: 1, bounds: AABB{MinX: -1e300, MinY: -1e300, MaxX: 1e300, MaxY: 1e300}}
		if _, err := g.Insert(b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		for _, view := range g.Buckets() {
			if count(view.Items, b) != 1 {
				t.Fatalf("bucket at (%v,%v) missing the world-spanning item",
					view.Cell.MinX, view.Cell.MinY)
			}
		}
		if count(g.Query(b.bounds), b) != 100 {
			t.Error("world-spanning query box did not reach every bucket")
		}
	})
}

// TestCellBoundaryConvention pins the inclusive-range convention: a max edge
// exactly on a cell boundary does not claim the next cell, and a min edge
// exactly on a boundary belongs to the cell it starts.
func TestCellBoundaryConvention(t *testing.T) {
	tests := []struct {
		name     string
		bounds   AABB
		wantRefs int
	}{
		{"max edge on boundary stays in one cell", AABB{0, 0, 10, 10}, 1},
		{"just past the boundary takes two columns", AABB{0, 0, 10.001, 10}, 2},
		{"min edge on boundary starts in its own cell", AABB{10, 10, 15, 15}, 1},
		{"degenerate point maps to one cell", AABB{25, 25, 25, 25}, 1},
		{"degenerate point on boundary maps to one cell", AABB{10, 10, 10, 10}, 1},
		{"zero-width vertical box spans rows only", AABB{25, 5, 25, 15}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrid(t)
			b := &box{id: 1, bounds: tt.bounds}
			if _, err := g.Insert(b); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
			refs := 0
			for _, view := range g.Buckets() {
				refs += count(view.Items, b)
			}
			if refs != tt.wantRefs {
				t.Errorf("item referenced by %d buckets, want %d", refs, tt.wantRefs)
			}
		})
	}
}

// TestUpdateStationaryIsFree pins the skip-if-unchanged contract: updating an
// item whose coverage did not change performs zero bucket mutations.
func TestUpdateStationaryIsFree(t *testing.T) {
	g := newTestGrid(t)
	b := &box{id: 1, bounds: AABB{MinX: 12, MinY: 12, MaxX: 16, MaxY: 16}}
	h, err := g.Insert(b)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	before := g.Mutations()
	// Same box.
	if err := g.Update(h); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// Moved, but still inside cell (1,1).
	b.bounds = AABB{MinX: 13, MinY: 11, MaxX: 17, MaxY: 15}
	if err := g.Update(h); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := g.Mutations(); got != before {
		t.Errorf("stationary updates mutated buckets: %d -> %d", before, got)
	}

	// Crossing into the next column must rewrite membership.
	b.bounds = AABB{MinX: 23, MinY: 11, MaxX: 27, MaxY: 15}
	if err := g.Update(h); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if g.Mutations() == before {
		t.Error("moving across cells performed no bucket mutations")
	}
	if count(g.Query(AABB{MinX: 20, MinY: 10, MaxX: 30, MaxY: 20}), b) != 1 {
		t.Error("item not found at its new cell")
	}
	if count(g.Query(AABB{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}), b) != 0 {
		t.Error("item still found at its old cell")
	}
}

// TestRemove covers removal, idempotence, and handle staleness.
func TestRemove(t *testing.T) {
	g := newTestGrid(t)
	b := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}}
	h, err := g.Insert(b)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	g.Remove(h)
	if n := count(g.Query(worldBox()), b); n != 0 {
		t.Errorf("removed item still returned %d times by a whole-world query", n)
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", g.Len())
	}

	// Double remove and zero handle are no-ops.
	g.Remove(h)
	g.Remove(Handle{})

	// Stale handle no longer updates.
	if err := g.Update(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Update on stale handle: got %v, want ErrInvalidHandle", err)
	}

	// Fresh reinsert works and issues a distinct handle.
	h2, err := g.Insert(b)
	if err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}
	if h2 == h {
		t.Error("reinsert returned the retired handle unchanged")
	}
	if count(g.Query(b.bounds), b) < 1 {
		t.Error("reinserted item not found")
	}
}

// TestHandleSlotReuse checks that a retired handle cannot disturb the item
// that later reuses its slot.
func TestHandleSlotReuse(t *testing.T) {
	g := newTestGrid(t)
	a := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 8, MaxY: 8}}
	ha, err := g.Insert(a)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	g.Remove(ha)

	b := &box{id: 2, bounds: AABB{MinX: 55, MinY: 55, MaxX: 58, MaxY: 58}}
	if _, err := g.Insert(b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// The retired handle must not remove or move b.
	g.Remove(ha)
	if err := g.Update(ha); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("stale handle Update: got %v, want ErrInvalidHandle", err)
	}
	if count(g.Query(worldBox()), b) != 1 {
		t.Error("slot reuse: surviving item disturbed by retired handle")
	}
}

// TestInsertUnusableBounds verifies that broken accessor output is rejected
// instead of producing NaN cell indices.
func TestInsertUnusableBounds(t *testing.T) {
	tests := []struct {
		name   string
		bounds AABB
	}{
		{"NaN coordinate", AABB{MinX: math.NaN(), MinY: 0, MaxX: 1, MaxY: 1}},
		{"infinite coordinate", AABB{MinX: 0, MinY: 0, MaxX: math.Inf(1), MaxY: 1}},
		{"inverted x", AABB{MinX: 10, MinY: 0, MaxX: 5, MaxY: 1}},
		{"inverted y", AABB{MinX: 0, MinY: 10, MaxX: 1, MaxY: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrid(t)
			_, err := g.Insert(&box{id: 1, bounds: tt.bounds})
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("got %v, want ErrInvalidArgument", err)
			}
			if g.Len() != 0 || g.Mutations() != 0 {
				t.Error("rejected insert left state behind")
			}
		})
	}
}

// TestQueryFuncEarlyStop verifies the stop signal terminates traversal and is
// reported by the return value.
func TestQueryFuncEarlyStop(t *testing.T) {
	g := newTestGrid(t)
	for i := 0; i < 5; i++ {
		x := float64(i * 15)
		if _, err := g.Insert(&box{id: i, bounds: AABB{MinX: x, MinY: 0, MaxX: x + 5, MaxY: 5}}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	visits := 0
	stopped := g.QueryFunc(worldBox(), func(*box) bool {
		visits++
		return visits == 2
	})
	if !stopped {
		t.Error("QueryFunc did not report the early stop")
	}
	if visits != 2 {
		t.Errorf("visit called %d times after stop, want 2", visits)
	}

	// Without a stop request the traversal reports false and sees everyone.
	visits = 0
	if g.QueryFunc(worldBox(), func(*box) bool { visits++; return false }) {
		t.Error("QueryFunc reported a stop that never happened")
	}
	if visits != 5 {
		t.Errorf("full traversal visited %d items, want 5", visits)
	}
}

// TestQueryFuncDedupeAcrossCalls makes sure the stamp protocol resets between
// calls: an item visited in one traversal is visited again in the next.
func TestQueryFuncDedupeAcrossCalls(t *testing.T) {
	g := newTestGrid(t)
	b := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 25, MaxY: 25}}
	if _, err := g.Insert(b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	for call := 0; call < 3; call++ {
		visits := 0
		g.QueryFunc(worldBox(), func(*box) bool { visits++; return false })
		if visits != 1 {
			t.Fatalf("call %d: visited %d times, want 1", call, visits)
		}
	}
}

// TestQueryHandleFunc checks the neighbor query: only items sharing a bucket
// with the handle's membership are visited, each at most once, never the item
// itself.
func TestQueryHandleFunc(t *testing.T) {
	g := newTestGrid(t)
	// a spans cells (0,0)..(1,1); b shares cell (1,1); c is far away.
	a := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}}
	bb := &box{id: 2, bounds: AABB{MinX: 16, MinY: 16, MaxX: 19, MaxY: 19}}
	c := &box{id: 3, bounds: AABB{MinX: 75, MinY: 75, MaxX: 85, MaxY: 85}}

	ha, err := g.Insert(a)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := g.Insert(bb); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	hc, err := g.Insert(c)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	seen := map[int]int{}
	g.QueryHandleFunc(ha, func(it *box) bool {
		seen[it.id]++
		return false
	})
	if seen[1] != 0 {
		t.Error("QueryHandleFunc visited the queried item itself")
	}
	if seen[2] != 1 {
		t.Errorf("bucket-sharing neighbor visited %d times, want 1", seen[2])
	}
	if seen[3] != 0 {
		t.Error("item sharing no bucket was visited")
	}

	// Symmetric check from the far item: neither a nor b is a neighbor.
	seen = map[int]int{}
	g.QueryHandleFunc(hc, func(it *box) bool {
		seen[it.id]++
		return false
	})
	if len(seen) != 0 {
		t.Errorf("isolated item saw neighbors: %v", seen)
	}

	// Stale handle visits nothing.
	g.Remove(ha)
	if g.QueryHandleFunc(ha, func(*box) bool { t.Error("visited via stale handle"); return false }) {
		t.Error("stale handle reported an early stop")
	}
}

// TestRefresh covers the bulk re-insert pass and its gating option.
func TestRefresh(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		g := newTestGrid(t)
		if err := g.Refresh(); !errors.Is(err, ErrRefreshDisabled) {
			t.Fatalf("got %v, want ErrRefreshDisabled", err)
		}
	})

	t.Run("moves tracked items", func(t *testing.T) {
		g := newTestGrid(t, WithRefreshTracking())
		moving := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 8, MaxY: 8}}
		still := &box{id: 2, bounds: AABB{MinX: 55, MinY: 55, MaxX: 58, MaxY: 58}}
		if _, err := g.Insert(moving); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if _, err := g.Insert(still); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		moving.bounds = AABB{MinX: 35, MinY: 35, MaxX: 38, MaxY: 38}
		before := g.Mutations()
		if err := g.Refresh(); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		// One item moved one cell to another: exactly one remove + one add.
		if got := g.Mutations() - before; got != 2 {
			t.Errorf("Refresh performed %d bucket mutations, want 2", got)
		}
		if count(g.Query(AABB{MinX: 30, MinY: 30, MaxX: 40, MaxY: 40}), moving) != 1 {
			t.Error("moved item not found at its new cell after Refresh")
		}
		if count(g.Query(AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}), moving) != 0 {
			t.Error("moved item still at its old cell after Refresh")
		}

		// Second refresh with nothing moving is free.
		before = g.Mutations()
		if err := g.Refresh(); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if g.Mutations() != before {
			t.Error("idle Refresh mutated buckets")
		}
	})
}

// TestStats pins the diagnostic aggregates on a known layout.
func TestStats(t *testing.T) {
	g := newTestGrid(t)
	// a spans 4 buckets; b shares one of them.
	a := &box{id: 1, bounds: AABB{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}}
	bb := &box{id: 2, bounds: AABB{MinX: 11, MinY: 11, MaxX: 14, MaxY: 14}}
	if _, err := g.Insert(a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := g.Insert(bb); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	stats := g.Stats()
	if stats.TotalBuckets != 100 {
		t.Errorf("TotalBuckets = %d, want 100", stats.TotalBuckets)
	}
	if stats.Items != 2 {
		t.Errorf("Items = %d, want 2", stats.Items)
	}
	if stats.ItemRefs != 5 {
		t.Errorf("ItemRefs = %d, want 5", stats.ItemRefs)
	}
	if stats.NonEmptyBuckets != 4 {
		t.Errorf("NonEmptyBuckets = %d, want 4", stats.NonEmptyBuckets)
	}
	if stats.LargestBucket != 2 {
		t.Errorf("LargestBucket = %d, want 2", stats.LargestBucket)
	}
	if want := 0.05; math.Abs(stats.AverageBucket-want) > 1e-12 {
		t.Errorf("AverageBucket = %v, want %v", stats.AverageBucket, want)
	}
	if g.LargestBucketSize() != 2 {
		t.Errorf("LargestBucketSize() = %d, want 2", g.LargestBucketSize())
	}
	if math.Abs(g.AverageBucketSize()-0.05) > 1e-12 {
		t.Errorf("AverageBucketSize() = %v, want 0.05", g.AverageBucketSize())
	}
}

// TestAABBFromRect checks the origin+extent adapter.
func TestAABBFromRect(t *testing.T) {
	got := AABBFromRect(5, 10, 20, 30)
	want := AABB{MinX: 5, MinY: 10, MaxX: 25, MaxY: 40}
	if got != want {
		t.Errorf("AABBFromRect = %+v, want %+v", got, want)
	}
	if got.Width() != 20 || got.Height() != 30 {
		t.Errorf("Width/Height = %v/%v, want 20/30", got.Width(), got.Height())
	}
}
