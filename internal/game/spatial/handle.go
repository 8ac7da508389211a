package spatial

// Handle identifies an item inserted into a Grid. It is issued by Insert and
// consumed by Update, Remove and QueryHandleFunc. Handles are generational:
// after Remove, the old handle goes stale and operations on it no-op (or
// return ErrInvalidHandle), even if the slot is later reused.
//
// The zero Handle is never valid.
type Handle struct {
	index int32
	gen   uint32
}

// IsZero reports whether h is the zero Handle (never issued by any Grid).
func (h Handle) IsZero() bool { return h.gen == 0 }

// entry is the per-item record in the grid's handle table: the item itself,
// its last-inserted cell coverage, the buckets currently referencing it, and
// the dedupe stamp of the last traversal that visited it.
type entry[T any] struct {
	item    T
	gen     uint32
	live    bool
	cover   cellRange
	buckets []int32 // bucket indices currently holding this entry
	seen    uint64  // stamp of the last QueryFunc/QueryHandleFunc visit
}

// cellRange is an inclusive range of grid cells, [x0..x1] x [y0..y1].
type cellRange struct {
	x0, y0, x1, y1 int
}
