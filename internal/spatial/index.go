// Package spatial maintains the derived grid index over all claims.
// The index is never authoritative: it holds references into the claim
// store and is rebuilt whenever the version clock says the canonical
// data moved, at most once per game tick.
package spatial

import (
	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/geo"
)

const (
	MinCellSize     = 16
	MaxCellSize     = 256
	DefaultCellSize = 64
)

// ClampCellSize forces a configured cell size into the supported range.
// Zero or negative means "use the default".
func ClampCellSize(cs int) int {
	if cs <= 0 {
		cs = DefaultCellSize
	}
	if cs < MinCellSize {
		return MinCellSize
	}
	if cs > MaxCellSize {
		return MaxCellSize
	}
	return cs
}

// TickSource reports the current game tick; the index uses it only to
// debounce rebuild checks inside a single tick.
type TickSource func() uint64

type cellKey struct {
	X int
	Z int
}

// Index is the uniform-grid acceleration structure. Every claim is
// inserted into each cell its bounding square overlaps, so a point
// query only needs the 3x3 neighborhood around the point's cell.
type Index struct {
	store *claim.Store
	ticks TickSource

	version  uint64
	cell     int
	tick     uint64
	haveTick bool

	flat []claim.Entry
	grid map[cellKey][]claim.Entry
}

func NewIndex(store *claim.Store, ticks TickSource) *Index {
	if ticks == nil {
		ticks = func() uint64 { return 0 }
	}
	return &Index{store: store, ticks: ticks}
}

func cellOf(x, z, cell int) cellKey {
	return cellKey{X: geo.FloorDiv(x, cell), Z: geo.FloorDiv(z, cell)}
}

// Ensure makes the index current for this tick. The version clock is
// the real invalidation signal; the tick check only keeps a busy tick
// from re-comparing versions on every block event.
func (i *Index) Ensure(cellSize int) {
	now := i.ticks()
	if i.haveTick && i.tick == now && i.grid != nil {
		return
	}
	want := i.store.Clock().Current()
	cs := ClampCellSize(cellSize)
	if i.grid != nil && i.version == want && i.cell == cs {
		i.tick, i.haveTick = now, true
		return
	}
	i.Rebuild(want, cs)
	i.tick, i.haveTick = now, true
}

// Rebuild reconstructs the flat list and grid for the given version.
func (i *Index) Rebuild(version uint64, cellSize int) {
	cs := ClampCellSize(cellSize)
	flat := i.store.All()
	grid := make(map[cellKey][]claim.Entry, len(flat)*2)
	for _, e := range flat {
		c := e.Claim
		r := geo.AbsInt(c.Radius)
		min := cellOf(c.X-r, c.Z-r, cs)
		max := cellOf(c.X+r, c.Z+r, cs)
		for gx := min.X; gx <= max.X; gx++ {
			for gz := min.Z; gz <= max.Z; gz++ {
				k := cellKey{X: gx, Z: gz}
				grid[k] = append(grid[k], e)
			}
		}
	}
	i.flat = flat
	i.grid = grid
	i.version = version
	i.cell = cs
}

// QueryPoint returns the candidate claims whose bounding squares may
// cover (x,z): the union of the 3x3 cell neighborhood, deduplicated.
// Candidates are not containment-confirmed; callers filter. When the
// grid is unavailable the flat list is scanned instead, with identical
// results.
func (i *Index) QueryPoint(x, z int) []claim.Entry {
	if i.grid == nil {
		return i.scanPoint(x, z)
	}
	center := cellOf(x, z, i.cell)
	seen := make(map[*claim.Claim]struct{}, 8)
	var out []claim.Entry
	for gx := center.X - 1; gx <= center.X+1; gx++ {
		for gz := center.Z - 1; gz <= center.Z+1; gz++ {
			for _, e := range i.grid[cellKey{X: gx, Z: gz}] {
				if _, dup := seen[e.Claim]; dup {
					continue
				}
				seen[e.Claim] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out
}

// scanPoint is the O(N) fallback: hand every claim back as a
// candidate. Callers confirm containment either way, so the resolved
// answer is identical to the grid path's.
func (i *Index) scanPoint(x, z int) []claim.Entry {
	_ = x
	_ = z
	if i.flat != nil {
		return i.flat
	}
	return i.store.All()
}

// All returns every (owner, claim) pair from the current cache.
func (i *Index) All() []claim.Entry {
	if i.flat != nil {
		return i.flat
	}
	return i.store.All()
}

// Version is the clock value the current grid was built for.
func (i *Index) Version() uint64 { return i.version }

// CellSize is the grid cell size of the current build.
func (i *Index) CellSize() int { return i.cell }

// Invalidate drops the cached structures; the next Ensure rebuilds.
func (i *Index) Invalidate() {
	i.grid = nil
	i.flat = nil
	i.haveTick = false
}
