// Package grid implements the routing grid: a three-dimensional lattice of
// cells (layer x row x column) holding obstacle, ownership and congestion
// state for one routing job.
//
// Cells sit on lattice points: cell (col, row) is the world point
// origin + (col, row) * resolution. A route's centerline occupies cells with
// capacity one; its clearance halo only adds to HaloCount. A cell is
// overused when a centerline shares it with another centerline or with
// another route's halo.
//
// The grid is owned by a single Autorouter. Clone produces an independent
// snapshot for concurrent read-only searches.
package grid

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// MaxCells bounds the grid size of a single job
const MaxCells = 64 << 20

// Cell is the state of one lattice point on one layer
type Cell struct {
	Blocked     bool    // Owned by Net (pad, pad clearance or committed route)
	IsObstacle  bool    // Never traversable
	Fixed       bool    // Owned by a pad; survives UnmarkRoute
	Trace       bool    // Centerline of a committed route of Net
	Net         int     // Owning net, 0 = none
	UsageCount  int32   // Route centerlines claiming the cell
	HaloCount   int32   // Route clearance halos covering the cell
	HistoryCost float64 // Accumulated negotiation penalty
}

// Overflow returns how far the cell exceeds its capacity of one centerline
func (c *Cell) Overflow() int {
	if c.UsageCount < 1 {
		return 0
	}
	return int(c.UsageCount + c.HaloCount - 1)
}

// Coord addresses a cell
type Coord struct {
	Col, Row, Layer int
}

// Offset is a planar displacement in cells
type Offset struct {
	DC, DR int
}

// Grid is the routing lattice
type Grid struct {
	cols, rows, layers int
	origin             sexp.Position
	res                float64
	rules              rules.DesignRules
	presentFactor      float64
	cells              []Cell

	// Exact geometry, read-only once the grid is prepared
	shapes       []shapeEntry
	tiles        map[tileKey][]int
	maxClearance float64
	board        primitives.BoardGeometry
	hasBoard     bool
}

// New creates an empty grid covering bounds with one plane per layer.
func New(bounds sexp.BoundingBox, layers int, r rules.DesignRules) (*Grid, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if bounds.IsEmpty() || !(bounds.Width() > 0) || !(bounds.Height() > 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "board area %.3fx%.3f mm is empty", bounds.Width(), bounds.Height())
	}
	if layers < 1 {
		return nil, errors.New(errors.ErrCodeInvalidLayer, "grid needs at least one layer, got %d", layers)
	}

	cols := int(math.Ceil(bounds.Width()/r.GridResolution-1e-9)) + 1
	rows := int(math.Ceil(bounds.Height()/r.GridResolution-1e-9)) + 1
	if total := cols * rows * layers; total > MaxCells {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"grid of %dx%dx%d cells exceeds %d, increase grid_resolution", cols, rows, layers, MaxCells)
	}

	return &Grid{
		cols:          cols,
		rows:          rows,
		layers:        layers,
		origin:        bounds.Min,
		res:           r.GridResolution,
		rules:         r,
		presentFactor: r.PresentCostFactor,
		cells:         make([]Cell, cols*rows*layers),
	}, nil
}

// Cols returns the number of columns
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of rows
func (g *Grid) Rows() int { return g.rows }

// Layers returns the number of layers
func (g *Grid) Layers() int { return g.layers }

// Resolution returns the cell pitch in mm
func (g *Grid) Resolution() float64 { return g.res }

// Origin returns the world position of cell (0, 0)
func (g *Grid) Origin() sexp.Position { return g.origin }

// Rules returns the design rules the grid was built with
func (g *Grid) Rules() rules.DesignRules { return g.rules }

// InBounds reports whether (col, row, layer) addresses a cell
func (g *Grid) InBounds(col, row, layer int) bool {
	return col >= 0 && col < g.cols && row >= 0 && row < g.rows && layer >= 0 && layer < g.layers
}

func (g *Grid) index(col, row, layer int) int {
	return (layer*g.rows+row)*g.cols + col
}

// At returns the cell at (col, row, layer), or nil when out of bounds
func (g *Grid) At(col, row, layer int) *Cell {
	if !g.InBounds(col, row, layer) {
		return nil
	}
	return &g.cells[g.index(col, row, layer)]
}

// WorldToGrid maps a world position to the nearest cell, clamped to the
// grid bounds.
func (g *Grid) WorldToGrid(x, y float64) (col, row int) {
	col = clamp(int(math.Round((x-g.origin.X)/g.res)), 0, g.cols-1)
	row = clamp(int(math.Round((y-g.origin.Y)/g.res)), 0, g.rows-1)
	return col, row
}

// GridToWorld returns the world position of a cell's lattice point
func (g *Grid) GridToWorld(col, row int) (x, y float64) {
	return g.origin.X + float64(col)*g.res, g.origin.Y + float64(row)*g.res
}

// Point returns GridToWorld as a position
func (g *Grid) Point(col, row int) sexp.Position {
	x, y := g.GridToWorld(col, row)
	return sexp.Position{X: x, Y: y}
}

// IsBlocked reports whether the cell is an obstacle or owned by any net.
// Out-of-bounds cells are blocked.
func (g *Grid) IsBlocked(col, row, layer int) bool {
	c := g.At(col, row, layer)
	return c == nil || c.IsObstacle || c.Blocked
}

// Passable reports whether net may place copper in the cell: it is in
// bounds, not an obstacle and not owned by a different net.
func (g *Grid) Passable(col, row, layer, net int) bool {
	c := g.At(col, row, layer)
	if c == nil || c.IsObstacle {
		return false
	}
	return !c.Blocked || c.Net == 0 || c.Net == net
}

// Clone returns an independent copy of the grid. The recorded shapes are
// shared.
func (g *Grid) Clone() *Grid {
	c := *g
	c.cells = make([]Cell, len(g.cells))
	copy(c.cells, g.cells)
	return &c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Disc returns the offsets whose lattice distance from the origin is below
// radius (mm). When inclusive is set the boundary is included. The origin
// itself is always part of the disc.
func (g *Grid) Disc(radius float64, inclusive bool) []Offset {
	n := int(math.Ceil(radius / g.res))
	offsets := []Offset{{0, 0}}
	for dr := -n; dr <= n; dr++ {
		for dc := -n; dc <= n; dc++ {
			if dc == 0 && dr == 0 {
				continue
			}
			d := math.Hypot(float64(dc), float64(dr)) * g.res
			if d < radius-1e-9 || (inclusive && d <= radius+1e-9) {
				offsets = append(offsets, Offset{DC: dc, DR: dr})
			}
		}
	}
	return offsets
}

// DiscPassable reports whether every cell of disc around (col, row) is
// passable for net on each layer in [start, end].
func (g *Grid) DiscPassable(col, row int, disc []Offset, start, end, net int) bool {
	for l := start; l <= end; l++ {
		for _, o := range disc {
			if !g.Passable(col+o.DC, row+o.DR, l, net) {
				return false
			}
		}
	}
	return true
}
