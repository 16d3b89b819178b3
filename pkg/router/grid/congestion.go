package grid

import "math"

// MarkRoute commits a footprint for net: centerline cells become owned by
// the net, halo cells too where no other net owns them. Pads and obstacles
// are left alone.
func (g *Grid) MarkRoute(fp Footprint, net int) {
	for _, c := range fp.Center {
		cell := g.At(c.Col, c.Row, c.Layer)
		if cell == nil || cell.IsObstacle || cell.Fixed {
			continue
		}
		cell.Blocked, cell.Net, cell.Trace = true, net, true
	}
	for _, c := range fp.Halo {
		cell := g.At(c.Col, c.Row, c.Layer)
		if cell == nil || cell.IsObstacle || cell.Fixed {
			continue
		}
		if cell.Net == 0 || cell.Net == net {
			cell.Blocked, cell.Net = true, net
		}
	}
}

// UnmarkRoute releases the cells of a footprint still owned by net
func (g *Grid) UnmarkRoute(fp Footprint, net int) {
	release := func(cs []Coord) {
		for _, c := range cs {
			cell := g.At(c.Col, c.Row, c.Layer)
			if cell == nil || cell.IsObstacle || cell.Fixed || cell.Net != net {
				continue
			}
			cell.Blocked, cell.Net, cell.Trace = false, 0, false
		}
	}
	release(fp.Center)
	release(fp.Halo)
}

// MarkRouteUsage adds a footprint to the congestion counters without
// touching ownership.
func (g *Grid) MarkRouteUsage(fp Footprint) {
	g.addUsage(fp, 1)
}

// UnmarkRouteUsage removes a footprint from the congestion counters
func (g *Grid) UnmarkRouteUsage(fp Footprint) {
	g.addUsage(fp, -1)
}

func (g *Grid) addUsage(fp Footprint, d int32) {
	for _, c := range fp.Center {
		if cell := g.At(c.Col, c.Row, c.Layer); cell != nil {
			cell.UsageCount = max(cell.UsageCount+d, 0)
		}
	}
	for _, c := range fp.Halo {
		if cell := g.At(c.Col, c.Row, c.Layer); cell != nil {
			cell.HaloCount = max(cell.HaloCount+d, 0)
		}
	}
}

// PresentFactor returns the current weight of cell usage
func (g *Grid) PresentFactor() float64 { return g.presentFactor }

// SetPresentFactor sets the weight of cell usage
func (g *Grid) SetPresentFactor(f float64) { g.presentFactor = f }

// NegotiatedCost returns the congestion cost of entering a cell: +Inf for
// obstacles and out-of-bounds cells, otherwise
// presentFactor*(usage+halo) + history.
func (g *Grid) NegotiatedCost(col, row, layer int) float64 {
	c := g.At(col, row, layer)
	if c == nil || c.IsObstacle {
		return math.Inf(1)
	}
	return g.presentFactor*float64(c.UsageCount+c.HaloCount) + c.HistoryCost
}

// UpdateHistoryCosts adds increment*overflow to every overused cell
func (g *Grid) UpdateHistoryCosts(increment float64) {
	for i := range g.cells {
		if o := g.cells[i].Overflow(); o > 0 {
			g.cells[i].HistoryCost += increment * float64(o)
		}
	}
}

// FindOverusedCells returns every cell with positive overflow
func (g *Grid) FindOverusedCells() []Coord {
	var out []Coord
	for l := 0; l < g.layers; l++ {
		for row := 0; row < g.rows; row++ {
			for col := 0; col < g.cols; col++ {
				if g.cells[g.index(col, row, l)].Overflow() > 0 {
					out = append(out, Coord{Col: col, Row: row, Layer: l})
				}
			}
		}
	}
	return out
}

// TotalOverflow sums the overflow of all cells
func (g *Grid) TotalOverflow() int {
	total := 0
	for i := range g.cells {
		total += g.cells[i].Overflow()
	}
	return total
}

// Overused reports whether any cell of the footprint is overused
func (g *Grid) Overused(fp Footprint) bool {
	for _, c := range fp.Center {
		if cell := g.At(c.Col, c.Row, c.Layer); cell != nil && cell.Overflow() > 0 {
			return true
		}
	}
	for _, c := range fp.Halo {
		if cell := g.At(c.Col, c.Row, c.Layer); cell != nil && cell.Overflow() > 0 {
			return true
		}
	}
	return false
}

// ResetUsage clears usage and halo counters, keeping history
func (g *Grid) ResetUsage() {
	for i := range g.cells {
		g.cells[i].UsageCount = 0
		g.cells[i].HaloCount = 0
	}
}

// ResetHistory clears history costs and restores the initial present factor
func (g *Grid) ResetHistory() {
	for i := range g.cells {
		g.cells[i].HistoryCost = 0
	}
	g.presentFactor = g.rules.PresentCostFactor
}

// Congestion returns the mean usage+halo count over the cells within
// radius cells of (col, row) on layer.
func (g *Grid) Congestion(col, row, layer, radius int) float64 {
	var sum float64
	n := 0
	for r := row - radius; r <= row+radius; r++ {
		for c := col - radius; c <= col+radius; c++ {
			cell := g.At(c, r, layer)
			if cell == nil {
				continue
			}
			sum += float64(cell.UsageCount + cell.HaloCount)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
