/*
Copyright © 2026 the Sylva authors.
This file is part of Sylva.

Sylva is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Sylva is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Sylva.  If not, see <http://www.gnu.org/licenses/>.
*/

package sylva

import (
	"errors"
	"math"

	"github.com/ctessum/sparse"
)

// ErrCanopyFinalized is returned when leaf area is added to, or summed
// over, a canopy grid whose cumulative sweep has already been done.
var ErrCanopyFinalized = errors.New("sylva: canopy has already been finalized")

// Canopy holds the three-dimensional leaf area grid. Before it is
// finalized, each voxel holds the leaf area index contributed in that
// layer. After FinalizeTopDown it holds the leaf area index accumulated
// from the top of the grid down to and including the layer.
//
// Layers are indexed 0 (ground) to Height. Horizontally the grid is
// padded by RMax cells on every side; padding cells are always empty.
type Canopy struct {
	g *GridConfig

	// LAI has dimensions [Height+1][Rows+2*RMax][Cols+2*RMax].
	LAI *sparse.DenseArray

	finalized bool
	negative  int
}

// NewCanopy allocates an empty canopy grid for g.
func NewCanopy(g *GridConfig) (*Canopy, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	return &Canopy{
		g:   g,
		LAI: sparse.ZerosDense(g.Height+1, g.Rows+2*g.RMax, g.Cols+2*g.RMax),
	}, nil
}

// Clear zeroes the grid and makes it ready to accumulate leaf area.
func (c *Canopy) Clear() {
	for i := range c.LAI.Elements {
		c.LAI.Elements[i] = 0
	}
	c.finalized = false
}

// Finalized returns whether FinalizeTopDown has been called since the
// last Clear.
func (c *Canopy) Finalized() bool { return c.finalized }

// NegativeDensity returns the number of crowns with negative leaf
// density that were skipped since the canopy was created.
func (c *Canopy) NegativeDensity() int { return c.negative }

// index returns the position in c.LAI.Elements of layer h at padded
// column pc and padded row pr.
func (c *Canopy) index(h, pr, pc int) int {
	return (h*c.LAI.Shape[1]+pr)*c.LAI.Shape[2] + pc
}

// Accumulate adds the leaf area of the crown of tree t, which stands
// at site, to the grid. The crown is a filled disk of radius
// int(CrownRadius*NH) cells extending from Height-CrownDepth to Height;
// the partially filled top and bottom layers receive leaf area in
// proportion to their filled fraction.
func (c *Canopy) Accumulate(t *Tree, site int) error {
	if c.finalized {
		return ErrCanopyFinalized
	}
	if t.Age == 0 {
		return nil
	}
	if t.LeafDensity < 0 {
		c.negative++
		return nil
	}
	g := c.g
	top := t.Height * g.NV
	base := (t.Height - t.CrownDepth) * g.NV
	if base < 0 {
		base = 0
	}
	hTop, hBase := int(top), int(base)
	if hTop > g.Height {
		hTop = g.Height
	}
	r := g.cells(t.CrownRadius)
	if r > g.RMax {
		r = g.RMax
	}
	// Leaf area index held by one full layer of the crown.
	layer := t.LeafDensity / g.NV

	col, row := g.ColRow(site)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			if _, ok := g.Site(col+dx, row+dy); !ok {
				continue
			}
			pr, pc := row+dy+g.RMax, col+dx+g.RMax
			if hTop == hBase {
				c.LAI.Elements[c.index(hTop, pr, pc)] += t.LeafDensity * t.CrownDepth
				continue
			}
			c.LAI.Elements[c.index(hTop, pr, pc)] += layer * (top - float64(hTop))
			c.LAI.Elements[c.index(hBase, pr, pc)] += layer * (float64(hBase+1) - base)
			for h := hBase + 1; h < hTop; h++ {
				c.LAI.Elements[c.index(h, pr, pc)] += layer
			}
		}
	}
	return nil
}

// FinalizeTopDown converts per-layer leaf area into leaf area
// accumulated from the top of the grid downward, so that layer h
// holds the sum of layers h through Height. It may only be called once
// after each Clear.
func (c *Canopy) FinalizeTopDown() error {
	if c.finalized {
		return ErrCanopyFinalized
	}
	c.sweep()
	c.finalized = true
	return nil
}

// sweep does the cumulative top-down sum without any bookkeeping.
func (c *Canopy) sweep() {
	n := c.LAI.Shape[1] * c.LAI.Shape[2]
	e := c.LAI.Elements
	for h := c.g.Height - 1; h >= 0; h-- {
		lo, up := e[h*n:(h+1)*n], e[(h+1)*n:(h+2)*n]
		for i := range lo {
			lo[i] += up[i]
		}
	}
}

// At returns the grid value at layer h above site.
func (c *Canopy) At(site, h int) float64 {
	col, row := c.g.ColRow(site)
	return c.LAI.Get(h, row+c.g.RMax, col+c.g.RMax)
}

// atPadded returns the grid value at layer h at column col and row
// row, which may lie up to RMax cells outside of the grid.
func (c *Canopy) atPadded(h, col, row int) float64 {
	return c.LAI.Elements[c.index(h, row+c.g.RMax, col+c.g.RMax)]
}

// within returns the leaf area index a fraction f of the way down
// through layer h at column col and row row, interpolating between the
// leaf area above the layer and the leaf area down to its bottom. The
// canopy must be finalized.
func (c *Canopy) within(h, col, row int, f float64) float64 {
	var above float64
	if h < c.g.Height {
		above = c.atPadded(h+1, col, row)
	}
	return above + f*(c.atPadded(h, col, row)-above)
}

// Profile returns the plot-average leaf area index at each layer.
func (c *Canopy) Profile() []float64 {
	p := make([]float64, c.g.Height+1)
	for h := range p {
		for site := 0; site < c.g.Sites(); site++ {
			p[h] += c.At(site, h)
		}
		p[h] /= float64(c.g.Sites())
	}
	return p
}

const (
	microBins       = 400
	microResolution = 20. // bins per unit of leaf area index
)

// microclimate holds the attenuation of light, vapour pressure deficit
// and temperature below a given leaf area index, tabulated in bins of
// 1/microResolution.
type microclimate struct {
	flux, vpd, tDec [microBins]float64
}

func newMicroclimate(kLight float64) *microclimate {
	m := new(microclimate)
	for i := 0; i < microBins; i++ {
		a := float64(i) / microResolution
		m.flux[i] = math.Exp(-kLight * a)
		m.vpd[i] = 0.25 + math.Sqrt(math.Max(0, 0.08035714*(7-a)))
		m.tDec[i] = 0.4285714 * math.Min(7, a)
	}
	return m
}

func (m *microclimate) index(lai float64) int {
	i := int(lai * microResolution)
	if i < 0 {
		return 0
	}
	if i >= microBins {
		return microBins - 1
	}
	return i
}
