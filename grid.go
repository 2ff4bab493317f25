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

import "fmt"

// GridConfig holds the geometry of the simulated plot.
// Horizontal sites are indexed col + Cols*row.
type GridConfig struct {
	Rows, Cols int

	// NH and NV are the numbers of horizontal cells and vertical
	// layers per metre.
	NH, NV float64

	// Height is the number of vertical layers in the canopy grid.
	Height int

	// RMax is the largest crown radius [horizontal cells]. It is also the
	// width of the padding around the canopy grid.
	RMax int
}

func (g *GridConfig) check() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("sylva: grid must have at least one row and column but has %d×%d",
			g.Rows, g.Cols)
	}
	if !(g.NH > 0) || !(g.NV > 0) {
		return fmt.Errorf("sylva: NH and NV must be > 0 but are %g and %g", g.NH, g.NV)
	}
	if g.Height < 1 {
		return fmt.Errorf("sylva: Height must be >= 1 but is %d", g.Height)
	}
	if g.RMax < 0 {
		return fmt.Errorf("sylva: RMax must not be negative")
	}
	if g.RMax > g.Rows || g.RMax > g.Cols {
		return fmt.Errorf("sylva: RMax (%d) is larger than the %d×%d grid", g.RMax, g.Rows, g.Cols)
	}
	return nil
}

// Sites returns the number of horizontal sites.
func (g *GridConfig) Sites() int { return g.Rows * g.Cols }

// Hectares returns the area of the plot.
func (g *GridConfig) Hectares() float64 {
	return float64(g.Sites()) / (g.NH * g.NH) / 1.e4
}

// SiteArea returns the ground area of one site [m²].
func (g *GridConfig) SiteArea() float64 { return 1 / (g.NH * g.NH) }

// ColRow returns the column and row of site.
func (g *GridConfig) ColRow(site int) (col, row int) {
	return site % g.Cols, site / g.Cols
}

// Site returns the index of the site at col and row, and whether
// that location is within the grid.
func (g *GridConfig) Site(col, row int) (int, bool) {
	if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
		return -1, false
	}
	return col + g.Cols*row, true
}

// layer returns the vertical layer that contains height h [m].
func (g *GridConfig) layer(h float64) int { return int(h * g.NV) }

// cells converts a horizontal distance [m] into whole grid cells.
func (g *GridConfig) cells(d float64) int { return int(d * g.NH) }
