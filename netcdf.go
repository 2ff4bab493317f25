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
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// snapshotVariables are the per-site tree variables written to NetCDF
// snapshots.
var snapshotVariables = []struct {
	name, desc, units string
	f                 func(t *Tree) float64
}{
	{"species", "Species index (-1 for empty sites)", "-", func(t *Tree) float64 { return float64(t.Species) }},
	{"age", "Tree age", "timesteps", func(t *Tree) float64 { return float64(t.Age) }},
	{"dbh", "Trunk diameter at breast height", "m", func(t *Tree) float64 { return t.DBH }},
	{"height", "Tree height", "m", func(t *Tree) float64 { return t.Height }},
	{"crown_radius", "Crown radius", "m", func(t *Tree) float64 { return t.CrownRadius }},
	{"crown_depth", "Crown depth", "m", func(t *Tree) float64 { return t.CrownDepth }},
	{"leaf_density", "Crown leaf area density", "m2 m-3", func(t *Tree) float64 { return t.LeafDensity }},
	{"npp", "Net primary production during the last timestep", "g C", func(t *Tree) float64 { return t.NPP }},
}

// NetCDFSnapshot returns a function that writes the state of every
// site, and the leaf area grid without its padding, to a NetCDF file
// at path.
func NetCDFSnapshot(path string) DomainManipulator {
	return func(s *Sylva) error {
		g := &s.Params.Grid
		h := cdf.NewHeader([]string{"x", "y", "z"}, []int{g.Cols, g.Rows, g.Height + 1})
		h.AddAttribute("", "comment", "Sylva forest state")
		h.AddAttribute("", "iteration", []int32{int32(s.Iteration)})
		for _, v := range snapshotVariables {
			h.AddVariable(v.name, []string{"y", "x"}, []float32{0})
			h.AddAttribute(v.name, "description", v.desc)
			h.AddAttribute(v.name, "units", v.units)
		}
		h.AddVariable("lai", []string{"z", "y", "x"}, []float32{0})
		h.AddAttribute("lai", "description", "Leaf area index accumulated from the top of the canopy")
		h.AddAttribute("lai", "units", "m2 m-2")
		h.Define()

		ff, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sylva: creating NetCDF snapshot: %v", err)
		}
		f, err := cdf.Create(ff, h)
		if err != nil {
			ff.Close()
			return fmt.Errorf("sylva: creating NetCDF snapshot: %v", err)
		}
		for _, v := range snapshotVariables {
			data := sparse.ZerosDense(g.Rows, g.Cols)
			for site := range s.Trees {
				data.Elements[site] = v.f(&s.Trees[site])
			}
			if err := writeNCF(f, v.name, data); err != nil {
				ff.Close()
				return err
			}
		}
		lai := sparse.ZerosDense(g.Height+1, g.Rows, g.Cols)
		for z := 0; z <= g.Height; z++ {
			for site := range s.Trees {
				col, row := g.ColRow(site)
				lai.Elements[lai.Index1d(z, row, col)] = s.Canopy.At(site, z)
			}
		}
		if err := writeNCF(f, "lai", lai); err != nil {
			ff.Close()
			return err
		}
		if err := cdf.UpdateNumRecs(ff); err != nil {
			ff.Close()
			return fmt.Errorf("sylva: finishing NetCDF snapshot: %v", err)
		}
		return ff.Close()
	}
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data32); err != nil {
		return fmt.Errorf("sylva: writing %s to NetCDF snapshot: %v", name, err)
	}
	return nil
}

// ReadNetCDFVariable reads the variable name from the NetCDF snapshot
// at path.
func ReadNetCDFVariable(path, name string) (*sparse.DenseArray, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sylva: opening NetCDF snapshot: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("sylva: opening NetCDF snapshot: %v", err)
	}
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("sylva: variable %s is not in the NetCDF snapshot", name)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("sylva: reading %s from NetCDF snapshot: %v", name, err)
	}
	out := sparse.ZerosDense(dims...)
	for i, v := range buf.([]float32) {
		out.Elements[i] = float64(v)
	}
	return out, nil
}
