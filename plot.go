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

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotReporter draws the abundance of each species over time, the
// final diameter distribution and the final leaf area profile as PNG
// images named prefix_population.png, prefix_dbh.png and prefix_lai.png.
type PlotReporter struct {
	prefix string

	names      []string
	iterations []float64
	abundance  [][]float64 // [species+total][timestep]
	histogram  []int
	profile    []float64
}

// Diameter classes of the histogram plot.
const (
	plotBinWidth = 0.05 // [m]
	plotBins     = 30
)

// NewPlotReporter returns a PlotReporter that writes images starting
// with prefix.
func NewPlotReporter(prefix string) *PlotReporter {
	return &PlotReporter{prefix: prefix}
}

// Population records the abundance of each species.
func (r *PlotReporter) Population(d *Diagnostics) error {
	if r.abundance == nil {
		r.abundance = make([][]float64, len(d.Species)+1)
		for _, st := range d.Species {
			r.names = append(r.names, st.Name)
		}
		r.names = append(r.names, d.Total.Name)
	}
	if len(d.Species)+1 != len(r.abundance) {
		return fmt.Errorf("sylva: plot has %d species but diagnostics have %d", len(r.abundance)-1, len(d.Species))
	}
	r.iterations = append(r.iterations, float64(d.Iteration))
	for i, st := range d.Species {
		r.abundance[i] = append(r.abundance[i], float64(st.Abundance))
	}
	r.abundance[len(d.Species)] = append(r.abundance[len(d.Species)], float64(d.Total.Abundance))
	return nil
}

func (r *PlotReporter) Mortality(*Diagnostics) error       { return nil }
func (r *PlotReporter) Snapshot(*Sylva) error              { return nil }
func (r *PlotReporter) SpeciesParameters([]*Species) error { return nil }

// DiameterHistogram records the diameter distribution in 5 cm classes.
func (r *PlotReporter) DiameterHistogram(s *Sylva) error {
	r.histogram = s.DiameterHistogram(plotBinWidth, plotBins)
	return nil
}

// LAIProfile records the leaf area profile.
func (r *PlotReporter) LAIProfile(d *Diagnostics) error {
	r.profile = append([]float64(nil), d.LAIProfile...)
	return nil
}

// Close draws the recorded results.
func (r *PlotReporter) Close() error {
	if len(r.iterations) > 0 {
		p, err := plot.New()
		if err != nil {
			return err
		}
		p.Title.Text = "Stand population"
		p.X.Label.Text = "Timestep"
		p.Y.Label.Text = "Trees"
		var lines []interface{}
		for i, name := range r.names {
			xy := make(plotter.XYs, len(r.iterations))
			for j, it := range r.iterations {
				xy[j].X = it
				xy[j].Y = r.abundance[i][j]
			}
			lines = append(lines, name, xy)
		}
		if err := plotutil.AddLinePoints(p, lines...); err != nil {
			return fmt.Errorf("sylva: plotting population: %v", err)
		}
		p.Y.Min = 0
		if err := savePNG(p, r.prefix+"_population.png"); err != nil {
			return err
		}
	}
	if len(r.histogram) > 0 {
		p, err := plot.New()
		if err != nil {
			return err
		}
		p.Title.Text = "Diameter distribution"
		p.X.Label.Text = "Diameter (m)"
		p.Y.Label.Text = "Trees"
		xy := make(plotter.XYs, len(r.histogram))
		for i, n := range r.histogram {
			xy[i].X = (float64(i) + 0.5) * plotBinWidth
			xy[i].Y = float64(n)
		}
		if err := plotutil.AddLinePoints(p, xy); err != nil {
			return fmt.Errorf("sylva: plotting diameters: %v", err)
		}
		p.Y.Min = 0
		if err := savePNG(p, r.prefix+"_dbh.png"); err != nil {
			return err
		}
	}
	if len(r.profile) > 0 {
		p, err := plot.New()
		if err != nil {
			return err
		}
		p.Title.Text = "Leaf area profile"
		p.X.Label.Text = "Cumulative leaf area index"
		p.Y.Label.Text = "Layer"
		xy := make(plotter.XYs, len(r.profile))
		for h, v := range r.profile {
			xy[h].X = v
			xy[h].Y = float64(h)
		}
		if err := plotutil.AddLines(p, xy); err != nil {
			return fmt.Errorf("sylva: plotting leaf area profile: %v", err)
		}
		p.X.Min = 0
		if err := savePNG(p, r.prefix+"_lai.png"); err != nil {
			return err
		}
	}
	return nil
}

func savePNG(p *plot.Plot, path string) error {
	wt, err := p.WriterTo(4*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("sylva: drawing %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sylva: creating plot: %v", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("sylva: writing %s: %v", path, err)
	}
	return f.Close()
}

// MultiReporter passes results to several Reporters in turn.
type MultiReporter []Reporter

func (m MultiReporter) each(f func(r Reporter) error) error {
	for _, r := range m {
		if err := f(r); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiReporter) Population(d *Diagnostics) error {
	return m.each(func(r Reporter) error { return r.Population(d) })
}

func (m MultiReporter) Mortality(d *Diagnostics) error {
	return m.each(func(r Reporter) error { return r.Mortality(d) })
}

func (m MultiReporter) Snapshot(s *Sylva) error {
	return m.each(func(r Reporter) error { return r.Snapshot(s) })
}

func (m MultiReporter) SpeciesParameters(sp []*Species) error {
	return m.each(func(r Reporter) error { return r.SpeciesParameters(sp) })
}

func (m MultiReporter) DiameterHistogram(s *Sylva) error {
	return m.each(func(r Reporter) error { return r.DiameterHistogram(s) })
}

func (m MultiReporter) LAIProfile(d *Diagnostics) error {
	return m.each(func(r Reporter) error { return r.LAIProfile(d) })
}

// Close closes every Reporter and returns the first error.
func (m MultiReporter) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
