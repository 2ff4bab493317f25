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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Reporter writes simulation results. Population and Mortality are
// called after every timestep; the rest once at the end of the
// simulation.
type Reporter interface {
	Population(d *Diagnostics) error
	Mortality(d *Diagnostics) error
	Snapshot(s *Sylva) error
	SpeciesParameters(sp []*Species) error
	DiameterHistogram(s *Sylva) error
	LAIProfile(d *Diagnostics) error
	Close() error
}

// Report returns a function that passes the diagnostics of each
// timestep to r. It must run after Aggregate.
func Report(r Reporter) DomainManipulator {
	return func(s *Sylva) error {
		if s.Diagnostics == nil {
			return fmt.Errorf("sylva: no diagnostics to report; Aggregate must run before Report")
		}
		if err := r.Population(s.Diagnostics); err != nil {
			return err
		}
		return r.Mortality(s.Diagnostics)
	}
}

// FinalReport returns a function that writes the end-of-simulation
// outputs to r and closes it.
func FinalReport(r Reporter) DomainManipulator {
	return func(s *Sylva) error {
		if err := r.SpeciesParameters(s.Species); err != nil {
			return err
		}
		if err := r.Snapshot(s); err != nil {
			return err
		}
		if err := r.DiameterHistogram(s); err != nil {
			return err
		}
		d := s.Diagnostics
		if d == nil {
			d = s.Diagnose()
		}
		if err := r.LAIProfile(d); err != nil {
			return err
		}
		return r.Close()
	}
}

// NopReporter discards all results.
type NopReporter struct{}

func (NopReporter) Population(*Diagnostics) error      { return nil }
func (NopReporter) Mortality(*Diagnostics) error       { return nil }
func (NopReporter) Snapshot(*Sylva) error              { return nil }
func (NopReporter) SpeciesParameters([]*Species) error { return nil }
func (NopReporter) DiameterHistogram(*Sylva) error     { return nil }
func (NopReporter) LAIProfile(*Diagnostics) error      { return nil }
func (NopReporter) Close() error                       { return nil }

// TextReporter writes results as tab-separated text tables.
type TextReporter struct {
	population, mortality, snapshot, species, histogram, lai *table
}

// table is one tab-separated output file.
type table struct {
	c           io.Closer
	w           *csv.Writer
	wroteHeader bool
}

func newTable(w io.WriteCloser) *table {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &table{c: w, w: cw}
}

func (t *table) write(header []string, rows ...[]string) error {
	if !t.wroteHeader {
		if err := t.w.Write(header); err != nil {
			return err
		}
		t.wroteHeader = true
	}
	if err := t.w.WriteAll(rows); err != nil {
		return fmt.Errorf("sylva: writing report: %v", err)
	}
	return nil
}

func (t *table) close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return err
	}
	return t.c.Close()
}

// NewTextReporter creates the output files prefix_population.txt,
// prefix_mortality.txt, prefix_snapshot.txt, prefix_species.txt,
// prefix_dbh.txt and prefix_lai.txt.
func NewTextReporter(prefix string) (*TextReporter, error) {
	var files []io.WriteCloser
	for _, name := range []string{"population", "mortality", "snapshot", "species", "dbh", "lai"} {
		f, err := os.Create(prefix + "_" + name + ".txt")
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return nil, fmt.Errorf("sylva: creating report: %v", err)
		}
		files = append(files, f)
	}
	return NewTextReporterWriters(files[0], files[1], files[2], files[3], files[4], files[5]), nil
}

// NewTextReporterWriters returns a TextReporter that writes to the
// given destinations.
func NewTextReporterWriters(population, mortality, snapshot, species, histogram, lai io.WriteCloser) *TextReporter {
	return &TextReporter{
		population: newTable(population),
		mortality:  newTable(mortality),
		snapshot:   newTable(snapshot),
		species:    newTable(species),
		histogram:  newTable(histogram),
		lai:        newTable(lai),
	}
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

// Population writes one row per species and one for the whole stand.
func (r *TextReporter) Population(d *Diagnostics) error {
	header := []string{"iteration", "species", "abundance", "abundance10", "abundance30",
		"basal_area", "agb", "gpp", "npp", "rday", "rnight", "rstem", "litter", "leaf_area"}
	rows := make([][]string, 0, len(d.Species)+1)
	for _, st := range append(append([]SpeciesStats{}, d.Species...), d.Total) {
		rows = append(rows, []string{
			strconv.Itoa(d.Iteration), st.Name,
			strconv.Itoa(st.Abundance), strconv.Itoa(st.Abundance10), strconv.Itoa(st.Abundance30),
			ftoa(st.BasalArea), ftoa(st.AGB), ftoa(st.GPP), ftoa(st.NPP),
			ftoa(st.Rday), ftoa(st.Rnight), ftoa(st.Rstem), ftoa(st.Litter), ftoa(st.LeafArea),
		})
	}
	return r.population.write(header, rows...)
}

// Mortality writes the births and deaths of the timestep by cause.
func (r *TextReporter) Mortality(d *Diagnostics) error {
	return r.mortality.write(
		[]string{"iteration", "births", "natural", "ndd", "treefall", "damage", "falls",
			"failed_germinations", "seeds", "seeds_lost"},
		[]string{strconv.Itoa(d.Iteration), strconv.Itoa(d.Births), strconv.Itoa(d.DeathsNatural),
			strconv.Itoa(d.DeathsNDD), strconv.Itoa(d.DeathsTreefall), strconv.Itoa(d.DeathsDamage),
			strconv.Itoa(d.Falls), strconv.Itoa(d.GerminationsFailed), strconv.Itoa(d.SeedsDispersed),
			strconv.Itoa(d.SeedsLost)},
	)
}

// Snapshot writes one row per living tree.
func (r *TextReporter) Snapshot(s *Sylva) error {
	header := []string{"col", "row", "species", "age", "dbh", "height", "crown_radius",
		"crown_depth", "leaf_density", "gpp", "npp"}
	var rows [][]string
	for site := range s.Trees {
		t := &s.Trees[site]
		if t.Age == 0 {
			continue
		}
		col, row := s.Params.Grid.ColRow(site)
		rows = append(rows, []string{
			strconv.Itoa(col), strconv.Itoa(row), s.Species[t.Species].Name, strconv.Itoa(t.Age),
			ftoa(t.DBH), ftoa(t.Height), ftoa(t.CrownRadius), ftoa(t.CrownDepth),
			ftoa(t.LeafDensity), ftoa(t.GPP), ftoa(t.NPP),
		})
	}
	return r.snapshot.write(header, rows...)
}

// SpeciesParameters writes the traits and derived parameters of each
// species.
func (r *TextReporter) SpeciesParameters(sp []*Species) error {
	header := []string{"species", "lma", "nmass", "pmass", "wsg", "dmax", "hmax", "ah",
		"vcmax", "jmax", "rdark", "lcp", "leaf_lifespan", "death_rate"}
	rows := make([][]string, len(sp))
	for i, s := range sp {
		rows[i] = []string{s.Name, ftoa(s.LMA), ftoa(s.Nmass), ftoa(s.Pmass), ftoa(s.WoodDensity),
			ftoa(s.DMax), ftoa(s.HMax), ftoa(s.AH), ftoa(s.Leaf.Vcmax), ftoa(s.Leaf.Jmax),
			ftoa(s.Leaf.Rdark), ftoa(s.LCP), ftoa(s.LeafLifespan), ftoa(s.DeathRate)}
	}
	return r.species.write(header, rows...)
}

const (
	histogramBinWidth = 0.01 // [m]
	histogramBins     = 200
)

// DiameterHistogram writes the number of trees in each 1 cm dbh class.
func (r *TextReporter) DiameterHistogram(s *Sylva) error {
	h := s.DiameterHistogram(histogramBinWidth, histogramBins)
	rows := make([][]string, len(h))
	for i, n := range h {
		rows[i] = []string{ftoa(float64(i) * histogramBinWidth), strconv.Itoa(n)}
	}
	return r.histogram.write([]string{"dbh_min", "trees"}, rows...)
}

// LAIProfile writes the mean cumulative leaf area index in each layer.
func (r *TextReporter) LAIProfile(d *Diagnostics) error {
	rows := make([][]string, len(d.LAIProfile))
	for h, v := range d.LAIProfile {
		rows[h] = []string{strconv.Itoa(h), ftoa(v)}
	}
	return r.lai.write([]string{"layer", "lai"}, rows...)
}

// Close flushes and closes all output files.
func (r *TextReporter) Close() error {
	for _, t := range []*table{r.population, r.mortality, r.snapshot, r.species, r.histogram, r.lai} {
		if err := t.close(); err != nil {
			return err
		}
	}
	return nil
}
