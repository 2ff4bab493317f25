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
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpeciesStats holds stand-level statistics of one species or of all
// species together.
type SpeciesStats struct {
	Name string

	// Numbers of living trees, and of those with dbh of at
	// least 10 cm and 30 cm.
	Abundance, Abundance10, Abundance30 int

	BasalArea float64 // [m² ha⁻¹]
	AGB       float64 // aboveground biomass [Mg ha⁻¹]

	// Carbon fluxes during the timestep [Mg C ha⁻¹].
	GPP, NPP, Rday, Rnight, Rstem float64

	Litter float64 // leaf litter [Mg ha⁻¹]

	LeafArea float64 // [m² ha⁻¹]
}

// Diagnostics holds the statistics of one timestep.
type Diagnostics struct {
	Iteration int
	Env       Environment

	Species []SpeciesStats
	Total   SpeciesStats

	// LAI is the mean leaf area index at ground level.
	LAI float64

	// LAIProfile is the mean cumulative leaf area index in each layer.
	LAIProfile []float64

	// DBH statistics of living trees [m].
	DBHMean, DBHMedian, DBHQ90 float64

	Births                                                 int
	DeathsNatural, DeathsNDD, DeathsTreefall, DeathsDamage int
	Falls, GerminationsFailed                              int
	SeedsDispersed, SeedsLost                              int

	NegativeDensity int
}

// Deaths returns the number of trees that died during the timestep.
func (d *Diagnostics) Deaths() int {
	return d.DeathsNatural + d.DeathsNDD + d.DeathsTreefall + d.DeathsDamage
}

// abovegroundBiomass returns the aboveground biomass [kg] of a tree
// with trunk diameter dbh [m], height h [m] and wood specific
// gravity wsg (Chave et al. 2014).
func abovegroundBiomass(dbh, h, wsg float64) float64 {
	d := dbh * 100
	return 0.0673 * math.Pow(wsg*d*d*h, 0.976)
}

func (st *SpeciesStats) add(t *Tree, sp *Species) {
	st.Abundance++
	if t.DBH >= 0.1 {
		st.Abundance10++
	}
	if t.DBH >= 0.3 {
		st.Abundance30++
	}
	st.BasalArea += t.BasalArea()
	st.AGB += abovegroundBiomass(t.DBH, t.Height, sp.WoodDensity)
	st.GPP += t.GPP
	st.NPP += t.NPP
	st.Rday += t.Rday
	st.Rnight += t.Rnight
	st.Rstem += t.Rstem
	st.Litter += t.Litter
	st.LeafArea += t.LeafArea()
}

// perHectare converts sums over the plot into per-hectare quantities.
func (st *SpeciesStats) perHectare(ha float64) {
	st.BasalArea /= ha
	st.AGB *= 1.e-3 / ha
	for _, v := range []*float64{&st.GPP, &st.NPP, &st.Rday, &st.Rnight, &st.Rstem, &st.Litter} {
		*v *= 1.e-6 / ha
	}
	st.LeafArea /= ha
}

// Diagnose computes the statistics of the current state.
func (s *Sylva) Diagnose() *Diagnostics {
	d := &Diagnostics{
		Iteration:          s.Iteration,
		Env:                s.Env,
		Species:            make([]SpeciesStats, len(s.Species)),
		Total:              SpeciesStats{Name: "total"},
		Births:             s.events.births,
		DeathsNatural:      s.events.deathsNatural,
		DeathsNDD:          s.events.deathsNDD,
		DeathsTreefall:     s.events.deathsTreefall,
		DeathsDamage:       s.events.deathsDamage,
		Falls:              s.events.falls,
		GerminationsFailed: s.events.germinationsFailed,
		SeedsDispersed:     s.events.seedsDispersed,
		SeedsLost:          s.events.seedsLost,
		NegativeDensity:    s.Canopy.NegativeDensity(),
	}
	for i, sp := range s.Species {
		d.Species[i].Name = sp.Name
	}
	dbh := make([]float64, 0, s.NumTrees)
	for site := range s.Trees {
		t := &s.Trees[site]
		if t.Age == 0 {
			continue
		}
		sp := s.Species[t.Species]
		d.Species[t.Species].add(t, sp)
		d.Total.add(t, sp)
		dbh = append(dbh, t.DBH)
	}
	ha := s.Params.Grid.Hectares()
	for i := range d.Species {
		d.Species[i].perHectare(ha)
	}
	d.Total.perHectare(ha)

	if len(dbh) > 0 {
		sort.Float64s(dbh)
		d.DBHMean = stat.Mean(dbh, nil)
		d.DBHMedian = stat.Quantile(0.5, stat.Empirical, dbh, nil)
		d.DBHQ90 = stat.Quantile(0.9, stat.Empirical, dbh, nil)
	}

	if s.Canopy.Finalized() {
		d.LAIProfile = s.Canopy.Profile()
		d.LAI = d.LAIProfile[0]
	} else {
		ground := make([]float64, len(s.Trees))
		for site := range s.Trees {
			ground[site] = s.Canopy.At(site, 0)
		}
		d.LAI = floats.Sum(ground) / float64(len(ground))
	}
	return d
}

// Aggregate computes the statistics of the timestep and stores them in
// s.Diagnostics.
func Aggregate() DomainManipulator {
	return func(s *Sylva) error {
		s.Diagnostics = s.Diagnose()
		return nil
	}
}

// DiameterHistogram returns the number of living trees in each dbh
// class of width binWidth [m]. The last class holds all larger trees.
func (s *Sylva) DiameterHistogram(binWidth float64, bins int) []int {
	h := make([]int, bins)
	for site := range s.Trees {
		t := &s.Trees[site]
		if t.Age == 0 {
			continue
		}
		i := int(t.DBH / binWidth)
		if i >= bins {
			i = bins - 1
		}
		h[i]++
	}
	return h
}
