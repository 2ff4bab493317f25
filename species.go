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

	"github.com/spatialmodel/sylva/science/photosynthesis/fvcb"
)

// Species holds the traits of a species, the quantities derived from
// them, and its per-site seed bank.
type Species struct {
	SpeciesParams

	// Leaf holds the photosynthetic capacity of the leaves at 25 °C.
	Leaf fvcb.Leaf

	SLA float64 // specific leaf area [cm² g⁻¹]
	LCP float64 // light compensation point [µmol photons m⁻² s⁻¹]

	// Residence times of young, mature and old leaves [timesteps].
	TimeYoung, TimeMature, TimeOld float64

	// LeafLifespan is the total leaf lifespan [timesteps].
	LeafLifespan float64

	// DeathRate is the background mortality probability per timestep.
	DeathRate float64

	// Count is the number of living trees of the species.
	Count int

	// Seeds holds, for each site, either the remaining lifetime of dormant
	// seeds in timesteps or the number of seeds present, depending on
	// Options.SeedTradeoff.
	Seeds []int
}

// newSpecies derives the physiological parameters of a species from
// its traits.
func newSpecies(sp SpeciesParams, p *Params) *Species {
	s := &Species{
		SpeciesParams: sp,
		Seeds:         make([]int, p.Grid.Sites()),
	}
	ph := &p.Physiology
	if s.DispersalDistance == 0 {
		s.DispersalDistance = defaultDispersalDistance
	}
	s.SLA = 10000 / s.LMA

	// Leaf economics relationships from Domingues et al. (2010).
	lN, lP, lS := math.Log10(s.Nmass*1000), math.Log10(s.Pmass*1000), math.Log10(s.SLA)
	vcmaxm := math.Pow(10, math.Min(-1.56+0.43*lN+0.37*lS, -0.80+0.45*lP+0.25*lS))
	jmaxm := math.Pow(10, math.Min(-1.50+0.41*lN+0.45*lS, -0.74+0.44*lP+0.32*lS))
	s.Leaf = fvcb.Leaf{
		Vcmax: vcmaxm * s.LMA,
		Jmax:  jmaxm * s.LMA,
		// Atkin et al. (2015).
		Rdark: s.LMA * (8.5341 - 130.6*s.Nmass - 567.0*s.Pmass - 0.0137*s.LMA +
			11.1*vcmaxm + 187600.0*s.Nmass*s.Pmass) * 0.001,
	}
	s.LCP = s.Leaf.Rdark / ph.Phi

	// Leaf lifespan in months (Reich et al. 1991).
	months := 1.5 + math.Pow(10, 7.18+3.03*math.Log10(s.LMA*0.0001))
	perMonth := float64(p.Run.IterationsPerYear) / 12
	young, mature := 1., months/3
	s.TimeYoung = math.Max(1, young*perMonth)
	s.TimeMature = math.Max(1, mature*perMonth)
	s.TimeOld = math.Max(1, (months-young-mature)*perMonth)
	s.LeafLifespan = s.TimeYoung + s.TimeMature + s.TimeOld

	s.DeathRate = ph.BaseMortality * (1 - s.WoodDensity) / float64(p.Run.IterationsPerYear)
	if s.DeathRate < 0 {
		s.DeathRate = 0
	}
	return s
}

const (
	defaultDispersalDistance = 40. // [m]

	crownRadiusA = 0.6  // crown radius allometry prefactor [m^0.33]
	crownRadiusB = 0.67 // crown radius allometry exponent
)

// height returns the height [m] of a tree with trunk diameter dbh [m].
func (s *Species) height(dbh float64) float64 {
	return s.HMax * dbh / (dbh + s.AH)
}

// dbhAtHeight inverts height.
func (s *Species) dbhAtHeight(h float64) float64 {
	return s.AH * h / (s.HMax - h)
}

// crownRadius returns the radius [m] of the crown of a tree of height
// h [m], limited to rMax [m].
func crownRadius(h, rMax float64) float64 {
	return math.Min(rMax, crownRadiusA*math.Pow(h, crownRadiusB))
}

// crownDepth returns the depth [m] of the crown of a tree of height h [m].
func crownDepth(h float64) float64 {
	if h < 5 {
		return 0.133 + 0.168*h
	}
	return math.Max(0.973, -0.48+0.26*h)
}

// sapwoodArea returns the area of conducting sapwood [m²] in a trunk
// of diameter dbh [m].
func sapwoodArea(dbh float64) float64 {
	const thickness = 0.04 // [m]
	if dbh <= 2*thickness {
		return math.Pi * dbh * dbh / 4
	}
	return math.Pi * thickness * (dbh - thickness)
}
