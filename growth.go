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
	"math"
)

const (
	// gCPerUmolYear converts a sustained flux of 1 µmol CO2 s⁻¹
	// into grams of carbon per year.
	gCPerUmolYear = 12.e-6 * 3600 * 24 * 365

	// dayInhibition is the fraction of dark respiration that
	// continues in the light.
	dayInhibition = 0.4

	// stemRespiration is the stem respiration rate at 25 °C per unit
	// sapwood volume [µmol CO2 m⁻³ s⁻¹].
	stemRespiration = 39.6

	// carbonFraction is the carbon content of dry biomass.
	carbonFraction = 0.5

	// leafMassFraction is the fraction of canopy allocation that
	// becomes leaf biomass; the rest goes to twigs and fruits.
	leafMassFraction = 0.68

	// formFactor relates trunk volume to dbh²·height.
	formFactor = 0.559
)

// microclimateAt returns the photon flux density, vapour pressure
// deficit and temperature averaged over the footprint of the crown of
// t, which stands at site, at a fraction f of the way down through
// layer h. The canopy must be finalized.
func (s *Sylva) microclimateAt(t *Tree, site, h int, f float64) (ppfd, vpd, temp float64) {
	g := &s.Params.Grid
	if h < 0 {
		h = 0
	} else if h > g.Height {
		h = g.Height
	}
	r := g.cells(t.CrownRadius)
	if r > g.RMax {
		r = g.RMax
	}
	col, row := g.ColRow(site)
	var n int
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			i := s.micro.index(s.Canopy.within(h, col+dx, row+dy, f))
			ppfd += s.Env.Wmax * s.micro.flux[i]
			vpd += s.Env.VPDmax * s.micro.vpd[i]
			temp += s.Env.Tmax - s.micro.tDec[i]
			n++
		}
	}
	fn := float64(n)
	return ppfd / fn, vpd / fn, temp / fn
}

// assimilation returns the daily mean assimilation and day respiration
// rates [µmol CO2 m⁻² s⁻¹] per unit leaf area of tree t at site, and
// records the conditions at the top of its crown.
//
// With Options.FastGPP the crown is treated as a uniform layer of
// leaves under the conditions at its top. Otherwise the rates are
// computed at the middle of every layer the crown spans and weighted
// by the part of the crown in that layer.
func (s *Sylva) assimilation(t *Tree, sp *Species, site int) (a, rday float64) {
	g := &s.Params.Grid
	top := t.Height * g.NV
	hTop := g.layer(t.Height)
	if hTop > g.Height {
		hTop = g.Height
	}
	t.PPFD, t.VPD, t.T = s.microclimateAt(t, site, hTop, 0)
	if s.Params.Options.FastGPP {
		return s.model.FastDailyGPPLeaf(sp.Leaf, s.diurnal, t.PPFD, t.VPD, t.T,
			s.Params.Physiology.KLight, t.LeafDensity*t.CrownDepth)
	}
	base := math.Max(0, (t.Height-t.CrownDepth)*g.NV)
	hBase := int(base)
	var wsum float64
	for h := hBase; h <= hTop; h++ {
		w := 1.
		if hTop > hBase {
			w = math.Min(float64(h+1), top) - math.Max(float64(h), base)
		}
		if w <= 0 {
			continue
		}
		ppfd, vpd, temp := s.microclimateAt(t, site, h, 0.5)
		ah, rh := s.model.DailyGPPLeaf(sp.Leaf, s.diurnal, ppfd, vpd, temp)
		a += w * ah
		rday += w * rh
		wsum += w
	}
	if wsum == 0 {
		return 0, 0
	}
	return a / wsum, rday / wsum
}

// growth computes the carbon balance of the living tree t at site
// and allocates its NPP to wood and leaves.
func (s *Sylva) growth(t *Tree, sp *Species, site int) {
	ph := &s.Params.Physiology
	ts := gCPerUmolYear / float64(s.Params.Run.IterationsPerYear)
	t.Age++

	a, rday := s.assimilation(t, sp, site)

	// Young and old leaves assimilate at half the rate of mature ones.
	effLA := 0.5*t.YoungLA + t.MatureLA + 0.5*t.OldLA
	t.GPP = a * effLA * ts
	t.Rday = dayInhibition * rday * effLA * ts

	night := 1 - s.diurnal.DaylightFraction()
	t.Rnight = sp.Leaf.Rdark * s.model.Lookup(s.Env.Tnight).Rnight * t.LeafArea() * night * ts

	sapwood := sapwoodArea(t.DBH) * math.Max(0, t.Height-t.CrownDepth)
	t.Rstem = stemRespiration * sapwood * s.model.Lookup(s.Env.Tmean).Rstem * ts

	t.NPP = 0.75 * (t.GPP - 1.5*(t.Rday+t.Rnight+t.Rstem))
	if t.NPP < 0 {
		t.NPPNeg++
		t.NPP = 0
	} else {
		t.NPPNeg = 0
	}

	// Trunk growth.
	if t.NPP > 0 {
		vol := t.NPP / carbonFraction * ph.FallocWood / (sp.WoodDensity * 1.e6)
		ddbh := vol / (formFactor * t.DBH * t.Height * (3 - t.DBH/(t.DBH+sp.AH)))
		if t.DBH > t.DBHThreshold {
			ddbh *= math.Max(0, 3-2*t.DBH/t.DBHThreshold)
		}
		t.DBH = math.Min(t.DBH+ddbh, 1.5*sp.DMax)
		s.setGeometry(t, sp)
	}

	// Leaf dynamics.
	flush := t.NPP / carbonFraction * ph.FallocCanopy * leafMassFraction / sp.LMA
	youngOut := t.YoungLA / sp.TimeYoung
	matureOut := t.MatureLA / sp.TimeMature
	oldOut := t.OldLA / sp.TimeOld
	t.YoungLA += flush - youngOut
	t.MatureLA += youngOut - matureOut
	t.OldLA += matureOut - oldOut
	t.Litter = oldOut * sp.LMA
	t.setLeafDensity()
}

// neighbourhood calls f for every site within radius cells of site,
// excluding site itself.
func (s *Sylva) neighbourhood(site, radius int, f func(o int)) {
	g := &s.Params.Grid
	col, row := g.ColRow(site)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius || (dx == 0 && dy == 0) {
				continue
			}
			if o, ok := g.Site(col+dx, row+dy); ok {
				f(o)
			}
		}
	}
}

// conspecificDensity returns the basal area of trees of species sp
// within NDDRadius of site, excluding the tree at site [m² ha⁻¹].
func (s *Sylva) conspecificDensity(site, sp int) float64 {
	g := &s.Params.Grid
	r := s.Params.Physiology.NDDRadius
	var ba float64
	s.neighbourhood(site, g.cells(r), func(o int) {
		if t := &s.Trees[o]; t.Age > 0 && t.Species == sp {
			ba += t.BasalArea()
		}
	})
	return ba / (math.Pi * r * r) * 1.e4
}

// nddPenalties returns the additional mortality probability of the
// tree at each site due to conspecific neighbours, computed from the
// current state of all trees.
func (s *Sylva) nddPenalties() []float64 {
	p := make([]float64, len(s.Trees))
	c := s.Params.Physiology.NDDCoefficient / float64(s.Params.Run.IterationsPerYear)
	for site := range s.Trees {
		if t := &s.Trees[site]; t.Age > 0 {
			p[site] = c * s.conspecificDensity(site, t.Species)
		}
	}
	return p
}

// updateTree decides whether the tree at site dies or grows during
// the current timestep; it never does both.
func (s *Sylva) updateTree(site int, ndd float64) {
	t := &s.Trees[site]
	sp := s.Species[t.Species]
	p := sp.DeathRate
	if float64(t.NPPNeg) > sp.LeafLifespan {
		p = 1
	}
	u := s.rand.Float64()
	if u < p {
		s.death(site, causeNatural)
		return
	}
	if u < p+ndd {
		s.death(site, causeNDD)
		return
	}
	if s.Params.Options.Treefall {
		if d := s.hurt.Elements[site]; d > t.Height {
			pd := 1.
			if d <= 2*t.Height {
				pd = 1 - 0.5*t.Height/d
			}
			if s.rand.Bernoulli(pd) {
				s.death(site, causeDamage)
				return
			}
		}
		if t.Height > t.CriticalHeight {
			pf := (1 - t.CriticalHeight/t.Height) / float64(s.Params.Run.IterationsPerYear)
			if s.rand.Bernoulli(pf) {
				s.fall(site)
				s.death(site, causeTreefall)
				return
			}
		}
	}
	s.growth(t, sp, site)
	s.events.growths++
}

// UpdateTrees applies death or growth to every living tree. Trees born
// during the current timestep are skipped unless Options.UpdateNewborns
// is set. The canopy must have been rebuilt.
func UpdateTrees() DomainManipulator {
	return func(s *Sylva) error {
		if !s.Canopy.Finalized() {
			return fmt.Errorf("sylva: trees updated before the canopy was rebuilt")
		}
		var ndd []float64
		if s.Params.Options.DensityDependence {
			ndd = s.nddPenalties()
		}
		for site := range s.Trees {
			t := &s.Trees[site]
			if t.Age == 0 {
				continue
			}
			if !s.Params.Options.UpdateNewborns && t.Born == s.Iteration {
				continue
			}
			var p float64
			if ndd != nil {
				p = ndd[site]
			}
			s.updateTree(site, p)
		}
		return nil
	}
}
