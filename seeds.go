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

// addSeed adds one seed of sp to site.
func (s *Sylva) addSeed(sp *Species, site int) {
	if s.Params.Options.SeedTradeoff {
		sp.Seeds[site]++
	} else {
		sp.Seeds[site] = s.Params.Physiology.DormancyTimesteps
	}
	s.events.seedsDispersed++
}

// seedCount returns the number of seeds the tree t produces during the
// current timestep, or zero if it is not reproductive.
func (s *Sylva) seedCount(t *Tree, sp *Species) int {
	if t.DBH <= 0.5*sp.DMax || t.PPFD <= 2*sp.LCP {
		return 0
	}
	if !s.Params.Options.SeedTradeoff {
		return s.Params.Physiology.SeedsPerTree
	}
	return int(t.NPP / carbonFraction * s.Params.Physiology.SeedAllocation / sp.SeedMass)
}

// disperse scatters the seeds of the tree at site. Seeds travel a
// Rayleigh-distributed distance whose scale is the species dispersal
// distance plus the crown radius, in a uniformly random direction.
// Seeds that land outside of the grid are lost.
func (s *Sylva) disperse(site int) {
	t := &s.Trees[site]
	sp := s.Species[t.Species]
	n := s.seedCount(t, sp)
	if n == 0 {
		return
	}
	g := &s.Params.Grid
	col, row := g.ColRow(site)
	scale := sp.DispersalDistance + t.CrownRadius
	for i := 0; i < n; i++ {
		rho := s.rand.Rayleigh(scale) * g.NH
		theta := s.rand.Angle()
		o, ok := g.Site(col+int(rho*math.Cos(theta)), row+int(rho*math.Sin(theta)))
		if !ok {
			s.events.seedsLost++
			continue
		}
		s.addSeed(sp, o)
	}
}

// seedRain adds the seeds that arrive from outside of the plot, spread
// uniformly over the grid.
func (s *Sylva) seedRain() {
	ha := s.Params.Grid.Hectares()
	sites := s.Params.Grid.Sites()
	for _, sp := range s.Species {
		x := sp.SeedRain * ha
		n := int(x)
		if s.rand.Bernoulli(x - float64(n)) {
			n++
		}
		for i := 0; i < n; i++ {
			s.addSeed(sp, s.rand.Intn(sites))
		}
	}
}

// DisperseSeeds adds external seed rain and the seeds produced by every
// reproductive tree to the seed banks.
func DisperseSeeds() DomainManipulator {
	return func(s *Sylva) error {
		s.seedRain()
		for site := range s.Trees {
			if s.Trees[site].Age > 0 {
				s.disperse(site)
			}
		}
		return nil
	}
}

// clearSeeds removes the seeds of every species from site.
func (s *Sylva) clearSeeds(site int) {
	for _, sp := range s.Species {
		sp.Seeds[site] = 0
	}
}

// groundLight returns the photon flux density reaching the ground at
// site [µmol m⁻² s⁻¹].
func (s *Sylva) groundLight(site int) float64 {
	return s.Env.Wmax * math.Exp(-s.Params.Physiology.KLight*s.Canopy.At(site, 0))
}

// chooseSeed picks the species that attempts to germinate at site, or
// returns -1 if no seeds are present.
func (s *Sylva) chooseSeed(site int, w []float64) int {
	opt := &s.Params.Options
	var total float64
	for i, sp := range s.Species {
		w[i] = 0
		if sp.Seeds[site] <= 0 {
			continue
		}
		if opt.SeedTradeoff {
			w[i] = float64(sp.Seeds[site]) * sp.SeedMass
			if opt.DensityDependence {
				w[i] /= 1 + s.Params.Physiology.NDDCoefficient*s.conspecificDensity(site, i)
			}
		} else {
			w[i] = 1
		}
		total += w[i]
	}
	if total == 0 {
		return -1
	}
	u := s.rand.Float64() * total
	for i, wi := range w {
		if wi == 0 {
			continue
		}
		u -= wi
		if u < 0 {
			return i
		}
	}
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] > 0 {
			return i
		}
	}
	return -1
}

// Germinate attempts, at every empty site holding seeds, to establish a
// seedling of one of the species present. It succeeds if the light
// reaching the ground exceeds the light compensation point of that
// species. Occupied sites and sites where a seedling is established
// lose all of their seeds. The canopy must have been rebuilt.
func Germinate() DomainManipulator {
	return func(s *Sylva) error {
		if !s.Canopy.Finalized() {
			return fmt.Errorf("sylva: germination attempted before the canopy was rebuilt")
		}
		w := make([]float64, len(s.Species))
		for site := range s.Trees {
			if s.Trees[site].Age > 0 {
				s.clearSeeds(site)
				continue
			}
			sp := s.chooseSeed(site, w)
			if sp < 0 {
				continue
			}
			if s.groundLight(site) <= s.Species[sp].LCP {
				s.events.germinationsFailed++
				continue
			}
			if err := s.Birth(sp, site); err != nil {
				return err
			}
			s.clearSeeds(site)
		}
		return nil
	}
}

// AgeSeedBanks ages the seed banks by one timestep: dormant seeds lose
// one timestep of lifetime, and seed counts are reset when seed output
// depends on NPP.
func AgeSeedBanks() DomainManipulator {
	return func(s *Sylva) error {
		for _, sp := range s.Species {
			for i, v := range sp.Seeds {
				switch {
				case s.Params.Options.SeedTradeoff:
					sp.Seeds[i] = 0
				case v > 0:
					sp.Seeds[i] = v - 1
				}
			}
		}
		return nil
	}
}
