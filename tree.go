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

	"github.com/sirupsen/logrus"
)

// NoSpecies is the species index of an empty site.
const NoSpecies = -1

// Tree holds the state of the tree at one site. A site is empty when
// Age is zero, in which case Species is NoSpecies and every other
// field is zero.
type Tree struct {
	Species int // index into Sylva.Species
	Age     int // [timesteps]

	DBH         float64 // trunk diameter at breast height [m]
	Height      float64 // [m]
	CrownRadius float64 // [m]
	CrownDepth  float64 // [m]

	// LeafDensity is the leaf area density of the crown [m² m⁻³].
	LeafDensity float64

	// Leaf area in each age class [m²].
	YoungLA, MatureLA, OldLA float64

	// DBHThreshold is the diameter beyond which growth slows down [m].
	DBHThreshold float64

	// CriticalHeight is the height above which the tree may fall [m].
	CriticalHeight float64

	// Carbon fluxes during the last update [g C].
	GPP, NPP, Rday, Rnight, Rstem, Litter float64

	// Conditions at the top of the crown during the last update.
	PPFD, VPD, T float64

	// NPPNeg is the number of consecutive updates with negative NPP.
	NPPNeg int

	// Born is the timestep during which the tree was born.
	Born int
}

// LeafArea returns the total leaf area of the tree [m²].
func (t *Tree) LeafArea() float64 { return t.YoungLA + t.MatureLA + t.OldLA }

// BasalArea returns the cross-sectional area of the trunk [m²].
func (t *Tree) BasalArea() float64 { return math.Pi * t.DBH * t.DBH / 4 }

// setGeometry sets the height and crown dimensions of t from its
// diameter.
func (s *Sylva) setGeometry(t *Tree, sp *Species) {
	t.Height = sp.height(t.DBH)
	t.CrownRadius = crownRadius(t.Height, float64(s.Params.Grid.RMax)/s.Params.Grid.NH)
	t.CrownDepth = crownDepth(t.Height)
}

// setLeafDensity spreads the leaf area of t over its crown volume.
func (t *Tree) setLeafDensity() {
	vol := math.Pi * t.CrownRadius * t.CrownRadius * t.CrownDepth
	if vol > 0 {
		t.LeafDensity = t.LeafArea() / vol
	}
}

// drawThresholds sets the individual diameter threshold and critical
// height of a new tree.
func (s *Sylva) drawThresholds(t *Tree, sp *Species) {
	x := math.Exp(0.05 * s.rand.NormFloat64())
	t.DBHThreshold = sp.DMax * math.Max(0.5, math.Min(1, x))
	v := s.Params.Physiology.TreefallVariability
	t.CriticalHeight = sp.HMax * math.Max(0, 1-v*math.Sqrt(-math.Log(1-s.rand.Float64())))
}

// Birth places a newborn tree of species sp at the empty site.
func (s *Sylva) Birth(sp, site int) error {
	if err := s.checkSite(site); err != nil {
		return err
	}
	if sp < 0 || sp >= len(s.Species) {
		return fmt.Errorf("sylva: invalid species index %d", sp)
	}
	if s.Trees[site].Age > 0 {
		return ErrOccupied
	}
	species := s.Species[sp]
	ph := &s.Params.Physiology
	t := Tree{
		Species: sp,
		Age:     1,
		Height:  ph.H0,
		Born:    s.Iteration,
	}
	t.DBH = species.dbhAtHeight(t.Height)
	t.CrownRadius = crownRadius(t.Height, float64(s.Params.Grid.RMax)/s.Params.Grid.NH)
	t.CrownDepth = crownDepth(t.Height)
	t.LeafDensity = ph.LeafDensity0
	t.YoungLA = ph.LeafDensity0 * math.Pi * t.CrownRadius * t.CrownRadius * t.CrownDepth
	s.drawThresholds(&t, species)
	s.Trees[site] = t
	species.Count++
	s.NumTrees++
	s.events.births++
	return nil
}

// BirthFromData places a tree of species sp with trunk diameter dbh [m]
// at the empty site. Diameters larger than 1.5 times the species
// maximum are reduced to that value.
func (s *Sylva) BirthFromData(sp, site int, dbh float64) error {
	if err := s.checkSite(site); err != nil {
		return err
	}
	if sp < 0 || sp >= len(s.Species) {
		return fmt.Errorf("sylva: invalid species index %d", sp)
	}
	if !(dbh > 0) {
		return fmt.Errorf("sylva: invalid diameter %g at site %d", dbh, site)
	}
	if s.Trees[site].Age > 0 {
		return ErrOccupied
	}
	species := s.Species[sp]
	if max := 1.5 * species.DMax; dbh > max {
		s.logger().WithFields(logrus.Fields{
			"species": species.Name,
			"site":    site,
			"dbh":     dbh,
			"max":     max,
		}).Warn("sylva: diameter exceeds species maximum; reducing it")
		dbh = max
	}
	ph := &s.Params.Physiology
	t := Tree{
		Species: sp,
		Age:     1,
		DBH:     dbh,
		Born:    s.Iteration - 1,
	}
	s.setGeometry(&t, species)
	t.LeafDensity = ph.LeafDensity0
	la := ph.LeafDensity0 * math.Pi * t.CrownRadius * t.CrownRadius * t.CrownDepth
	t.YoungLA, t.MatureLA, t.OldLA = 0.25*la, 0.5*la, 0.25*la
	s.drawThresholds(&t, species)
	s.Trees[site] = t
	species.Count++
	s.NumTrees++
	return nil
}

// cause is the reason a tree died.
type cause int

const (
	causeNatural cause = iota
	causeNDD
	causeTreefall
	causeDamage
)

// Death removes the tree at site.
func (s *Sylva) Death(site int) error {
	if err := s.checkSite(site); err != nil {
		return err
	}
	if s.Trees[site].Age == 0 {
		return ErrEmpty
	}
	s.death(site, causeNatural)
	return nil
}

func (s *Sylva) death(site int, c cause) {
	t := &s.Trees[site]
	s.Species[t.Species].Count--
	s.NumTrees--
	switch c {
	case causeNatural:
		s.events.deathsNatural++
	case causeNDD:
		s.events.deathsNDD++
	case causeTreefall:
		s.events.deathsTreefall++
	case causeDamage:
		s.events.deathsDamage++
	}
	*t = Tree{Species: NoSpecies}
}
