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

import "math"

// fall records the damage done by the tree at site as it falls in a
// random direction. Every site along the trunk receives damage
// proportional to the height of the fallen tree, which takes effect
// during the next timestep.
func (s *Sylva) fall(site int) {
	g := &s.Params.Grid
	t := &s.Trees[site]
	theta := s.rand.Angle()
	cos, sin := math.Cos(theta), math.Sin(theta)
	damage := t.Height * s.Params.Physiology.TreefallDamage
	col, row := g.ColRow(site)
	n := g.cells(t.Height)
	for d := 1; d <= n; d++ {
		o, ok := g.Site(col+int(math.Round(float64(d)*cos)), row+int(math.Round(float64(d)*sin)))
		if !ok {
			continue
		}
		if damage > s.hurtNext.Elements[o] {
			s.hurtNext.Elements[o] = damage
		}
	}
	s.events.falls++
}

// Treefall makes the damage recorded during the current timestep
// effective for the next one.
func Treefall() DomainManipulator {
	return func(s *Sylva) error {
		s.hurt, s.hurtNext = s.hurtNext, s.hurt
		for i := range s.hurtNext.Elements {
			s.hurtNext.Elements[i] = 0
		}
		return nil
	}
}

// Damage returns the treefall damage that trees at site will receive
// during the next update [m].
func (s *Sylva) Damage(site int) float64 { return s.hurt.Elements[site] }
