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
	"io/ioutil"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
)

const tolerance = 1.e-8

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

// testParams reads the test parameter file and applies modify to it.
func testParams(t *testing.T, modify func(p *Params)) *Params {
	p, err := ReadParamsFile("testdata/params.toml")
	if err != nil {
		t.Fatal(err)
	}
	if modify != nil {
		modify(p)
	}
	return p
}

// setupSylva returns an initialized but not yet run simulation.
func setupSylva(t *testing.T, modify func(p *Params), extraInit ...DomainManipulator) *Sylva {
	p := testParams(t, modify)
	s := &Sylva{
		InitFuncs: append([]DomainManipulator{Setup(p)}, extraInit...),
		RunFuncs:  DefaultRunFuncs(p.Run.NumIterations, quietLogger()),
		Logger:    quietLogger(),
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	return s
}

// checkCounts verifies that the species and total tree counters match
// the state of the grid.
func checkCounts(s *Sylva) error {
	counts := make([]int, len(s.Species))
	var total int
	for site := range s.Trees {
		tr := &s.Trees[site]
		if tr.Age == 0 {
			if tr.Species != NoSpecies {
				return fmt.Errorf("empty site %d has species %d", site, tr.Species)
			}
			continue
		}
		counts[tr.Species]++
		total++
	}
	if total != s.NumTrees {
		return fmt.Errorf("NumTrees = %d but %d sites are occupied", s.NumTrees, total)
	}
	for i, sp := range s.Species {
		if sp.Count != counts[i] {
			return fmt.Errorf("species %s count = %d but it occupies %d sites", sp.Name, sp.Count, counts[i])
		}
	}
	return nil
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"RMax larger than grid", func(p *Params) { p.Grid.RMax = 11 }},
		{"zero height", func(p *Params) { p.Grid.Height = 0 }},
		{"no species", func(p *Params) { p.Species = nil }},
		{"duplicate species", func(p *Params) { p.Species[1].Name = p.Species[0].Name }},
		{"crowns too tall", func(p *Params) { p.Species[0].HMax = 59.5 }},
		{"bad wood density", func(p *Params) { p.Species[0].WoodDensity = 0 }},
		{"climate length", func(p *Params) { p.Climate.NightTemperature = p.Climate.NightTemperature[:11] }},
		{"daily length", func(p *Params) { p.Daily.Light = p.Daily.Light[:23] }},
		{"allocation", func(p *Params) { p.Physiology.FallocWood = 0.9 }},
		{"no iterations", func(p *Params) { p.Run.NumIterations = 0 }},
		{"zero NDD radius", func(p *Params) {
			p.Options.DensityDependence = true
			p.Physiology.NDDRadius = 0
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := testParams(t, test.modify)
			s := &Sylva{InitFuncs: []DomainManipulator{Setup(p)}, Logger: quietLogger()}
			if err := s.Init(); err == nil {
				t.Error("expected an error")
			}
			if s.Params != nil || s.Trees != nil {
				t.Error("failed setup should not modify the simulation")
			}
		})
	}
}

// Crowns may be as wide as the grid, and NDDRadius only matters with
// density dependence.
func TestSetupLimits(t *testing.T) {
	s := setupSylva(t, func(p *Params) {
		p.Grid.RMax = p.Grid.Rows
		p.Physiology.NDDRadius = 0
	})
	if s.Params.Grid.RMax != 10 {
		t.Errorf("RMax = %d, want 10", s.Params.Grid.RMax)
	}
}

func TestRunWithoutSetup(t *testing.T) {
	s := &Sylva{RunFuncs: []DomainManipulator{IterationCheck(1)}}
	if err := s.Run(); err == nil {
		t.Error("expected an error")
	}
}
