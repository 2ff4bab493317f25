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
	"bytes"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"gonum.org/v1/gonum/stat"
)

// checkCanopy verifies that cumulative leaf area never decreases
// downward.
func checkCanopy(s *Sylva) error {
	g := &s.Params.Grid
	for site := 0; site < g.Sites(); site++ {
		for h := 0; h < g.Height; h++ {
			if lo, up := s.Canopy.At(site, h), s.Canopy.At(site, h+1); lo < up-1.e-12 {
				return fmt.Errorf("site %d: layer %d holds %g but layer %d holds %g", site, h, lo, h+1, up)
			}
		}
	}
	return nil
}

func TestSimulation(t *testing.T) {
	s := setupSylva(t, nil)
	s.RunFuncs = append(s.RunFuncs, func(s *Sylva) error {
		if err := checkCounts(s); err != nil {
			return err
		}
		return checkCanopy(s)
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if s.Iteration != 50 {
		t.Errorf("iteration = %d, want 50", s.Iteration)
	}
	if s.NumTrees == 0 || s.NumTrees > 100 {
		t.Fatalf("%d trees after 50 timesteps", s.NumTrees)
	}
	for site, tr := range s.Trees {
		if tr.Age == 0 {
			continue
		}
		sp := s.Species[tr.Species]
		if !(tr.DBH > 0) || tr.DBH > 1.5*sp.DMax {
			t.Errorf("site %d: dbh %g out of range", site, tr.DBH)
		}
		if math.IsNaN(tr.Height) || math.IsNaN(tr.LeafDensity) || tr.LeafDensity < 0 {
			t.Errorf("site %d: invalid tree %+v", site, tr)
		}
	}
	d := s.Diagnostics
	if d == nil || d.Iteration != 50 || d.Total.Abundance != s.NumTrees {
		t.Errorf("diagnostics do not match the final state: %+v", d)
	}
	if !(d.LAI > 0) {
		t.Errorf("leaf area index should be positive but is %g", d.LAI)
	}
}

func TestSimulationFullGPP(t *testing.T) {
	s := setupSylva(t, func(p *Params) {
		p.Options.FastGPP = false
		p.Options.DensityDependence = true
		p.Options.SeedTradeoff = true
		p.Run.NumIterations = 4
	})
	s.RunFuncs = append(s.RunFuncs, func(s *Sylva) error { return checkCounts(s) })
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if s.NumTrees == 0 {
		t.Error("no trees were established")
	}
}

func TestDeterminism(t *testing.T) {
	run := func() *Sylva {
		s := setupSylva(t, func(p *Params) { p.Run.NumIterations = 15 })
		if err := s.Run(); err != nil {
			t.Fatal(err)
		}
		return s
	}
	a, b := run(), run()
	if diff := pretty.Diff(a.Trees, b.Trees); len(diff) != 0 {
		t.Errorf("simulations with the same seed differ: %v", diff)
	}
	c := setupSylva(t, func(p *Params) {
		p.Run.NumIterations = 15
		p.Run.Seed = 7
	})
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.Trees, c.Trees) {
		t.Error("simulations with different seeds are identical")
	}
}

// Every tree that is updated either dies or grows.
func TestDeathOrGrowth(t *testing.T) {
	s := setupSylva(t, nil)
	var before []Tree
	snapshot := func(s *Sylva) error {
		before = append(before[:0], s.Trees...)
		return nil
	}
	verify := func(s *Sylva) error {
		var updated int
		for site, pre := range before {
			if pre.Age == 0 || pre.Born == s.Iteration {
				continue
			}
			updated++
			post := s.Trees[site]
			if post.Age != 0 && (post.Age != pre.Age+1 || post.Species != pre.Species) {
				return fmt.Errorf("site %d: age %d -> %d", site, pre.Age, post.Age)
			}
		}
		e := s.events
		deaths := e.deathsNatural + e.deathsNDD + e.deathsTreefall + e.deathsDamage
		if e.growths+deaths != updated {
			return fmt.Errorf("iteration %d: %d growths and %d deaths for %d trees",
				s.Iteration, e.growths, deaths, updated)
		}
		return nil
	}
	s.RunFuncs = []DomainManipulator{
		SetEnvironment(),
		RebuildCanopy(),
		DisperseSeeds(),
		Germinate(),
		snapshot,
		UpdateTrees(),
		verify,
		Treefall(),
		AgeSeedBanks(),
		Aggregate(),
		IterationCheck(30),
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

func TestGermination(t *testing.T) {
	for _, test := range []struct {
		lcp    float64
		births int
	}{
		{lcp: 5, births: 1},
		{lcp: 200, births: 0},
	} {
		t.Run(fmt.Sprint(test.lcp), func(t *testing.T) {
			s := setupSylva(t, nil)
			if err := RebuildCanopy()(s); err != nil {
				t.Fatal(err)
			}
			s.Env.Wmax = 100
			s.Species[0].LCP = test.lcp
			s.Species[0].Seeds[7] = 3
			if err := Germinate()(s); err != nil {
				t.Fatal(err)
			}
			if s.NumTrees != test.births {
				t.Fatalf("trees = %d, want %d", s.NumTrees, test.births)
			}
			if test.births == 1 {
				if s.Trees[7].Species != 0 {
					t.Errorf("species = %d, want 0", s.Trees[7].Species)
				}
				if s.Species[0].Seeds[7] != 0 {
					t.Error("seeds should be removed after germination")
				}
			} else {
				if s.Species[0].Seeds[7] != 3 {
					t.Error("seeds should remain after failed germination")
				}
				if s.events.germinationsFailed != 1 {
					t.Errorf("failed germinations = %d, want 1", s.events.germinationsFailed)
				}
			}
		})
	}
}

// With an incident flux of 100, only the species whose light
// compensation point lies below it can establish, whatever seeds
// compete at a site.
func TestGerminationLightGating(t *testing.T) {
	s := setupSylva(t, nil)
	if err := RebuildCanopy()(s); err != nil {
		t.Fatal(err)
	}
	s.Env.Wmax = 100
	s.Species[0].LCP = 5
	s.Species[1].LCP = 200
	sites := len(s.Trees)
	for site := 0; site < sites; site++ {
		s.Species[0].Seeds[site] = 1
		s.Species[1].Seeds[site] = 1
	}
	var failed int
	for round := 0; round < 8 && s.NumTrees < sites; round++ {
		s.events = events{}
		if err := Germinate()(s); err != nil {
			t.Fatal(err)
		}
		failed += s.events.germinationsFailed
	}
	if s.Species[1].Count != 0 {
		t.Errorf("%d trees of the shade-intolerant species germinated", s.Species[1].Count)
	}
	if s.Species[0].Count == 0 || failed == 0 {
		t.Errorf("%d births and %d failures; both outcomes should occur", s.Species[0].Count, failed)
	}
	for site := range s.Trees {
		tr := s.Trees[site]
		if tr.Age > 0 && tr.Species != 0 {
			t.Errorf("site %d has species %d", site, tr.Species)
		}
		if tr.Age == 0 && (s.Species[0].Seeds[site] != 1 || s.Species[1].Seeds[site] != 1) {
			t.Errorf("site %d lost its seeds after failing to germinate", site)
		}
	}

	// Alone, the shade-intolerant species never establishes.
	s = setupSylva(t, nil)
	if err := RebuildCanopy()(s); err != nil {
		t.Fatal(err)
	}
	s.Env.Wmax = 100
	s.Species[0].LCP = 5
	s.Species[1].LCP = 200
	for site := 0; site < sites; site++ {
		s.Species[1].Seeds[site] = 2
	}
	if err := Germinate()(s); err != nil {
		t.Fatal(err)
	}
	if s.NumTrees != 0 || s.events.germinationsFailed != sites {
		t.Errorf("%d trees and %d failures, want 0 and %d", s.NumTrees, s.events.germinationsFailed, sites)
	}
}

func TestGerminateRequiresCanopy(t *testing.T) {
	s := setupSylva(t, nil)
	if err := Germinate()(s); err == nil {
		t.Error("expected an error")
	}
	if err := UpdateTrees()(s); err == nil {
		t.Error("expected an error")
	}
}

func TestSeedsClearedAtOccupiedSites(t *testing.T) {
	s := setupSylva(t, nil)
	if err := s.Birth(1, 0); err != nil {
		t.Fatal(err)
	}
	s.Species[0].Seeds[0] = 5
	s.Species[1].Seeds[0] = 5
	if err := RebuildCanopy()(s); err != nil {
		t.Fatal(err)
	}
	if err := Germinate()(s); err != nil {
		t.Fatal(err)
	}
	if s.Species[0].Seeds[0] != 0 || s.Species[1].Seeds[0] != 0 {
		t.Error("seeds should be removed from occupied sites")
	}
}

func TestAgeSeedBanks(t *testing.T) {
	s := setupSylva(t, nil)
	s.Species[0].Seeds[3] = 2
	s.Species[1].Seeds[4] = 1
	if err := AgeSeedBanks()(s); err != nil {
		t.Fatal(err)
	}
	if s.Species[0].Seeds[3] != 1 || s.Species[1].Seeds[4] != 0 {
		t.Errorf("seed lifetimes %d and %d, want 1 and 0", s.Species[0].Seeds[3], s.Species[1].Seeds[4])
	}

	s.Params.Options.SeedTradeoff = true
	s.Species[0].Seeds[3] = 40
	if err := AgeSeedBanks()(s); err != nil {
		t.Fatal(err)
	}
	if s.Species[0].Seeds[3] != 0 {
		t.Errorf("seed counts should be reset but are %d", s.Species[0].Seeds[3])
	}
}

func TestSeedRain(t *testing.T) {
	s := setupSylva(t, func(p *Params) {
		p.Species[0].SeedRain = 1000
		p.Species[1].SeedRain = 0
	})
	s.Params.Options.SeedTradeoff = true
	s.seedRain()
	var n int
	for _, v := range s.Species[0].Seeds {
		n += v
	}
	// 1000 seeds per hectare on 0.01 ha.
	if n != 10 || s.events.seedsDispersed != 10 {
		t.Errorf("seeds = %d (%d dispersed), want 10", n, s.events.seedsDispersed)
	}
}

func TestRayleigh(t *testing.T) {
	r := NewRand(1)
	x := make([]float64, 100000)
	for i := range x {
		x[i] = r.Rayleigh(10)
	}
	if mean, want := stat.Mean(x, nil), 10*math.Sqrt(math.Pi)/2; absDifferent(mean, want, 0.1) {
		t.Errorf("mean = %g, want %g", mean, want)
	}
}

func TestConspecificDensity(t *testing.T) {
	s := setupSylva(t, nil)
	for _, tr := range []struct {
		sp, site int
	}{
		{0, 55}, // center
		{0, 57}, // 2 m away
		{1, 56}, // other species
		{0, 0},  // 7 m away
	} {
		if err := s.BirthFromData(tr.sp, tr.site, 0.2); err != nil {
			t.Fatal(err)
		}
	}
	// π·0.1² m² of basal area within a circle of radius 5 m.
	if d := s.conspecificDensity(55, 0); different(d, 4, tolerance) {
		t.Errorf("density = %g, want 4", d)
	}
}

func TestGrowth(t *testing.T) {
	for _, test := range []struct {
		name  string
		light float64
		grows bool
	}{
		{name: "light", light: 410 * ppfdPerWatt, grows: true},
		{name: "dark", light: 0, grows: false},
	} {
		t.Run(test.name, func(t *testing.T) {
			s := setupSylva(t, nil)
			const site = 55
			if err := s.BirthFromData(0, site, 0.05); err != nil {
				t.Fatal(err)
			}
			if err := SetEnvironment()(s); err != nil {
				t.Fatal(err)
			}
			if err := RebuildCanopy()(s); err != nil {
				t.Fatal(err)
			}
			s.Env.Wmax = test.light
			tr := &s.Trees[site]
			dbh := tr.DBH
			s.growth(tr, s.Species[0], site)
			if tr.Age != 2 {
				t.Errorf("age = %d, want 2", tr.Age)
			}
			if test.grows {
				if !(tr.GPP > 0) || !(tr.NPP > 0) || tr.NPPNeg != 0 {
					t.Errorf("GPP %g, NPP %g, NPPNeg %d", tr.GPP, tr.NPP, tr.NPPNeg)
				}
				if !(tr.DBH > dbh) {
					t.Errorf("dbh %g should exceed %g", tr.DBH, dbh)
				}
				if different(tr.Height, s.Species[0].height(tr.DBH), tolerance) {
					t.Errorf("height %g does not follow the allometry", tr.Height)
				}
			} else {
				if tr.GPP != 0 || tr.NPP != 0 || tr.NPPNeg != 1 {
					t.Errorf("GPP %g, NPP %g, NPPNeg %d", tr.GPP, tr.NPP, tr.NPPNeg)
				}
				if tr.DBH != dbh {
					t.Errorf("dbh changed from %g to %g", dbh, tr.DBH)
				}
			}
			if !(tr.Litter > 0) {
				t.Errorf("litter should be positive but is %g", tr.Litter)
			}
		})
	}
}

// The fast crown assimilation agrees with the layer-by-layer one for
// isolated trees of every size under full sunlight.
func TestFastGPPMatchesLayers(t *testing.T) {
	for _, dbh := range []float64{0.02, 0.1, 0.3, 0.6} {
		s := setupSylva(t, nil)
		const site = 55
		if err := s.BirthFromData(0, site, dbh); err != nil {
			t.Fatal(err)
		}
		if err := SetEnvironment()(s); err != nil {
			t.Fatal(err)
		}
		if err := RebuildCanopy()(s); err != nil {
			t.Fatal(err)
		}
		tr := &s.Trees[site]
		sp := s.Species[0]
		s.Params.Options.FastGPP = true
		fast, rFast := s.assimilation(tr, sp, site)
		s.Params.Options.FastGPP = false
		full, rFull := s.assimilation(tr, sp, site)
		if !(full > 0) {
			t.Fatalf("dbh %g: assimilation %g", dbh, full)
		}
		if different(fast, full, 0.1) {
			t.Errorf("dbh %g: fast assimilation %g, by layer %g", dbh, fast, full)
		}
		if different(rFast, rFull, 0.1) {
			t.Errorf("dbh %g: fast day respiration %g, by layer %g", dbh, rFast, rFull)
		}
	}
}

func TestStarvation(t *testing.T) {
	s := setupSylva(t, nil)
	const site = 12
	if err := s.BirthFromData(1, site, 0.1); err != nil {
		t.Fatal(err)
	}
	s.Species[1].DeathRate = 0
	s.Trees[site].NPPNeg = int(s.Species[1].LeafLifespan) + 1
	if err := RebuildCanopy()(s); err != nil {
		t.Fatal(err)
	}
	if err := UpdateTrees()(s); err != nil {
		t.Fatal(err)
	}
	if s.Trees[site].Age != 0 || s.events.deathsNatural != 1 {
		t.Error("a starving tree should die")
	}
}

func TestTreefallDamage(t *testing.T) {
	s := setupSylva(t, nil)
	const site = 33
	if err := s.BirthFromData(0, site, 0.1); err != nil {
		t.Fatal(err)
	}
	s.Species[0].DeathRate = 0
	s.Trees[site].CriticalHeight = 100
	s.hurt.Elements[site] = 3 * s.Trees[site].Height
	if err := RebuildCanopy()(s); err != nil {
		t.Fatal(err)
	}
	if err := UpdateTrees()(s); err != nil {
		t.Fatal(err)
	}
	if s.Trees[site].Age != 0 || s.events.deathsDamage != 1 {
		t.Error("a tree hit by a much taller tree should die")
	}
	if err := checkCounts(s); err != nil {
		t.Error(err)
	}
}

func TestFall(t *testing.T) {
	s := setupSylva(t, nil)
	const site = 55
	if err := s.BirthFromData(0, site, 0.02); err != nil {
		t.Fatal(err)
	}
	h := s.Trees[site].Height
	s.fall(site)
	if err := Treefall()(s); err != nil {
		t.Fatal(err)
	}
	var hit int
	col, row := s.Params.Grid.ColRow(site)
	for o := range s.Trees {
		d := s.Damage(o)
		if d == 0 {
			continue
		}
		hit++
		if different(d, h, tolerance) {
			t.Errorf("damage %g, want %g", d, h)
		}
		c, r := s.Params.Grid.ColRow(o)
		if dist := math.Hypot(float64(c-col), float64(r-row)); dist > h+1 {
			t.Errorf("site %d at %g m was hit by a %g m tree", o, dist, h)
		}
	}
	if n := s.Params.Grid.cells(h); hit == 0 || hit > n {
		t.Errorf("%d sites hit, want between 1 and %d", hit, n)
	}
	if s.hurtNext.Sum() != 0 {
		t.Error("pending damage should be cleared")
	}
	if s.events.falls != 1 {
		t.Errorf("falls = %d, want 1", s.events.falls)
	}
}

func TestSaveLoad(t *testing.T) {
	s := setupSylva(t, func(p *Params) { p.Run.NumIterations = 6 })
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := Save(&b)(s); err != nil {
		t.Fatal(err)
	}
	s2 := setupSylva(t, nil, Load(&b))
	if s2.Iteration != s.Iteration || s2.NumTrees != s.NumTrees {
		t.Errorf("iteration %d, trees %d; want %d, %d", s2.Iteration, s2.NumTrees, s.Iteration, s.NumTrees)
	}
	if diff := pretty.Diff(s.Trees, s2.Trees); len(diff) != 0 {
		t.Errorf("trees differ: %v", diff)
	}
	for i := range s.Species {
		if !reflect.DeepEqual(s.Species[i].Seeds, s2.Species[i].Seeds) {
			t.Errorf("seed bank of species %d differs", i)
		}
	}
	if !reflect.DeepEqual(s.hurt.Elements, s2.hurt.Elements) {
		t.Error("damage differs")
	}
	if err := checkCounts(s2); err != nil {
		t.Error(err)
	}

	var b2 bytes.Buffer
	if err := Save(&b2)(s); err != nil {
		t.Fatal(err)
	}
	p := testParams(t, func(p *Params) { p.Species = p.Species[:1] })
	s3 := &Sylva{InitFuncs: []DomainManipulator{Setup(p), Load(&b2)}, Logger: quietLogger()}
	if err := s3.Init(); err == nil {
		t.Error("loading a checkpoint with different species should fail")
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "sylva")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := setupSylva(t, func(p *Params) { p.Run.NumIterations = 4 })
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"state.gob", "state.gob.zst"} {
		path := filepath.Join(dir, name)
		if err := SaveFile(path)(s); err != nil {
			t.Fatal(err)
		}
		s2 := setupSylva(t, nil, LoadFile(path))
		if diff := pretty.Diff(s.Trees, s2.Trees); len(diff) != 0 {
			t.Errorf("%s: trees differ: %v", name, diff)
		}
		if s2.Iteration != 4 {
			t.Errorf("%s: iteration = %d, want 4", name, s2.Iteration)
		}
	}
	if err := LoadFile(filepath.Join(dir, "missing.gob"))(s); err == nil {
		t.Error("expected an error for a missing checkpoint")
	}
}

func TestRestartFinished(t *testing.T) {
	s := setupSylva(t, func(p *Params) { p.Run.NumIterations = 4 })
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := Save(&b)(s); err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{3, 4, 6} {
		s2 := setupSylva(t, func(p *Params) { p.Run.NumIterations = n },
			Load(bytes.NewReader(b.Bytes())), RestartCheck(n))
		if err := s2.Run(); err != nil {
			t.Fatal(err)
		}
		want := 4
		if n > want {
			want = n
		}
		if s2.Iteration != want {
			t.Errorf("restart to %d timesteps: iteration = %d, want %d", n, s2.Iteration, want)
		}
	}
}

func TestFieldData(t *testing.T) {
	s := setupSylva(t, nil, LoadFieldDataFile("testdata/field.txt"))
	if s.NumTrees != 3 {
		t.Fatalf("loaded %d trees, want 3", s.NumTrees)
	}
	for _, want := range []struct {
		site, sp int
		dbh      float64
	}{
		{0, 0, 0.35},
		{25, 1, 0.12},
		{98, 0, 1.5},
	} {
		tr := s.Trees[want.site]
		if tr.Species != want.sp || tr.DBH != want.dbh {
			t.Errorf("site %d: species %d dbh %g, want %d %g", want.site, tr.Species, tr.DBH, want.sp, want.dbh)
		}
	}
}

func TestFieldDataCentimetres(t *testing.T) {
	data := "x y dbh species\n# unit = cm\n1.5 1.5 35 Dicorynia_guianensis\n2.5 1.5 x Dicorynia_guianensis\n"
	s := setupSylva(t, nil)
	if err := LoadFieldData(strings.NewReader(data))(s); err == nil {
		t.Error("expected an error for an invalid diameter")
	}
	if tr := s.Trees[11]; different(tr.DBH, 0.35, tolerance) {
		t.Errorf("dbh = %g, want 0.35", tr.DBH)
	}
}

func TestFieldDataHeaderAfterComment(t *testing.T) {
	for _, data := range []string{
		"# unit=cm\n\nx y dbh species\n1.5 1.5 35 Dicorynia_guianensis\n",
		"\n# survey 2024\n# unit=cm\nx y dbh\n1.5 1.5 35 Dicorynia_guianensis\n",
	} {
		s := setupSylva(t, nil)
		if err := LoadFieldData(strings.NewReader(data))(s); err != nil {
			t.Errorf("%q: %v", data, err)
			continue
		}
		if tr := s.Trees[11]; s.NumTrees != 1 || different(tr.DBH, 0.35, tolerance) {
			t.Errorf("%q: %d trees, dbh %g", data, s.NumTrees, tr.DBH)
		}
	}
	s := setupSylva(t, nil)
	data := "1.5 1.5 0.35 Dicorynia_guianensis\nx y dbh species\n"
	if err := LoadFieldData(strings.NewReader(data))(s); err == nil {
		t.Error("expected an error for a header after the first tree")
	}
}

func TestUpdateNewborns(t *testing.T) {
	for _, update := range []bool{false, true} {
		s := setupSylva(t, func(p *Params) { p.Options.UpdateNewborns = update })
		if err := s.Birth(0, 55); err != nil {
			t.Fatal(err)
		}
		for _, f := range []DomainManipulator{SetEnvironment(), RebuildCanopy(), UpdateTrees()} {
			if err := f(s); err != nil {
				t.Fatal(err)
			}
		}
		e := s.events
		n := e.growths + e.deathsNatural + e.deathsNDD + e.deathsTreefall + e.deathsDamage
		want := 0
		if update {
			want = 1
		}
		if n != want {
			t.Errorf("UpdateNewborns=%v: %d trees updated, want %d", update, n, want)
		}
	}
}
