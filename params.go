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
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/spatialmodel/sylva/science/photosynthesis/fvcb"
)

// Params holds the complete set of parameters of a simulation.
// It is usually decoded from a TOML parameter file.
type Params struct {
	Grid       GridConfig
	Run        RunConfig
	Physiology Physiology
	Options    Options
	Species    []SpeciesParams
	Climate    Climate
	Daily      DailyCurves
}

// RunConfig holds the timing parameters of a simulation.
type RunConfig struct {
	// NumIterations is the number of timesteps to simulate.
	NumIterations int

	// IterationsPerYear is the number of timesteps in a year.
	// The default of 12 gives monthly timesteps.
	IterationsPerYear int

	// Seed initializes the random number generator.
	Seed int64
}

// Physiology holds the parameters shared by all species.
type Physiology struct {
	KLight float64 // light extinction coefficient
	Phi    float64 // quantum yield of carbon assimilation [µmol C µmol⁻¹ photon]
	Theta  float64 // curvature of the light response of electron transport
	G1     float64 // stomatal slope parameter [kPa^0.5]
	CAir   float64 // atmospheric CO2 concentration [ppm]

	LeafDensity0 float64 // leaf area density of a newborn tree [m² m⁻³]
	H0           float64 // height of a newborn tree [m]

	FallocWood   float64 // fraction of NPP allocated to wood
	FallocCanopy float64 // fraction of NPP allocated to leaves

	BaseMortality float64 // maximum background mortality rate [yr⁻¹]

	NDDRadius      float64 // radius of the conspecific neighbourhood [m]
	NDDCoefficient float64 // mortality per unit conspecific basal area [yr⁻¹ (m² ha⁻¹)⁻¹]

	SeedsPerTree      int     // seeds produced per mature tree per timestep
	SeedAllocation    float64 // fraction of NPP allocated to seeds when seed output depends on NPP
	DormancyTimesteps int     // lifetime of a dormant seed [timesteps]

	TreefallVariability float64 // spread of the critical height for treefall
	TreefallDamage      float64 // multiplier of the height of a fallen tree that gives the damage it causes
}

// Options holds switches for optional model processes.
type Options struct {
	// FastGPP selects the single-evaluation crown assimilation
	// approximation instead of integrating over crown layers and hours.
	FastGPP bool

	// SeedTradeoff makes seed output proportional to NPP and seed mass
	// instead of fixed, and keeps seed counts instead of dormancy.
	SeedTradeoff bool

	// DensityDependence adds conspecific negative density dependent mortality.
	DensityDependence bool

	// Treefall enables mechanical treefall and the damage it causes.
	Treefall bool

	// UpdateNewborns also updates trees born during the current timestep.
	UpdateNewborns bool
}

// SpeciesParams holds the traits of one species as they appear in
// the parameter file.
type SpeciesParams struct {
	Name string

	LMA         float64 // leaf mass per area [g m⁻²]
	Nmass       float64 // leaf nitrogen concentration [g g⁻¹]
	Pmass       float64 // leaf phosphorus concentration [g g⁻¹]
	WoodDensity float64 // wood specific gravity [g cm⁻³]

	DMax float64 // maximum trunk diameter [m]
	HMax float64 // asymptotic height [m]
	AH   float64 // height-diameter half-saturation constant [m]

	SeedMass          float64 // [g]
	SeedRain          float64 // external seeds per hectare per timestep
	DispersalDistance float64 // mean seed dispersal distance [m]
}

// DailyCurves holds the hourly multipliers of the daily maximum light,
// vapour pressure deficit and temperature.
type DailyCurves struct {
	Light, VPD, T []float64
}

// DefaultPhysiology returns the default model-wide parameters.
func DefaultPhysiology() Physiology {
	return Physiology{
		KLight:              0.9,
		Phi:                 0.06,
		Theta:               0.7,
		G1:                  3.77,
		CAir:                400,
		LeafDensity0:        0.8,
		H0:                  1,
		FallocWood:          0.35,
		FallocCanopy:        0.25,
		BaseMortality:       0.035,
		NDDRadius:           5,
		NDDCoefficient:      0.01,
		SeedsPerTree:        10,
		SeedAllocation:      0.1,
		DormancyTimesteps:   12,
		TreefallVariability: 0.25,
		TreefallDamage:      1,
	}
}

// ReadParams decodes a TOML parameter file. Keys missing from the file
// keep their default values.
func ReadParams(r io.Reader) (*Params, error) {
	p := &Params{
		Run:        RunConfig{IterationsPerYear: 12, Seed: 1},
		Physiology: DefaultPhysiology(),
	}
	if _, err := toml.DecodeReader(r, p); err != nil {
		return nil, fmt.Errorf("sylva: reading parameters: %v", err)
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadParamsFile decodes the TOML parameter file at path.
func ReadParamsFile(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sylva: opening parameter file: %v", err)
	}
	defer f.Close()
	return ReadParams(f)
}

// check makes sure the parameters describe a valid simulation.
func (p *Params) check() error {
	if err := p.Grid.check(); err != nil {
		return err
	}
	if p.Run.NumIterations < 1 {
		return fmt.Errorf("sylva: NumIterations must be >= 1 but is %d", p.Run.NumIterations)
	}
	if p.Run.IterationsPerYear < 1 {
		return fmt.Errorf("sylva: IterationsPerYear must be >= 1 but is %d", p.Run.IterationsPerYear)
	}
	if len(p.Species) == 0 {
		return fmt.Errorf("sylva: no species are defined")
	}
	names := make(map[string]bool)
	for _, sp := range p.Species {
		if names[sp.Name] {
			return fmt.Errorf("sylva: species %q is defined more than once", sp.Name)
		}
		names[sp.Name] = true
		if err := sp.check(&p.Grid); err != nil {
			return err
		}
		if sp.HMax <= p.Physiology.H0 {
			return fmt.Errorf("sylva: species %q: HMax (%g) must exceed the newborn height H0 (%g)",
				sp.Name, sp.HMax, p.Physiology.H0)
		}
	}
	if err := p.Climate.check(); err != nil {
		return err
	}
	if _, err := p.Daily.diurnal(); err != nil {
		return err
	}
	ph := p.Physiology
	if ph.FallocWood+ph.FallocCanopy > 1 || ph.FallocWood < 0 || ph.FallocCanopy < 0 {
		return fmt.Errorf("sylva: invalid NPP allocation fractions %g (wood) and %g (canopy)",
			ph.FallocWood, ph.FallocCanopy)
	}
	if ph.KLight <= 0 || ph.LeafDensity0 <= 0 || ph.H0 <= 0 {
		return fmt.Errorf("sylva: KLight, LeafDensity0 and H0 must be > 0")
	}
	if p.Options.DensityDependence && !(ph.NDDRadius > 0) {
		return fmt.Errorf("sylva: NDDRadius must be > 0 with DensityDependence but is %g", ph.NDDRadius)
	}
	if !p.Options.SeedTradeoff && ph.DormancyTimesteps < 1 {
		return fmt.Errorf("sylva: DormancyTimesteps must be >= 1 but is %d", ph.DormancyTimesteps)
	}
	return nil
}

func (sp *SpeciesParams) check(g *GridConfig) error {
	if sp.Name == "" {
		return fmt.Errorf("sylva: species name is missing")
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"LMA", sp.LMA}, {"Nmass", sp.Nmass}, {"Pmass", sp.Pmass},
		{"DMax", sp.DMax}, {"HMax", sp.HMax}, {"AH", sp.AH}, {"SeedMass", sp.SeedMass},
	} {
		if !(v.val > 0) {
			return fmt.Errorf("sylva: species %q: %s must be > 0 but is %g", sp.Name, v.name, v.val)
		}
	}
	if !(sp.WoodDensity > 0 && sp.WoodDensity < 1.5) {
		return fmt.Errorf("sylva: species %q: WoodDensity must be in (0, 1.5) but is %g",
			sp.Name, sp.WoodDensity)
	}
	if sp.SeedRain < 0 || sp.DispersalDistance < 0 {
		return fmt.Errorf("sylva: species %q: SeedRain and DispersalDistance must not be negative", sp.Name)
	}
	if top := sp.HMax*g.NV + 1; top >= float64(g.Height) {
		return fmt.Errorf("sylva: species %q: crowns up to %g layers do not fit in Height=%d",
			sp.Name, top, g.Height)
	}
	return nil
}

// diurnal converts the hourly curves, which must each have
// fvcb.HoursPerDay points.
func (dc *DailyCurves) diurnal() (*fvcb.Diurnal, error) {
	d := new(fvcb.Diurnal)
	for _, c := range []struct {
		name string
		in   []float64
		out  *[fvcb.HoursPerDay]float64
	}{
		{"Light", dc.Light, &d.Light},
		{"VPD", dc.VPD, &d.VPD},
		{"T", dc.T, &d.T},
	} {
		if len(c.in) != fvcb.HoursPerDay {
			return nil, fmt.Errorf("sylva: daily %s curve has %d points; it must have %d",
				c.name, len(c.in), fvcb.HoursPerDay)
		}
		for i, v := range c.in {
			if v < 0 {
				return nil, fmt.Errorf("sylva: daily %s curve is negative at hour %d", c.name, i)
			}
			c.out[i] = v
		}
	}
	return d, nil
}
