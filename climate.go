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

// Climate holds the climate forcing as one value per period. The
// periods repeat cyclically, so twelve values with monthly timesteps
// describe a mean annual cycle.
type Climate struct {
	Temperature         []float64 // mean temperature [°C]
	DailyMaxTemperature []float64 // [°C]
	NightTemperature    []float64 // mean nighttime temperature [°C]

	MaxIrradiance  []float64 // daily maximum irradiance [W m⁻²]
	MeanIrradiance []float64 // daily mean irradiance [W m⁻²]

	SaturatedVaporPressure []float64 // at the mean temperature [kPa]
	VaporPressure          []float64 // [kPa]

	// Rainfall [mm] and WindSpeed [m s⁻¹] are optional and only
	// reported.
	Rainfall  []float64
	WindSpeed []float64
}

// Environment holds the forcing at the top of the canopy during one
// timestep.
type Environment struct {
	Period int

	Wmax, Wmean float64 // photosynthetic photon flux density [µmol m⁻² s⁻¹]

	Tmax, Tmean, Tnight float64 // [°C]

	VPDmax, VPDmean float64 // vapour pressure deficit [kPa]

	Rain, Wind float64
}

// ppfdPerWatt converts irradiance [W m⁻²] into photosynthetic photon
// flux density [µmol m⁻² s⁻¹].
const ppfdPerWatt = 2.27

func (c *Climate) check() error {
	n := len(c.Temperature)
	if n == 0 {
		return fmt.Errorf("sylva: climate forcing has no periods")
	}
	for _, v := range []struct {
		name     string
		vals     []float64
		optional bool
	}{
		{"DailyMaxTemperature", c.DailyMaxTemperature, false},
		{"NightTemperature", c.NightTemperature, false},
		{"MaxIrradiance", c.MaxIrradiance, false},
		{"MeanIrradiance", c.MeanIrradiance, false},
		{"SaturatedVaporPressure", c.SaturatedVaporPressure, false},
		{"VaporPressure", c.VaporPressure, false},
		{"Rainfall", c.Rainfall, true},
		{"WindSpeed", c.WindSpeed, true},
	} {
		if v.optional && len(v.vals) == 0 {
			continue
		}
		if len(v.vals) != n {
			return fmt.Errorf("sylva: climate variable %s has %d periods; Temperature has %d",
				v.name, len(v.vals), n)
		}
	}
	for i := 0; i < n; i++ {
		if c.MaxIrradiance[i] < 0 || c.MeanIrradiance[i] < 0 {
			return fmt.Errorf("sylva: negative irradiance in climate period %d", i)
		}
	}
	return nil
}

// saturatedVaporPressure returns the saturated vapour pressure [kPa]
// at temperature t [°C] (Tetens 1930).
func saturatedVaporPressure(t float64) float64 {
	return 0.6108 * math.Exp(17.27*t/(t+237.3))
}

// Environment returns the forcing during the given timestep.
func (c *Climate) Environment(iteration int) Environment {
	p := iteration % len(c.Temperature)
	e := Environment{
		Period:  p,
		Wmax:    c.MaxIrradiance[p] * ppfdPerWatt,
		Wmean:   c.MeanIrradiance[p] * ppfdPerWatt,
		Tmax:    c.DailyMaxTemperature[p],
		Tmean:   c.Temperature[p],
		Tnight:  c.NightTemperature[p],
		VPDmean: math.Max(0, c.SaturatedVaporPressure[p]-c.VaporPressure[p]),
	}
	e.VPDmax = math.Max(e.VPDmean, saturatedVaporPressure(e.Tmax)-c.VaporPressure[p])
	if len(c.Rainfall) > 0 {
		e.Rain = c.Rainfall[p]
	}
	if len(c.WindSpeed) > 0 {
		e.Wind = c.WindSpeed[p]
	}
	return e
}

// SetEnvironment sets the climate forcing for the current timestep and
// resets the per-timestep event counters.
func SetEnvironment() DomainManipulator {
	return func(s *Sylva) error {
		s.Env = s.Params.Climate.Environment(s.Iteration)
		s.events = events{}
		return nil
	}
}
