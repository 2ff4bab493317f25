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

// Package fvcb implements the Farquhar-von Caemmerer-Berry (FvCB) model of
// leaf photosynthesis, with the temperature responses of its biochemical
// parameters precomputed into lookup tables.
package fvcb

import (
	"fmt"
	"math"
)

const (
	// NumBins is the number of tabulated temperatures.
	NumBins = 500

	// TMax is the upper bound of the tabulated temperature domain [°C].
	// The lower bound is 0 °C.
	TMax = 50.

	// TResolution is the width of one temperature bin [°C].
	TResolution = TMax / NumBins
)

// Response holds the temperature-dependent coefficients of the FvCB model
// for one temperature bin.
type Response struct {
	// Km is the Michaelis-Menten coefficient of Rubisco, normalized
	// by the ambient CO2 concentration.
	Km float64

	// Gamma is the CO2 compensation point in the absence of dark
	// respiration, normalized by the ambient CO2 concentration.
	Gamma float64

	// Vcmax and Jmax are multipliers of the maximum carboxylation rate
	// and maximum electron transport rate at 25 °C.
	Vcmax, Jmax float64

	Rdark  float64 // multiplier of leaf dark respiration at 25 °C
	Rstem  float64 // multiplier of stem respiration at 25 °C (Q10=2)
	Rnight float64 // multiplier of nighttime leaf respiration at 25 °C
}

// Tables holds Responses for temperatures in [0, TMax) °C at a
// resolution of TResolution.
type Tables struct {
	bins []Response
}

// NewTables computes the temperature lookup tables for an atmosphere
// with ambient CO2 concentration cAir [ppm].
func NewTables(cAir float64) (*Tables, error) {
	if !(cAir > 0) {
		return nil, fmt.Errorf("fvcb: ambient CO2 concentration must be > 0 but is %g", cAir)
	}
	iCair := 1. / cAir
	t := &Tables{bins: make([]Response, NumBins)}
	for i := range t.bins {
		temper := float64(i) * TResolution
		tK := temper + 273.15
		// Arrhenius-type scaling relative to 25 °C (Bernacchi et al. 2001).
		arr := (temper - 25.) / (298. * 0.00831 * (273. + temper))
		// Thermal acclimation of respiration (Atkin et al. 2015).
		rq10 := math.Exp((temper - 25.) * 0.1 * math.Log(3.09-0.0215*(25.+temper)))
		t.bins[i] = Response{
			Km:     404. * math.Exp(arr*59.36) * (1. + 210./248.*math.Exp(-arr*35.94)) * iCair,
			Gamma:  37. * math.Exp(arr*23.4) * iCair,
			Vcmax:  math.Exp(26.35 - 65.33/(0.00831*tK)),
			Jmax:   math.Exp(17.57 - 43.54/(0.00831*tK)),
			Rdark:  rq10,
			Rstem:  math.Exp((temper - 25.) / 10. * math.Ln2),
			Rnight: rq10,
		}
	}
	return t, nil
}

// Len returns the number of temperature bins.
func (t *Tables) Len() int { return len(t.bins) }

// Index returns the bin index for temperature tC [°C]. Temperatures
// outside of the tabulated domain are clamped to its bounds.
func (t *Tables) Index(tC float64) int {
	i := int(math.Floor(tC/TResolution + 1.e-9))
	if i < 0 || math.IsNaN(tC) {
		return 0
	}
	if i >= len(t.bins) {
		return len(t.bins) - 1
	}
	return i
}

// Lookup returns the Response for temperature tC [°C].
func (t *Tables) Lookup(tC float64) Response {
	return t.bins[t.Index(tC)]
}
