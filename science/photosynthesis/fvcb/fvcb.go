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

package fvcb

import (
	"fmt"
	"math"
)

// HoursPerDay is the number of points in a diurnal cycle.
const HoursPerDay = 24

// Leaf holds the photosynthetic capacity of the leaves of one species
// at 25 °C [µmol m⁻² s⁻¹].
type Leaf struct {
	Vcmax float64 // maximum rate of Rubisco carboxylation
	Jmax  float64 // maximum rate of electron transport
	Rdark float64 // dark respiration
}

// Model holds the model-wide FvCB parameters.
type Model struct {
	*Tables

	// Alpha is the apparent quantum yield of electron transport
	// [µmol e⁻ µmol⁻¹ photon].
	Alpha float64

	// Theta is the curvature of the light response of electron transport.
	Theta float64

	// G1 is the stomatal conductance slope parameter of Medlyn et al. (2011).
	G1 float64
}

// NewModel returns a Model for quantum yield of carbon assimilation phi,
// light response curvature theta, stomatal slope g1 and ambient
// CO2 concentration cAir [ppm].
func NewModel(phi, theta, g1, cAir float64) (*Model, error) {
	if !(theta > 0 && theta <= 1) {
		return nil, fmt.Errorf("fvcb: curvature theta must be in (0, 1] but is %g", theta)
	}
	if !(phi > 0) {
		return nil, fmt.Errorf("fvcb: quantum yield phi must be > 0 but is %g", phi)
	}
	t, err := NewTables(cAir)
	if err != nil {
		return nil, err
	}
	return &Model{
		Tables: t,
		Alpha:  4 * phi,
		Theta:  theta,
		G1:     g1,
	}, nil
}

// GPPLeaf returns the gross assimilation rate a and the day respiration
// rate rday [µmol CO2 m⁻² s⁻¹] of leaf l at photosynthetic photon flux
// density ppfd [µmol m⁻² s⁻¹], vapour pressure deficit vpd [kPa] and
// temperature tC [°C].
func (m *Model) GPPLeaf(l Leaf, ppfd, vpd, tC float64) (a, rday float64) {
	r := m.Lookup(tC)
	rday = l.Rdark * r.Rdark
	if ppfd <= 0 {
		return 0, rday
	}
	if vpd < 0 {
		vpd = 0
	}
	vcmax := l.Vcmax * r.Vcmax
	jmax := l.Jmax * r.Jmax

	// Intercellular to ambient CO2 ratio.
	fci := m.G1 / (m.G1 + math.Sqrt(vpd))

	i := m.Alpha * ppfd
	j := (i + jmax - math.Sqrt((jmax+i)*(jmax+i)-4*m.Theta*jmax*i)) * 0.5 / m.Theta

	a = math.Min(vcmax/(fci+r.Km), 0.25*j/(fci+2*r.Gamma)) * (fci - r.Gamma)
	return a, rday
}

// Diurnal holds the 24 hourly multipliers that distribute the daily
// maxima of light, vapour pressure deficit and temperature over one day.
type Diurnal struct {
	Light [HoursPerDay]float64
	VPD   [HoursPerDay]float64
	T     [HoursPerDay]float64
}

// MeanLight returns the daily mean of the light multipliers.
func (d *Diurnal) MeanLight() float64 {
	var s float64
	for _, v := range d.Light {
		s += v
	}
	return s / HoursPerDay
}

// DaylightFraction returns the fraction of hours with nonzero light.
func (d *Diurnal) DaylightFraction() float64 {
	var n int
	for _, v := range d.Light {
		if v > 0 {
			n++
		}
	}
	return float64(n) / HoursPerDay
}

// minPPFD is the hourly light below which assimilation is skipped.
const minPPFD = 0.1

// DailyGPPLeaf returns the daily mean assimilation and day respiration
// rates of leaf l, integrating GPPLeaf over the diurnal cycle d
// from the daily maximum light ppfd, vapour pressure deficit vpd and
// temperature tC.
func (m *Model) DailyGPPLeaf(l Leaf, d *Diurnal, ppfd, vpd, tC float64) (a, rday float64) {
	for h := 0; h < HoursPerDay; h++ {
		p := ppfd * d.Light[h]
		if p <= minPPFD {
			continue
		}
		ah, rh := m.GPPLeaf(l, p, vpd*d.VPD[h], tC*d.T[h])
		a += ah
		rday += rh
	}
	return a / HoursPerDay, rday / HoursPerDay
}

// crownNodes and crownWeights are the three-point Gauss-Legendre rule
// on [0, 1], applied to the fraction of crown leaf area above a leaf.
var (
	crownNodes   = [3]float64{0.5 - 0.5*math.Sqrt(0.6), 0.5, 0.5 + 0.5*math.Sqrt(0.6)}
	crownWeights = [3]float64{5. / 18, 8. / 18, 5. / 18}
)

// FastDailyGPPLeaf returns the daily mean assimilation and day
// respiration rates per unit leaf area of a crown holding crownLAI units
// of leaf area per unit ground area, from the daily maximum light ppfd,
// vapour pressure deficit vpd and temperature tC at the top of the crown.
// Light decays as exp(-k·L) with the crown leaf area L above a leaf. The
// mean over the crown is taken at three depths whatever the size of the
// crown, so the cost of a tree does not grow with its crown.
func (m *Model) FastDailyGPPLeaf(l Leaf, d *Diurnal, ppfd, vpd, tC, k, crownLAI float64) (a, rday float64) {
	x := k * crownLAI
	if x < 1.e-3 {
		return m.DailyGPPLeaf(l, d, ppfd*math.Exp(-0.5*x), vpd, tC)
	}
	for i, z := range crownNodes {
		ai, ri := m.DailyGPPLeaf(l, d, ppfd*math.Exp(-x*z), vpd, tC)
		a += crownWeights[i] * ai
		rday += crownWeights[i] * ri
	}
	return a, rday
}
