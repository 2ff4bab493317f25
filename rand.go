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
	"math"
	"math/rand"
)

// Rand is the source of all randomness in a simulation. A simulation
// run twice with the same seed gives identical results.
type Rand struct {
	r *rand.Rand
}

// NewRand returns a generator initialized with seed.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw in [0, 1).
func (r *Rand) Float64() float64 { return r.r.Float64() }

// Intn returns a uniform draw in [0, n).
func (r *Rand) Intn(n int) int { return r.r.Intn(n) }

// NormFloat64 returns a draw from the standard normal distribution.
func (r *Rand) NormFloat64() float64 { return r.r.NormFloat64() }

// Angle returns a uniform draw in [0, 2π).
func (r *Rand) Angle() float64 { return 2 * math.Pi * r.r.Float64() }

// Rayleigh returns a draw from the Rayleigh distribution whose mean
// is scale*√π/2.
func (r *Rand) Rayleigh(scale float64) float64 {
	// 1-U is in (0, 1], which keeps the logarithm finite.
	return scale * math.Sqrt(-math.Log(1-r.r.Float64()))
}

// Bernoulli returns true with probability p.
func (r *Rand) Bernoulli(p float64) bool { return r.r.Float64() < p }
