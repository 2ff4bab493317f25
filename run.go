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
	"time"

	"github.com/sirupsen/logrus"
)

// RebuildCanopy clears the leaf area grid, adds the crown of every
// living tree to it and finalizes it.
func RebuildCanopy() DomainManipulator {
	return func(s *Sylva) error {
		s.Canopy.Clear()
		before := s.Canopy.NegativeDensity()
		for site := range s.Trees {
			if err := s.Canopy.Accumulate(&s.Trees[site], site); err != nil {
				return err
			}
		}
		if n := s.Canopy.NegativeDensity() - before; n > 0 {
			s.logger().WithFields(logrus.Fields{
				"iteration": s.Iteration,
				"crowns":    n,
			}).Warn("sylva: skipped crowns with negative leaf density")
		}
		return s.Canopy.FinalizeTopDown()
	}
}

// SyncBorders exchanges the boundary rows of the grid between
// neighbouring domains. A simulation on a single domain has no
// neighbours, so it does nothing; it marks the point in the timestep
// at which a decomposed simulation would communicate.
func SyncBorders() DomainManipulator {
	return func(s *Sylva) error { return nil }
}

// IterationCheck returns a function that counts completed timesteps
// and sets s.Done after numIterations of them.
func IterationCheck(numIterations int) DomainManipulator {
	return func(s *Sylva) error {
		s.Iteration++
		if s.Iteration >= numIterations {
			s.Done = true
		}
		return nil
	}
}

// RestartCheck returns a function that sets s.Done if numIterations
// timesteps have already been completed, so that a simulation restored
// from the checkpoint of a finished run does not take another step.
// It belongs after the checkpoint is loaded in InitFuncs.
func RestartCheck(numIterations int) DomainManipulator {
	return func(s *Sylva) error {
		if s.Iteration >= numIterations {
			s.Done = true
			s.logger().WithFields(logrus.Fields{
				"iteration":  s.Iteration,
				"iterations": numIterations,
			}).Warn("sylva: checkpoint has already reached the requested number of timesteps")
		}
		return nil
	}
}

// Log returns a function that writes a summary of each timestep to
// logger.
func Log(logger logrus.FieldLogger) DomainManipulator {
	start := time.Now()
	return func(s *Sylva) error {
		d := s.Diagnostics
		if d == nil {
			return fmt.Errorf("sylva: no diagnostics to log; Aggregate must run before Log")
		}
		logger.WithFields(logrus.Fields{
			"iteration":  d.Iteration,
			"trees":      d.Total.Abundance,
			"trees10cm":  d.Total.Abundance10,
			"basal_area": fmt.Sprintf("%.3g", d.Total.BasalArea),
			"agb":        fmt.Sprintf("%.3g", d.Total.AGB),
			"lai":        fmt.Sprintf("%.3g", d.LAI),
			"births":     d.Births,
			"deaths":     d.Deaths(),
			"walltime":   time.Since(start).Round(time.Millisecond).String(),
		}).Info("sylva: timestep complete")
		return nil
	}
}

// DefaultRunFuncs returns the timestep sequence of a simulation of
// numIterations timesteps, logging a summary of each to logger.
func DefaultRunFuncs(numIterations int, logger logrus.FieldLogger) []DomainManipulator {
	return []DomainManipulator{
		SetEnvironment(),
		RebuildCanopy(),
		DisperseSeeds(),
		Germinate(),
		UpdateTrees(),
		Treefall(),
		AgeSeedBanks(),
		SyncBorders(),
		IterationCheck(numIterations),
		Aggregate(),
		Log(logger),
	}
}
