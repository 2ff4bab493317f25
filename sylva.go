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

// Package sylva is an individual-based forest growth simulator. Trees
// occupy the sites of a regular grid, intercept light in a
// three-dimensional leaf area grid, assimilate carbon according to the
// FvCB photosynthesis model, grow, disperse seeds and die.
package sylva

import (
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/sylva/science/photosynthesis/fvcb"
)

// Version gives the version number.
const Version = "1.0.0"

var (
	// ErrOccupied is returned when a tree is placed on an occupied site.
	ErrOccupied = errors.New("sylva: site is already occupied")

	// ErrEmpty is returned when an operation requires a living tree
	// at an empty site.
	ErrEmpty = errors.New("sylva: site is empty")

	// ErrBadSite is returned for site indices outside of the grid.
	ErrBadSite = errors.New("sylva: site is outside of the grid")
)

// Sylva holds the current state of a simulation.
type Sylva struct {
	// Params holds the simulation parameters.
	Params *Params

	// Species holds the species in the order of the parameter file.
	Species []*Species

	// Trees holds one entry per site. Empty sites have Age == 0.
	Trees []Tree

	// NumTrees is the number of living trees.
	NumTrees int

	Canopy *Canopy

	// Env holds the climate forcing of the current timestep.
	Env Environment

	// Iteration is the number of completed timesteps.
	Iteration int

	// Diagnostics holds the statistics of the last completed timestep.
	Diagnostics *Diagnostics

	// Done is set to true when the simulation is finished.
	Done bool

	// InitFuncs are functions to be called in the given order
	// at the beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order repeatedly
	// until "Done" is true. Therefore, at least one of the functions
	// should set "Done" to true, or the simulation will run forever.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be called in the given order
	// after the simulation has completed.
	CleanupFuncs []DomainManipulator

	// Logger receives progress messages. The standard logrus
	// logger is used if it is nil.
	Logger logrus.FieldLogger

	rand    *Rand
	model   *fvcb.Model
	micro   *microclimate
	diurnal *fvcb.Diurnal

	// hurt holds the treefall damage received at each site during
	// the previous timestep, and hurtNext the damage being received
	// during the current one [m].
	hurt, hurtNext *sparse.DenseArray

	events events
}

// events counts what happened during the current timestep.
type events struct {
	births, deathsNatural, deathsNDD, deathsTreefall, deathsDamage int
	growths, falls, germinationsFailed                             int
	seedsDispersed, seedsLost                                      int
}

// DomainManipulator is a class of functions that operate on the entire
// simulation.
type DomainManipulator func(s *Sylva) error

// Init initializes the simulation by running s.InitFuncs.
func (s *Sylva) Init() error {
	for _, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running s.RunFuncs until s.Done
// is true.
func (s *Sylva) Run() error {
	if s.Params == nil {
		return fmt.Errorf("sylva: the simulation has not been set up")
	}
	for !s.Done {
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running s.CleanupFuncs.
func (s *Sylva) Cleanup() error {
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// logger returns s.Logger or the standard logger.
func (s *Sylva) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

// Setup returns a function that builds the simulation described by p:
// it allocates the grids, derives the species parameters and seeds the
// random number generator. It fails without side effects if p is
// inconsistent.
func Setup(p *Params) DomainManipulator {
	return func(s *Sylva) error {
		if err := p.check(); err != nil {
			return err
		}
		canopy, err := NewCanopy(&p.Grid)
		if err != nil {
			return err
		}
		ph := &p.Physiology
		model, err := fvcb.NewModel(ph.Phi, ph.Theta, ph.G1, ph.CAir)
		if err != nil {
			return fmt.Errorf("sylva: %v", err)
		}
		diurnal, err := p.Daily.diurnal()
		if err != nil {
			return err
		}
		s.Params = p
		s.Canopy = canopy
		s.model = model
		s.diurnal = diurnal
		s.micro = newMicroclimate(ph.KLight)
		s.rand = NewRand(p.Run.Seed)
		s.hurt = sparse.ZerosDense(p.Grid.Rows, p.Grid.Cols)
		s.hurtNext = sparse.ZerosDense(p.Grid.Rows, p.Grid.Cols)
		s.Species = make([]*Species, len(p.Species))
		for i, sp := range p.Species {
			s.Species[i] = newSpecies(sp, p)
		}
		s.Trees = make([]Tree, p.Grid.Sites())
		for i := range s.Trees {
			s.Trees[i].Species = NoSpecies
		}
		s.NumTrees = 0
		s.Iteration = 0
		s.Done = false
		s.logger().WithFields(logrus.Fields{
			"rows":    p.Grid.Rows,
			"cols":    p.Grid.Cols,
			"species": len(s.Species),
			"seed":    p.Run.Seed,
		}).Info("sylva: simulation set up")
		return nil
	}
}

// checkSite returns ErrBadSite if site is not within the grid.
func (s *Sylva) checkSite(site int) error {
	if site < 0 || site >= len(s.Trees) {
		return ErrBadSite
	}
	return nil
}
