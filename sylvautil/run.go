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

package sylvautil

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sylva"
	"github.com/spf13/cobra"
)

// newLogger returns a logger that writes to both the command output
// and w.
func newLogger(cmd *cobra.Command, w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("sylva: invalid LogLevel: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), w)
	log.Level = lvl
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	}
	return log, nil
}

// Run runs a simulation.
//
// cmd is the cobra.Command instance where Run is called from.
//
// logFile is the path to the desired logfile location, and logLevel
// the minimum severity of logged messages.
//
// paramFile is the path to the TOML parameter file.
//
// fieldData is the path to a file of trees to place before the
// simulation starts. It is ignored if blank.
//
// outputPrefix is prepended to the names of the output files.
//
// outputVariables specifies the per-site variables written at the end
// of the simulation.
//
// If numIterations or seed are not zero they override the values in
// the parameter file.
//
// If netCDF is true, the final state is also written as a NetCDF file.
// If plots is true, the reports are also drawn as PNG images.
//
// checkpoint and restart are the paths of a checkpoint to save at the
// end of the simulation and to continue from. They are ignored if blank.
func Run(cmd *cobra.Command, logFile, logLevel, paramFile, fieldData, outputPrefix string,
	outputVariables map[string]string, numIterations int, seed int64, netCDF, plots bool,
	checkpoint, restart string) error {

	startTime := time.Now()

	logfile, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("sylva: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log, err := newLogger(cmd, logfile, logLevel)
	if err != nil {
		return err
	}

	p, err := sylva.ReadParamsFile(paramFile)
	if err != nil {
		return err
	}
	if numIterations != 0 {
		p.Run.NumIterations = numIterations
	}
	if seed != 0 {
		p.Run.Seed = seed
	}

	o, err := sylva.NewOutputter(outputPrefix+"_sites.txt", outputVariables, nil)
	if err != nil {
		return err
	}
	var reporter sylva.Reporter
	reporter, err = sylva.NewTextReporter(outputPrefix)
	if err != nil {
		return err
	}
	if plots {
		reporter = sylva.MultiReporter{reporter, sylva.NewPlotReporter(outputPrefix)}
	}

	initFuncs := []sylva.DomainManipulator{sylva.Setup(p), o.CheckOutputVars()}
	if fieldData != "" {
		initFuncs = append(initFuncs, sylva.LoadFieldDataFile(fieldData))
	}
	if restart != "" {
		initFuncs = append(initFuncs, sylva.LoadFile(restart), sylva.RestartCheck(p.Run.NumIterations))
	}

	runFuncs := append(sylva.DefaultRunFuncs(p.Run.NumIterations, log), sylva.Report(reporter))

	cleanupFuncs := []sylva.DomainManipulator{
		sylva.RebuildCanopy(),
		sylva.Aggregate(),
		sylva.FinalReport(reporter),
		o.Output(),
	}
	if netCDF {
		cleanupFuncs = append(cleanupFuncs, sylva.NetCDFSnapshot(outputPrefix+".nc"))
	}
	if checkpoint != "" {
		cleanupFuncs = append(cleanupFuncs, sylva.SaveFile(checkpoint))
	}

	s := &sylva.Sylva{
		InitFuncs:    initFuncs,
		RunFuncs:     runFuncs,
		CleanupFuncs: cleanupFuncs,
		Logger:       log,
	}
	if err := s.Init(); err != nil {
		reporter.Close()
		return err
	}
	if err := s.Run(); err != nil {
		reporter.Close()
		return err
	}
	if err := s.Cleanup(); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"iterations": s.Iteration,
		"trees":      s.NumTrees,
		"walltime":   time.Since(startTime).Round(time.Millisecond).String(),
	}).Info("sylva: simulation complete")
	return nil
}

// Check sets up a simulation from paramFile, fieldData and
// outputVariables without running it.
func Check(cmd *cobra.Command, paramFile, fieldData string, outputVariables map[string]string) error {
	p, err := sylva.ReadParamsFile(paramFile)
	if err != nil {
		return err
	}
	o, err := sylva.NewOutputter("", outputVariables, nil)
	if err != nil {
		return err
	}
	log := logrus.New()
	log.Out = cmd.OutOrStdout()
	s := &sylva.Sylva{
		InitFuncs: []sylva.DomainManipulator{sylva.Setup(p), o.CheckOutputVars()},
		Logger:    log,
	}
	if fieldData != "" {
		s.InitFuncs = append(s.InitFuncs, sylva.LoadFieldDataFile(fieldData))
	}
	if err := s.Init(); err != nil {
		return err
	}
	cmd.Printf("configuration is valid: %d×%d sites, %d species, %d trees\n",
		p.Grid.Rows, p.Grid.Cols, len(s.Species), s.NumTrees)
	return nil
}
