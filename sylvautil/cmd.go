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

// Package sylvautil contains the command-line interface to Sylva.
package sylvautil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/sylva"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Sylva.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ParameterFile",
			usage: `
              ParameterFile is the path to the TOML file holding the grid,
              species, climate and physiology parameters. It can contain
              environment variables.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), checkCmd.Flags()},
		},
		{
			name: "FieldDataFile",
			usage: `
              FieldDataFile is the path to an optional file listing trees
              to place on the grid before the simulation starts, one per
              line as "x y dbh species" with x, y and dbh in metres.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), checkCmd.Flags()},
		},
		{
			name: "OutputPrefix",
			usage: `
              OutputPrefix is prepended to the names of all output files.
              Its directory must exist.`,
			shorthand:  "o",
			defaultVal: "sylva",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumIterations",
			usage: `
              NumIterations is the number of timesteps to simulate. If it is
              0, the value in the parameter file is used.`,
			shorthand:  "n",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Seed",
			usage: `
              Seed initializes the random number generator. If it is 0, the
              value in the parameter file is used.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved as OutputPrefix.log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of logged messages: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which per-site variables should be
              written to OutputPrefix_sites.txt at the end of the simulation,
              as a map of output names to expressions of model variables.
              It is specified as a JSON object on the command line.`,
			defaultVal: map[string]string{
				"DBH":    "cm(DBH)",
				"Height": "Height",
				"LAI":    "GroundLAI",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags(), checkCmd.Flags()},
		},
		{
			name: "NetCDFSnapshot",
			usage: `
              NetCDFSnapshot specifies whether to write the final state of
              the forest to OutputPrefix.nc.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Plots",
			usage: `
              Plots specifies whether to draw the population history, the
              final diameter distribution and the final leaf area profile as
              PNG images starting with OutputPrefix.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Checkpoint",
			usage: `
              Checkpoint is the path where the final state of the simulation
              is saved so that it can be restarted later. If it is blank no
              checkpoint is saved.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Restart",
			usage: `
              Restart is the path to a checkpoint from which to continue a
              previous simulation with the same parameter file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SYLVA")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, v, option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				if option.shorthand == "" {
					set.String(option.name, b.String(), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, b.String(), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(checkCmd)
	Root.AddCommand(varsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sylva: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sylva",
	Short: "An individual-based forest growth simulator.",
	Long: `Sylva simulates the growth, reproduction and death of individual trees
competing for light in a three-dimensional canopy.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SYLVA_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Sylva.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Sylva v%s\n", sylva.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	Long: `run reads the parameter file, optionally places the trees listed in the
field data file, simulates the requested number of timesteps and writes
the results to files starting with OutputPrefix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paramFile, err := checkParameterFile(Cfg.GetString("ParameterFile"))
		if err != nil {
			return err
		}
		prefix, err := checkOutputPrefix(Cfg.GetString("OutputPrefix"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		return Run(
			cmd,
			checkLogFile(expand(Cfg.GetString("LogFile")), prefix),
			Cfg.GetString("LogLevel"),
			paramFile,
			expand(Cfg.GetString("FieldDataFile")),
			prefix,
			outputVars,
			Cfg.GetInt("NumIterations"),
			int64(Cfg.GetInt("Seed")),
			Cfg.GetBool("NetCDFSnapshot"),
			Cfg.GetBool("Plots"),
			expand(Cfg.GetString("Checkpoint")),
			expand(Cfg.GetString("Restart")),
		)
	},
	DisableAutoGenTag: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration.",
	Long: `check reads the parameter file, field data and output variables and
reports any problems without running a simulation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paramFile, err := checkParameterFile(Cfg.GetString("ParameterFile"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		return Check(cmd, paramFile, expand(Cfg.GetString("FieldDataFile")), outputVars)
	},
	DisableAutoGenTag: true,
}

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "List the variables available for output.",
	Long: `vars lists the per-site model variables that can be used in
OutputVariables expressions.`,
	Run: func(cmd *cobra.Command, args []string) {
		names, descriptions, units := sylva.OutputOptions()
		for i, n := range names {
			cmd.Printf("%-12s %s [%s]\n", n, descriptions[i], units[i])
		}
	},
	DisableAutoGenTag: true,
}
