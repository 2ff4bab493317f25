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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// expand expands environment variables in s.
func expand(s string) string { return os.ExpandEnv(s) }

// checkParameterFile makes sure that a parameter file is specified and
// exists, and expands any environment variables in its path.
func checkParameterFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify a parameter file (for example: ParameterFile="params.toml")`)
	}
	f = expand(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("sylva: the ParameterFile doesn't exist: %v", err)
	}
	return f, nil
}

// checkOutputPrefix makes sure that the output prefix is specified and
// its directory exists, and expands any environment variables.
func checkOutputPrefix(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf(`you need to specify an output prefix (for example: OutputPrefix="results/sylva")`)
	}
	p = expand(p)
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		return p, fmt.Errorf("sylva: the OutputPrefix directory doesn't exist: %v", err)
	}
	return p, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[expand(k)] = expand(v)
	}
	return o, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputPrefix string) string {
	if logFile == "" {
		logFile = outputPrefix + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		return cast.ToStringMapString(v)
	case string:
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			panic(fmt.Errorf("invalid JSON for variable %s: %v", varName, err))
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
