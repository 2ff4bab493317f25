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
	"os"
	"reflect"
	"testing"

	"github.com/lnashier/viper"
)

func TestCheckParameterFile(t *testing.T) {
	if _, err := checkParameterFile(""); err == nil {
		t.Error("expected an error for a blank path")
	}
	if _, err := checkParameterFile("../testdata/missing.toml"); err == nil {
		t.Error("expected an error for a missing file")
	}
	os.Setenv("SYLVA_TEST_DIR", "../testdata")
	defer os.Unsetenv("SYLVA_TEST_DIR")
	f, err := checkParameterFile("${SYLVA_TEST_DIR}/params.toml")
	if err != nil {
		t.Fatal(err)
	}
	if f != "../testdata/params.toml" {
		t.Errorf("path %q was not expanded", f)
	}
}

func TestCheckOutputPrefix(t *testing.T) {
	if _, err := checkOutputPrefix(""); err == nil {
		t.Error("expected an error for a blank prefix")
	}
	if _, err := checkOutputPrefix("no/such/dir/out"); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if _, err := checkOutputPrefix("out"); err != nil {
		t.Error(err)
	}
}

func TestCheckOutputVars(t *testing.T) {
	if _, err := checkOutputVars(nil); err == nil {
		t.Error("expected an error for no variables")
	}
	have, err := checkOutputVars(map[string]string{"A": "DBH\r\n+ Height\n* 2"})
	if err != nil {
		t.Fatal(err)
	}
	if want := map[string]string{"A": "DBH + Height * 2"}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCheckLogFile(t *testing.T) {
	if f := checkLogFile("", "results/x"); f != "results/x.log" {
		t.Errorf("default log file %q", f)
	}
	if f := checkLogFile("a.log", "results/x"); f != "a.log" {
		t.Errorf("log file %q", f)
	}
}

func TestGetStringMapString(t *testing.T) {
	want := map[string]string{"DBH": "cm(DBH)"}
	cfg := viper.New()
	for name, v := range map[string]interface{}{
		"map":       want,
		"interface": map[string]interface{}{"DBH": "cm(DBH)"},
		"json":      `{"DBH":"cm(DBH)"}`,
	} {
		cfg.Set("v", v)
		if have := GetStringMapString("v", cfg); !reflect.DeepEqual(have, want) {
			t.Errorf("%s: have %v, want %v", name, have, want)
		}
	}
}
