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
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialmodel/sylva"
)

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), sylva.Version) {
		t.Errorf("output %q does not contain the version", b.String())
	}
}

func TestVars(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs([]string{"vars"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"DBH", "GroundLAI", "SiteArea"} {
		if !strings.Contains(b.String(), v) {
			t.Errorf("variable %s is not listed", v)
		}
	}
}

func TestCheck(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	Cfg.Set("ParameterFile", "../testdata/params.toml")
	Cfg.Set("FieldDataFile", "../testdata/field.txt")
	defer Cfg.Set("FieldDataFile", "")
	Root.SetArgs([]string{"check"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "10×10 sites, 2 species, 3 trees") {
		t.Errorf("unexpected output %q", b.String())
	}
}

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "sylvautil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	prefix := filepath.Join(dir, "test")
	checkpoint := filepath.Join(dir, "test.gob")

	Root.SetOutput(ioutil.Discard)
	Cfg.Set("ParameterFile", "../testdata/params.toml")
	Cfg.Set("OutputPrefix", prefix)
	Cfg.Set("NumIterations", 5)
	Cfg.Set("NetCDFSnapshot", true)
	Cfg.Set("Checkpoint", checkpoint)
	defer func() {
		Cfg.Set("NumIterations", 0)
		Cfg.Set("NetCDFSnapshot", false)
		Cfg.Set("Checkpoint", "")
		Cfg.Set("OutputPrefix", "sylva")
	}()
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, suffix := range []string{".log", ".nc", ".gob", "_sites.txt", "_population.txt",
		"_mortality.txt", "_snapshot.txt", "_species.txt", "_dbh.txt", "_lai.txt"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}

	// Continue from the checkpoint up to 8 timesteps in total.
	Cfg.Set("Restart", checkpoint)
	Cfg.Set("NumIterations", 8)
	Cfg.Set("Checkpoint", "")
	Cfg.Set("Plots", true)
	defer Cfg.Set("Restart", "")
	defer Cfg.Set("Plots", false)
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, suffix := range []string{"_population.png", "_dbh.png", "_lai.png"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			t.Errorf("missing plot: %v", err)
		}
	}
	pop, err := ioutil.ReadFile(prefix + "_population.txt")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(pop)), "\n")
	if !strings.HasPrefix(lines[1], "6\t") || !strings.HasPrefix(lines[len(lines)-1], "8\t") {
		t.Errorf("restarted run should cover timesteps 6 to 8 but wrote %q to %q",
			lines[1], lines[len(lines)-1])
	}
}
