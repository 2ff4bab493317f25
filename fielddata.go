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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoadFieldData returns a function that places the trees listed in r
// on the grid. Each line holds the column and row of a tree in metres,
// its dbh in metres and its species name, separated by white space.
// Blank lines, lines starting with '#' and a header, which is the first
// other line if it does not start with three numbers, are skipped,
// as are trees outside of the grid, trees of unknown species and trees
// at occupied sites; each skipped tree is logged. A comment line
// "# unit=cm" declares that the diameters that follow are in
// centimetres.
func LoadFieldData(r io.Reader) DomainManipulator {
	return func(s *Sylva) error {
		if s.Params == nil {
			return fmt.Errorf("sylva: field data loaded before the simulation was set up")
		}
		species := make(map[string]int, len(s.Species))
		for i, sp := range s.Species {
			species[sp.Name] = i
		}
		log := s.logger()
		g := &s.Params.Grid
		var loaded, skipped int
		dbhScale := 1.
		first := true
		scanner := bufio.NewScanner(r)
		for line := 1; scanner.Scan(); line++ {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if strings.HasPrefix(text, "#") {
				switch strings.ToLower(strings.Join(strings.Fields(text[1:]), "")) {
				case "unit=cm":
					dbhScale = 0.01
				case "unit=m":
					dbhScale = 1
				}
				continue
			}
			header := first
			first = false
			fields := strings.Fields(text)
			x, y, dbh, err := parseFieldTree(fields)
			if err != nil {
				if header {
					continue
				}
				return fmt.Errorf("sylva: field data line %d: %v", line, err)
			}
			skip := func(reason string) {
				skipped++
				log.WithFields(logrus.Fields{"line": line, "reason": reason}).Warn("sylva: skipping field data tree")
			}
			sp, ok := species[fields[3]]
			if !ok {
				skip("unknown species " + fields[3])
				continue
			}
			site, ok := g.Site(g.cells(x), g.cells(y))
			if !ok || x < 0 || y < 0 {
				skip("outside of the grid")
				continue
			}
			if s.Trees[site].Age > 0 {
				skip("site is occupied")
				continue
			}
			if err := s.BirthFromData(sp, site, dbh*dbhScale); err != nil {
				return fmt.Errorf("sylva: field data line %d: %v", line, err)
			}
			loaded++
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("sylva: reading field data: %v", err)
		}
		log.WithFields(logrus.Fields{"loaded": loaded, "skipped": skipped}).Info("sylva: loaded field data")
		return nil
	}
}

// parseFieldTree returns the position and diameter in a field data
// record.
func parseFieldTree(fields []string) (x, y, dbh float64, err error) {
	if len(fields) < 4 {
		return 0, 0, 0, fmt.Errorf("%d fields; 4 are needed", len(fields))
	}
	var v [3]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid number %q", fields[i])
		}
	}
	return v[0], v[1], v[2], nil
}

// LoadFieldDataFile is LoadFieldData for the file at path.
func LoadFieldDataFile(path string) DomainManipulator {
	return func(s *Sylva) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("sylva: opening field data: %v", err)
		}
		defer f.Close()
		return LoadFieldData(f)(s)
	}
}
