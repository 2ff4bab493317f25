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
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// checkpoint is the saved state of a simulation.
type checkpoint struct {
	Iteration int
	Rows      int
	Cols      int
	Species   []string
	Trees     []Tree
	Seeds     [][]int
	Damage    []float64
}

// Save returns a function that writes the state of the simulation to w.
func Save(w io.Writer) DomainManipulator {
	return func(s *Sylva) error {
		c := checkpoint{
			Iteration: s.Iteration,
			Rows:      s.Params.Grid.Rows,
			Cols:      s.Params.Grid.Cols,
			Trees:     s.Trees,
			Damage:    s.hurt.Elements,
		}
		for _, sp := range s.Species {
			c.Species = append(c.Species, sp.Name)
			c.Seeds = append(c.Seeds, sp.Seeds)
		}
		if err := gob.NewEncoder(w).Encode(c); err != nil {
			return fmt.Errorf("sylva: saving checkpoint: %v", err)
		}
		return nil
	}
}

// SaveFile is Save to a new file at path. The checkpoint is compressed
// with zstd if path ends in ".zst".
func SaveFile(path string) DomainManipulator {
	return func(s *Sylva) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sylva: saving checkpoint: %v", err)
		}
		if !strings.HasSuffix(path, ".zst") {
			if err := Save(f)(s); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return fmt.Errorf("sylva: saving checkpoint: %v", err)
		}
		if err := Save(enc)(s); err != nil {
			enc.Close()
			f.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			f.Close()
			return fmt.Errorf("sylva: compressing checkpoint: %v", err)
		}
		return f.Close()
	}
}

// Load returns a function that restores a state previously written by
// Save into a simulation set up with the same grid and species.
func Load(r io.Reader) DomainManipulator {
	return func(s *Sylva) error {
		if s.Params == nil {
			return fmt.Errorf("sylva: checkpoint loaded before the simulation was set up")
		}
		var c checkpoint
		if err := gob.NewDecoder(r).Decode(&c); err != nil {
			return fmt.Errorf("sylva: loading checkpoint: %v", err)
		}
		if c.Rows != s.Params.Grid.Rows || c.Cols != s.Params.Grid.Cols {
			return fmt.Errorf("sylva: checkpoint grid is %d×%d but simulation grid is %d×%d",
				c.Rows, c.Cols, s.Params.Grid.Rows, s.Params.Grid.Cols)
		}
		if len(c.Species) != len(s.Species) {
			return fmt.Errorf("sylva: checkpoint has %d species but simulation has %d",
				len(c.Species), len(s.Species))
		}
		for i, name := range c.Species {
			if s.Species[i].Name != name {
				return fmt.Errorf("sylva: checkpoint species %d is %q but simulation species is %q",
					i, name, s.Species[i].Name)
			}
		}
		s.Iteration = c.Iteration
		s.Trees = c.Trees
		copy(s.hurt.Elements, c.Damage)
		s.NumTrees = 0
		for i, sp := range s.Species {
			copy(sp.Seeds, c.Seeds[i])
			sp.Count = 0
		}
		for site := range s.Trees {
			if t := &s.Trees[site]; t.Age > 0 {
				s.Species[t.Species].Count++
				s.NumTrees++
			}
		}
		return nil
	}
}

// LoadFile is Load from the file at path, which is decompressed if its
// name ends in ".zst".
func LoadFile(path string) DomainManipulator {
	return func(s *Sylva) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("sylva: loading checkpoint: %v", err)
		}
		defer f.Close()
		if !strings.HasSuffix(path, ".zst") {
			return Load(f)(s)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("sylva: loading checkpoint: %v", err)
		}
		defer dec.Close()
		return Load(dec)(s)
	}
}
