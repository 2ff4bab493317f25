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
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// siteVariable returns the value of a model variable at one site.
type siteVariable struct {
	desc, units string
	f           func(s *Sylva, site int) float64
}

func treeVar(desc, units string, f func(t *Tree) float64) siteVariable {
	return siteVariable{desc: desc, units: units, f: func(s *Sylva, site int) float64 {
		t := &s.Trees[site]
		if t.Age == 0 {
			return 0
		}
		return f(t)
	}}
}

// modelVariables are the per-site variables available to output
// expressions.
var modelVariables = map[string]siteVariable{
	"Occupied": treeVar("Whether a tree is present", "0 or 1", func(*Tree) float64 { return 1 }),
	"Species": {"Species index", "-", func(s *Sylva, site int) float64 {
		return float64(s.Trees[site].Species)
	}},
	"Age":         treeVar("Tree age", "timesteps", func(t *Tree) float64 { return float64(t.Age) }),
	"DBH":         treeVar("Trunk diameter", "m", func(t *Tree) float64 { return t.DBH }),
	"Height":      treeVar("Tree height", "m", func(t *Tree) float64 { return t.Height }),
	"CrownRadius": treeVar("Crown radius", "m", func(t *Tree) float64 { return t.CrownRadius }),
	"CrownDepth":  treeVar("Crown depth", "m", func(t *Tree) float64 { return t.CrownDepth }),
	"LeafDensity": treeVar("Crown leaf area density", "m²/m³", func(t *Tree) float64 { return t.LeafDensity }),
	"LeafArea":    treeVar("Leaf area", "m²", func(t *Tree) float64 { return t.LeafArea() }),
	"BasalArea":   treeVar("Trunk basal area", "m²", func(t *Tree) float64 { return t.BasalArea() }),
	"GPP":         treeVar("Gross primary production", "g C/timestep", func(t *Tree) float64 { return t.GPP }),
	"NPP":         treeVar("Net primary production", "g C/timestep", func(t *Tree) float64 { return t.NPP }),
	"Rday":        treeVar("Daytime leaf respiration", "g C/timestep", func(t *Tree) float64 { return t.Rday }),
	"Rnight":      treeVar("Nighttime leaf respiration", "g C/timestep", func(t *Tree) float64 { return t.Rnight }),
	"Rstem":       treeVar("Stem respiration", "g C/timestep", func(t *Tree) float64 { return t.Rstem }),
	"Litter":      treeVar("Leaf litter", "g/timestep", func(t *Tree) float64 { return t.Litter }),
	"PPFD":        treeVar("Light at the top of the crown", "µmol/m²/s", func(t *Tree) float64 { return t.PPFD }),
	"AGB": {"Aboveground biomass", "kg", func(s *Sylva, site int) float64 {
		t := &s.Trees[site]
		if t.Age == 0 {
			return 0
		}
		return abovegroundBiomass(t.DBH, t.Height, s.Species[t.Species].WoodDensity)
	}},
	"GroundLAI": {"Leaf area index above the ground", "m²/m²", func(s *Sylva, site int) float64 {
		return s.Canopy.At(site, 0)
	}},
	"GroundLight": {"Light reaching the ground", "µmol/m²/s", func(s *Sylva, site int) float64 {
		return s.groundLight(site)
	}},
	"Seeds": {"Seeds of all species", "-", func(s *Sylva, site int) float64 {
		var n int
		for _, sp := range s.Species {
			n += sp.Seeds[site]
		}
		return float64(n)
	}},
	"Damage":   {"Treefall damage", "m", func(s *Sylva, site int) float64 { return s.Damage(site) }},
	"SiteArea": {"Ground area of a site", "m²", func(s *Sylva, _ int) float64 { return s.Params.Grid.SiteArea() }},
}

// OutputOptions returns the names, descriptions and units of the
// variables available to output expressions.
func OutputOptions() (names, descriptions, units []string) {
	for n := range modelVariables {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		descriptions = append(descriptions, modelVariables[n].desc)
		units = append(units, modelVariables[n].units)
	}
	return
}

// Outputter evaluates output expressions at every site and writes the
// results.
//
// outputVariables maps the names of the variables for which data
// should be returned to expressions that define how the requested data
// should be calculated. Expressions can use the model variables listed
// by OutputOptions, other output variables and functions.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

func oneArg(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("sylva: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("sylva: argument of function '%s' is not a number", name)
		}
		return f(v), nil
	}
}

var outputNameRegexp = regexp.MustCompile(`^[A-Za-z]\w*$`)

// NewOutputter initializes a new Outputter and adds a set of default
// output functions:
//
// 'exp(x)', 'log(x)' and 'sqrt(x)', which apply the corresponding
// mathematical functions;
//
// 'cm(x)', which converts metres to centimetres.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":  oneArg("exp", math.Exp),
		"log":  oneArg("log", math.Log),
		"sqrt": oneArg("sqrt", math.Sqrt),
		"cm":   oneArg("cm", func(x float64) float64 { return x * 100 }),
	}
	for k, v := range outputFunctions {
		funcs[k] = v
	}
	o := &Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		expressions:     make(map[string]*govaluate.EvaluableExpression),
		outputFunctions: funcs,
	}
	for k, v := range outputVariables {
		if !outputNameRegexp.MatchString(k) {
			return nil, fmt.Errorf("sylva: output variable name '%s' includes unsupported characters", k)
		}
		o.outputVariables[k] = v
	}
	if err := o.expandDerivatives(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for k, v := range o.outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(v, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("sylva: output variable '%s': %v", k, err)
		}
		o.expressions[k] = e
		for _, mv := range e.Vars() {
			if !seen[mv] {
				seen[mv] = true
				o.modelVariables = append(o.modelVariables, mv)
			}
		}
	}
	sort.Strings(o.modelVariables)
	return o, nil
}

// expandDerivatives replaces references to other output variables
// within expressions by the expressions that define them. Output
// variables named after model variables are not substituted: in
// expressions such names always refer to the model variable.
func (o *Outputter) expandDerivatives() error {
	patterns := make(map[string]*regexp.Regexp)
	for k := range o.outputVariables {
		if _, ok := modelVariables[k]; ok {
			continue
		}
		patterns[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
	}
	for pass := 0; ; pass++ {
		if pass > len(o.outputVariables) {
			return fmt.Errorf("sylva: output variables are defined in terms of each other")
		}
		changed := false
		for k, v := range o.outputVariables {
			for other, re := range patterns {
				if other == k {
					continue
				}
				nv := re.ReplaceAllLiteralString(v, "("+o.outputVariables[other]+")")
				if nv != v {
					v = nv
					changed = true
				}
			}
			o.outputVariables[k] = v
		}
		if !changed {
			return nil
		}
	}
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(s *Sylva) error {
		for _, v := range o.modelVariables {
			if _, ok := modelVariables[v]; !ok {
				return fmt.Errorf("sylva: undefined variable name '%s'", v)
			}
		}
		return nil
	}
}

// Results evaluates every output variable at every site.
func (o *Outputter) Results(s *Sylva) (map[string][]float64, error) {
	n := len(s.Trees)
	vals := make(map[string][]float64, len(o.modelVariables))
	for _, v := range o.modelVariables {
		mv, ok := modelVariables[v]
		if !ok {
			return nil, fmt.Errorf("sylva: undefined variable name '%s'", v)
		}
		x := make([]float64, n)
		for site := range x {
			x[site] = mv.f(s, site)
		}
		vals[v] = x
	}
	results := make(map[string][]float64, len(o.expressions))
	params := make(map[string]interface{}, len(o.modelVariables))
	for name, e := range o.expressions {
		r := make([]float64, n)
		for site := 0; site < n; site++ {
			for _, v := range o.modelVariables {
				params[v] = vals[v][site]
			}
			x, err := e.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("sylva: evaluating '%s': %v", name, err)
			}
			f, ok := x.(float64)
			if !ok {
				return nil, fmt.Errorf("sylva: output variable '%s' is not a number", name)
			}
			r[site] = f
		}
		results[name] = r
	}
	return results, nil
}

// Totals returns the sum over all sites of each output variable.
func (o *Outputter) Totals(s *Sylva) (map[string]float64, error) {
	r, err := o.Results(s)
	if err != nil {
		return nil, err
	}
	t := make(map[string]float64, len(r))
	for k, v := range r {
		t[k] = floats.Sum(v)
	}
	return t, nil
}

// Output returns a function that writes the output variables at every
// site to the Outputter's file as tab-separated text.
func (o *Outputter) Output() DomainManipulator {
	return func(s *Sylva) error {
		results, err := o.Results(s)
		if err != nil {
			return err
		}
		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)

		f, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("sylva: creating output file: %v", err)
		}
		w := csv.NewWriter(f)
		w.Comma = '\t'
		w.Write(append([]string{"col", "row"}, vars...))
		for site := range s.Trees {
			col, row := s.Params.Grid.ColRow(site)
			rec := []string{strconv.Itoa(col), strconv.Itoa(row)}
			for _, v := range vars {
				rec = append(rec, ftoa(results[v][site]))
			}
			w.Write(rec)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return fmt.Errorf("sylva: writing output file: %v", err)
		}
		return f.Close()
	}
}
