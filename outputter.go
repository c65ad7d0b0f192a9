/*
Copyright © 2021 the CATS authors.
This file is part of CATS.

CATS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CATS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CATS.  If not, see <http://www.gnu.org/licenses/>.
*/

package cats

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved.
//
// outputVariables maps the names of the variables for which data should
// be written to expressions that define how the requested data should be
// calculated. Expressions can use the recorded state variables, the
// built-in variables "time" and "z", user-defined variables, and
// functions.
//
// modelVariables is automatically generated based on the state variables
// that are required to calculate the requested output variables.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
	press           float64 // total pressure for ppm conversions [kPa]
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'abs(x)' which takes the absolute value of x.
//
// 'conv(in, out)' which calculates the percent conversion between an
// inlet and an outlet concentration, returning zero when the inlet is
// not positive.
//
// 'ppm(c, T)' which converts a molar concentration [mol/L] at
// temperature T [K] to a mole fraction in parts per million.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	o := Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		press:           101.35,
	}
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return (float64)(math.Exp(arg[0].(float64))), nil
		},
		"abs": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'abs', but needs 1", len(arg))
			}
			return (float64)(math.Abs(arg[0].(float64))), nil
		},
		"conv": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'conv', but needs 2", len(args))
			}
			in := args[0].(float64)
			out := args[1].(float64)
			if in <= 0 {
				return (float64)(0), nil
			}
			return (float64)((in - out) / in * 100), nil
		},
		"ppm": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'ppm', but needs 2", len(args))
			}
			return (float64)(ConcToPPM(args[0].(float64), args[1].(float64), o.press)), nil
		},
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}
	o.outputFunctions = defaultOutputFuncs
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}
	err := o.checkForDerivatives()
	return &o, err
}

// removeDuplicates removes all duplicated strings from a slice, returning
// a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

// checkForDerivatives identifies the unique state variables that are
// required to calculate the requested output variables, replacing any
// user-defined output variable appearing inside another expression with
// the expression that defines it. Circular definitions are rejected:
// an acyclic set of definitions resolves in at most one substitution
// per ordered variable pair.
func (o *Outputter) checkForDerivatives() error {
	n := len(o.outputVariables)
	for subs := 0; ; subs++ {
		if subs > n*n {
			return fmt.Errorf("cats: circular definition among output variables")
		}
		substituted := false
		o.modelVariables = make([]string, 0, n)
		for key, val := range o.outputVariables {
			expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
			if err != nil {
				return fmt.Errorf("cats: output variable %s: %v", key, err)
			}
			uniqueVars := removeDuplicates(expression.Vars())
			for _, uniqueVar := range uniqueVars {
				if def, ok := o.outputVariables[uniqueVar]; ok && def != uniqueVar && uniqueVar != key {
					// Replace whole-word instances of the derived variable by
					// the expression that defines it, then start over.
					re, err := regexp.Compile(`\b` + regexp.QuoteMeta(uniqueVar) + `\b`)
					if err != nil {
						return fmt.Errorf("cats: output variable %s: %v", key, err)
					}
					o.outputVariables[key] = re.ReplaceAllString(val, "("+def+")")
					substituted = true
					break
				}
			}
			if substituted {
				break
			}
			o.modelVariables = append(o.modelVariables, uniqueVars...)
		}
		if !substituted {
			break
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return nil
}

// checkOutputNames checks whether any output variable names include
// characters that are unsupported in column names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		ok, err := regexp.MatchString(`^[A-Za-z]\w*$`, key)
		if err != nil {
			panic(err)
		}
		if !ok {
			return fmt.Errorf("cats: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated from
// the model's recorded state, and binds the model's reference pressure
// for ppm conversions.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(m *Monolith) error {
		if err := checkOutputNames(o.outputVariables); err != nil {
			return err
		}
		known := map[string]bool{"time": true, "z": true}
		for _, n := range m.VarNames() {
			known[n] = true
		}
		for _, v := range o.modelVariables {
			if !known[v] {
				return fmt.Errorf("cats: undefined output variable name '%s'", v)
			}
		}
		o.press = m.refPress
		return nil
	}
}

// Output returns a function that evaluates the output expressions over
// every recorded time point and node and writes the result to the
// output file as CSV, one row per time and node.
func (o *Outputter) Output() DomainManipulator {
	return func(m *Monolith) error {
		if m.results == nil {
			return fmt.Errorf("cats: no results have been recorded")
		}
		names := make([]string, 0, len(o.outputVariables))
		for k := range o.outputVariables {
			names = append(names, k)
		}
		sort.Strings(names)

		exprs := make([]*govaluate.EvaluableExpression, len(names))
		for i, n := range names {
			expression, err := govaluate.NewEvaluableExpressionWithFunctions(o.outputVariables[n], o.outputFunctions)
			if err != nil {
				return fmt.Errorf("cats: output variable %s: %v", n, err)
			}
			exprs[i] = expression
		}

		f, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("cats: creating output file: %v", err)
		}
		defer f.Close()
		w := csv.NewWriter(f)
		defer w.Flush()

		header := append([]string{"time", "z"}, names...)
		if err := w.Write(header); err != nil {
			return err
		}

		params := make(map[string]interface{}, len(m.varNames)+2)
		row := make([]string, len(header))
		for ti, t := range m.times {
			for i, c := range m.cells {
				params["time"] = t
				params["z"] = c.Z
				for iv, n := range m.varNames {
					params[n] = m.resultAt(ti, i, iv)
				}
				row[0] = strconv.FormatFloat(t, 'g', -1, 64)
				row[1] = strconv.FormatFloat(c.Z, 'g', -1, 64)
				for k, expression := range exprs {
					v, err := expression.Evaluate(params)
					if err != nil {
						return fmt.Errorf("cats: evaluating output variable %s: %v", names[k], err)
					}
					fv, ok := v.(float64)
					if !ok {
						return fmt.Errorf("cats: output variable %s is not numeric", names[k])
					}
					row[k+2] = strconv.FormatFloat(fv, 'g', -1, 64)
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// OutputOptions returns the names of the state variables that can appear
// in output expressions along with their descriptions and units.
func (m *Monolith) OutputOptions() (names []string, descriptions []string, units []string) {
	names = append(m.VarNames(), "time", "z")
	for _, n := range names {
		switch {
		case n == "time":
			descriptions = append(descriptions, "Simulation time")
			units = append(units, "min")
		case n == "z":
			descriptions = append(descriptions, "Distance from the inlet face")
			units = append(units, "cm")
		case n == "T":
			descriptions = append(descriptions, "Gas temperature")
			units = append(units, "K")
		case n == "V":
			descriptions = append(descriptions, "Interstitial linear velocity")
			units = append(units, "cm/min")
		case strings.HasSuffix(n, "_w"):
			descriptions = append(descriptions, "Washcoat concentration of "+strings.TrimSuffix(n, "_w"))
			units = append(units, "mol/L")
		default:
			if _, ok := m.qIndex[n]; ok {
				descriptions = append(descriptions, "Surface coverage of "+n)
				units = append(units, "mol/L washcoat")
			} else if _, ok := m.sIndex[n]; ok {
				descriptions = append(descriptions, "Free site concentration of "+n)
				units = append(units, "mol/L washcoat")
			} else {
				descriptions = append(descriptions, "Bulk-channel concentration of "+n)
				units = append(units, "mol/L")
			}
		}
	}
	return names, descriptions, units
}
