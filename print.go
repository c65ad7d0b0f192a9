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
	"fmt"
	"io"

	"gonum.org/v1/gonum/integrate"
)

// PrintBreakthrough writes the outlet time series of the named gas
// species as a tab-delimited table with time in the first column and
// one mole-fraction column [ppm] per species.
func PrintBreakthrough(w io.Writer, m *Monolith, species ...string) error {
	series := make([][]float64, len(species))
	for k, s := range species {
		_, ppm, err := m.Breakthrough(s)
		if err != nil {
			return err
		}
		series[k] = ppm
	}
	fmt.Fprintf(w, "time [min]")
	for _, s := range species {
		fmt.Fprintf(w, "\t%s [ppm]", s)
	}
	fmt.Fprintln(w)
	for ti, t := range m.times {
		fmt.Fprintf(w, "%g", t)
		for k := range species {
			fmt.Fprintf(w, "\t%g", series[k][ti])
		}
		fmt.Fprintln(w)
	}
	return nil
}

// PrintAllLocations writes the recorded values of one state variable at
// every node as a tab-delimited table with time in the first column and
// one column per axial position.
func PrintAllLocations(w io.Writer, m *Monolith, varName string) error {
	iv, err := m.varIndex(varName)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "time [min]")
	for _, c := range m.cells {
		fmt.Fprintf(w, "\t%s @ z=%g cm", varName, c.Z)
	}
	fmt.Fprintln(w)
	for ti, t := range m.times {
		fmt.Fprintf(w, "%g", t)
		for i := range m.cells {
			fmt.Fprintf(w, "\t%g", m.resultAt(ti, i, iv))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// PrintIntegralAverage writes the axially averaged value of one state
// variable over time, using trapezoidal integration over the node
// positions.
func PrintIntegralAverage(w io.Writer, m *Monolith, varName string) error {
	iv, err := m.varIndex(varName)
	if err != nil {
		return err
	}
	zs := make([]float64, len(m.cells))
	for i, c := range m.cells {
		zs[i] = c.Z
	}
	fmt.Fprintf(w, "time [min]\t%s (axial average)\n", varName)
	vals := make([]float64, len(m.cells))
	for ti, t := range m.times {
		for i := range m.cells {
			vals[i] = m.resultAt(ti, i, iv)
		}
		var avg float64
		if len(zs) > 1 {
			avg = integrate.Trapezoidal(zs, vals) / (zs[len(zs)-1] - zs[0])
		} else {
			avg = vals[0]
		}
		fmt.Fprintf(w, "%g\t%g\n", t, avg)
	}
	return nil
}

// varIndex returns the results index of the named state variable.
func (m *Monolith) varIndex(varName string) (int, error) {
	if m.results == nil {
		return 0, fmt.Errorf("cats: no results have been recorded")
	}
	for j, n := range m.varNames {
		if n == varName {
			return j, nil
		}
	}
	return 0, fmt.Errorf("cats: unknown results variable %q", varName)
}

// PrintKineticParameterInfo writes the current rate parameters of every
// reaction in the network.
func PrintKineticParameterInfo(w io.Writer, m *Monolith) {
	fmt.Fprintf(w, "reaction\ttype\tA\tB\tE [J/mol]\tdH [J/mol]\tdS [J/(mol K)]\n")
	for _, r := range m.Reactions() {
		info := r.Info()
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g", r.Name(), r.Type(), info.A, info.B, info.E)
		if r.Type() == EquilibriumArrhenius {
			fmt.Fprintf(w, "\t%g\t%g", info.DH, info.DS)
		} else {
			fmt.Fprintf(w, "\t-\t-")
		}
		fmt.Fprintln(w)
	}
}

// PrintFitReport writes a summary of a completed parameter fit.
func PrintFitReport(w io.Writer, rep *FitReport) {
	fmt.Fprintf(w, "objective: %g (%d evaluations, %s)\n", rep.Objective, rep.Evaluations, rep.Status)
	fmt.Fprintf(w, "\nreaction\tparameter\tvalue\tbounds\tfixed\n")
	for _, p := range rep.Parameters {
		bounds := "-"
		if p.Bounds != (Bounds{}) {
			bounds = fmt.Sprintf("[%g, %g]", p.Bounds.Lo, p.Bounds.Hi)
		}
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%v\n", p.Reaction, p.Name, p.Value, bounds, p.Fixed)
	}
	fmt.Fprintf(w, "\nspecies\tN\tslope\tintercept\tR2\tRMSE [ppm]\tmean bias [ppm]\tmean error [ppm]\n")
	for _, s := range rep.Series {
		fmt.Fprintf(w, "%s\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
			s.Species, s.N, s.Slope, s.Intercept, s.R2, s.RMSE, s.MeanBias, s.MeanErr)
	}
}
