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
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LightOffData holds an observed outlet breakthrough series for one gas
// species, used as the target of a parameter fit.
type LightOffData struct {
	Species string    // gas species the series is compared against
	Times   []float64 // [min]
	Values  []float64 // outlet concentrations [ppm]
	Weights []float64 // least-squares weights, one per point
}

// NewLightOffData creates a breakthrough series for the named species.
// Times must be strictly increasing and match values in length. Weights
// start at one.
func NewLightOffData(species string, times, values []float64) (*LightOffData, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("cats: light-off data for %s: %d times but %d values",
			species, len(times), len(values))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("cats: light-off data for %s is empty", species)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("cats: light-off data for %s: times not increasing at row %d", species, i)
		}
	}
	w := make([]float64, len(times))
	for i := range w {
		w[i] = 1
	}
	return &LightOffData{Species: species, Times: times, Values: values, Weights: w}, nil
}

// LightOffExperiment holds a parsed light-off experiment file: named
// columns of observations sharing the time base in the first column.
type LightOffExperiment struct {
	// Name is the base name of the file the experiment was read from.
	Name string

	// Columns holds the column names in file order. The first column is
	// the sample time [min].
	Columns []string

	// Data maps each column name to its observations. All columns have
	// the same number of rows.
	Data map[string][]float64
}

// ReadLightOffData reads a light-off experiment export. The first row
// holds the column names and every later row one observation per
// column. Columns are separated by tabs when the header contains one,
// so that names may hold spaces, and by runs of whitespace otherwise.
func ReadLightOffData(path string) (*LightOffExperiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cats: %v", err)
	}
	defer f.Close()

	e := &LightOffExperiment{
		Name: filepath.Base(path),
		Data: make(map[string][]float64),
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	tabbed := false
	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if e.Columns == nil {
			tabbed = strings.Contains(line, "\t")
		}
		var fields []string
		if tabbed {
			fields = strings.Split(line, "\t")
			for i, s := range fields {
				fields[i] = strings.TrimSpace(s)
			}
		} else {
			fields = strings.Fields(line)
		}
		if e.Columns == nil {
			e.Columns = fields
			for _, name := range fields {
				if _, ok := e.Data[name]; ok {
					return nil, fmt.Errorf("cats: %s: duplicate column %q", e.Name, name)
				}
				e.Data[name] = nil
			}
			continue
		}
		if len(fields) != len(e.Columns) {
			return nil, fmt.Errorf("cats: %s row %d: got %d fields, want %d",
				e.Name, row, len(fields), len(e.Columns))
		}
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("cats: %s row %d: parsing %q: %v", e.Name, row, s, err)
			}
			e.Data[e.Columns[i]] = append(e.Data[e.Columns[i]], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cats: reading %s: %v", e.Name, err)
	}
	if e.Columns == nil {
		return nil, fmt.Errorf("cats: %s is empty", e.Name)
	}
	if len(e.Data[e.Columns[0]]) == 0 {
		return nil, fmt.Errorf("cats: %s has no data rows", e.Name)
	}
	return e, nil
}

// Times returns the sample times [min], taken from the first column.
func (e *LightOffExperiment) Times() []float64 {
	return e.Data[e.Columns[0]]
}

// Column returns the observations recorded under the exact column name.
func (e *LightOffExperiment) Column(name string) ([]float64, error) {
	col, ok := e.Data[name]
	if !ok {
		return nil, fmt.Errorf("cats: %s has no column %q", e.Name, name)
	}
	return col, nil
}

// Series builds the fitting target for a gas species from the named
// column, which must hold outlet concentrations [ppm].
func (e *LightOffExperiment) Series(species, column string) (*LightOffData, error) {
	col, err := e.Column(column)
	if err != nil {
		return nil, err
	}
	return NewLightOffData(species, e.Times(), col)
}

// TemperatureProfile builds an interpolated temperature field from the
// named thermocouple columns, one per axial station position [cm]. The
// readings are used as recorded and must be in K.
func (e *LightOffExperiment) TemperatureProfile(cols []string, positions []float64) (*MeasuredTemperature, error) {
	if len(cols) != len(positions) {
		return nil, fmt.Errorf("cats: %s: %d thermocouple columns but %d positions",
			e.Name, len(cols), len(positions))
	}
	series := make([][]float64, len(cols))
	for i, name := range cols {
		col, err := e.Column(name)
		if err != nil {
			return nil, err
		}
		series[i] = col
	}
	times := e.Times()
	if !sort.Float64sAreSorted(times) {
		return nil, fmt.Errorf("cats: %s: sample times are not increasing", e.Name)
	}
	return TemperatureProfile(positions, times, series)
}

// TimePointSelector chooses a subset of data rows to keep for fitting.
type TimePointSelector func(times []float64) []int

// AllPoints returns a selector that keeps every row.
func AllPoints() TimePointSelector {
	return func(times []float64) []int {
		idx := make([]int, len(times))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
}

// EveryNth returns a selector that keeps every nth row, always
// including the first and last.
func EveryNth(n int) TimePointSelector {
	return func(times []float64) []int {
		if n < 1 {
			n = 1
		}
		var idx []int
		for i := 0; i < len(times); i += n {
			idx = append(idx, i)
		}
		if last := len(times) - 1; len(idx) > 0 && idx[len(idx)-1] != last {
			idx = append(idx, last)
		}
		return idx
	}
}

// MaxPoints returns a selector that thins the series to at most n
// evenly spread rows, always keeping the first and last. Measured series
// are often sampled far more densely than the solver temporal grid
// needs.
func MaxPoints(n int) TimePointSelector {
	return func(times []float64) []int {
		if len(times) == 0 || n >= len(times) {
			return AllPoints()(times)
		}
		if n < 2 {
			n = 2
		}
		last := len(times) - 1
		var idx []int
		for k := 0; k < n; k++ {
			i := int(math.Round(float64(k) * float64(last) / float64(n-1)))
			if len(idx) == 0 || i != idx[len(idx)-1] {
				idx = append(idx, i)
			}
		}
		return idx
	}
}

// TimeWindow returns a selector that keeps rows with t0 ≤ t ≤ t1.
func TimeWindow(t0, t1 float64) TimePointSelector {
	return func(times []float64) []int {
		var idx []int
		for i, t := range times {
			if t >= t0 && t <= t1 {
				idx = append(idx, i)
			}
		}
		return idx
	}
}

// Select returns a copy of the series reduced to the rows chosen by sel.
func (d *LightOffData) Select(sel TimePointSelector) *LightOffData {
	idx := sel(d.Times)
	out := &LightOffData{
		Species: d.Species,
		Times:   make([]float64, len(idx)),
		Values:  make([]float64, len(idx)),
		Weights: make([]float64, len(idx)),
	}
	for k, i := range idx {
		out.Times[k] = d.Times[i]
		out.Values[k] = d.Values[i]
		out.Weights[k] = d.Weights[i]
	}
	return out
}

// AutoSelectWeightFactors sets the weights of each series to the inverse
// square of its largest magnitude, so that species measured at very
// different scales contribute comparably to the fit objective.
func AutoSelectWeightFactors(data ...*LightOffData) {
	const floor = 1.e-6
	for _, d := range data {
		mag := floor
		for _, v := range d.Values {
			mag = max(mag, math.Abs(v))
		}
		w := 1 / (mag * mag)
		for i := range d.Weights {
			if d.Weights[i] != 0 {
				d.Weights[i] = w
			}
		}
	}
}

// IgnoreWeightFactor zeroes the weights of all points with
// t0 ≤ t ≤ t1, removing that window from the fit objective.
func (d *LightOffData) IgnoreWeightFactor(t0, t1 float64) {
	for i, t := range d.Times {
		if t >= t0 && t <= t1 {
			d.Weights[i] = 0
		}
	}
}

// IgnoreWeightsBefore removes all points at or before t from the fit
// objective.
func (d *LightOffData) IgnoreWeightsBefore(t float64) {
	d.IgnoreWeightFactor(math.Inf(-1), t)
}

// IgnoreWeightsAfter removes all points at or after t from the fit
// objective.
func (d *LightOffData) IgnoreWeightsAfter(t float64) {
	d.IgnoreWeightFactor(t, math.Inf(1))
}

// ValueAt linearly interpolates the observed series at time t, clamping
// to the first and last points.
func (d *LightOffData) ValueAt(t float64) float64 {
	return interpolate(d.Times, d.Values, t)
}

// TemperatureProfile builds a measured temperature field from
// thermocouple series. positions holds the axial location of each
// thermocouple [cm], times the shared sample times [min], and series one
// temperature trace [K] per position.
func TemperatureProfile(positions, times []float64, series [][]float64) (*MeasuredTemperature, error) {
	if len(positions) == 0 || len(positions) != len(series) {
		return nil, fmt.Errorf("cats: temperature profile: %d positions but %d series",
			len(positions), len(series))
	}
	if !sort.Float64sAreSorted(positions) {
		return nil, fmt.Errorf("cats: temperature profile positions must be sorted")
	}
	for i, s := range series {
		if len(s) != len(times) {
			return nil, fmt.Errorf("cats: temperature profile series %d has %d samples but %d times",
				i, len(s), len(times))
		}
	}
	return &MeasuredTemperature{Positions: positions, Times: times, Series: series}, nil
}
