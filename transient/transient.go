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

// Package transient manipulates transient instrument logs such as the
// tab-delimited files written by LabVIEW data-acquisition systems during
// temperature-ramp experiments. A log holds named columns of
// floating-point observations; a repeated header row inside a file marks
// the beginning of a new time frame whose elapsed-time column restarts
// from zero.
package transient

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// span is a half-open range of row indices belonging to one time frame.
type span struct {
	start, end int
}

// TransientData holds the contents of one instrument log: the column
// names in file order, the observations for each column, and the row
// spans of the time frames found in the file.
type TransientData struct {
	// Name is the base name of the file the data was read from,
	// without the directory but with the extension.
	Name string

	// Columns holds the column names in their current order. Operations
	// that append columns add their names at the end.
	Columns []string

	// Data maps each column name to its observations. All columns have
	// the same number of rows.
	Data map[string][]float64

	frames []span
}

// parseText reads a tab-delimited instrument log. The first row holds
// the column names; every later row holds one observation per column. A
// row that repeats the header starts a new time frame.
func parseText(path string) (*TransientData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transient: %v", err)
	}
	defer f.Close()

	td := &TransientData{
		Name: filepath.Base(path),
		Data: make(map[string][]float64),
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for i, s := range fields {
			fields[i] = strings.TrimSpace(s)
		}
		if td.Columns == nil {
			td.Columns = fields
			for _, name := range fields {
				td.Data[name] = nil
			}
			td.frames = append(td.frames, span{})
			continue
		}
		if isHeader(fields, td.Columns) {
			n := len(td.Data[td.Columns[0]])
			td.frames[len(td.frames)-1].end = n
			td.frames = append(td.frames, span{start: n})
			continue
		}
		if len(fields) != len(td.Columns) {
			return nil, fmt.Errorf("transient: %s row %d: got %d fields, want %d", td.Name, row, len(fields), len(td.Columns))
		}
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("transient: %s row %d: parsing %q: %v", td.Name, row, s, err)
			}
			name := td.Columns[i]
			td.Data[name] = append(td.Data[name], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transient: reading %s: %v", td.Name, err)
	}
	if td.Columns == nil {
		return nil, fmt.Errorf("transient: %s is empty", td.Name)
	}
	td.frames[len(td.frames)-1].end = td.Rows()
	return td, nil
}

// isHeader reports whether a row repeats the column names.
func isHeader(fields, columns []string) bool {
	if len(fields) != len(columns) {
		return false
	}
	for i, s := range fields {
		if s != columns[i] {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the data, so that operations on the copy
// do not change the original.
func (td *TransientData) Copy() *TransientData {
	o := &TransientData{
		Name:    td.Name,
		Columns: append([]string{}, td.Columns...),
		Data:    make(map[string][]float64, len(td.Data)),
		frames:  append([]span{}, td.frames...),
	}
	for name, col := range td.Data {
		o.Data[name] = append([]float64{}, col...)
	}
	return o
}

// Rows returns the number of observation rows.
func (td *TransientData) Rows() int {
	if len(td.Columns) == 0 {
		return 0
	}
	return len(td.Data[td.Columns[0]])
}

// TimeKey returns the name of the elapsed-time column, which is always
// the first column in the file.
func (td *TransientData) TimeKey() string {
	if len(td.Columns) == 0 {
		return ""
	}
	return td.Columns[0]
}

// NumFrames returns the number of time frames in the file.
func (td *TransientData) NumFrames() int { return len(td.frames) }

// FrameRows returns the half-open row range [start, end) of time frame
// i.
func (td *TransientData) FrameRows(i int) (start, end int) {
	f := td.frames[i]
	return f.start, f.end
}

// TimeFrames returns the starting and ending value of the elapsed-time
// column for each time frame.
func (td *TransientData) TimeFrames() [][2]float64 {
	t := td.Data[td.TimeKey()]
	out := make([][2]float64, 0, len(td.frames))
	for _, f := range td.frames {
		if f.end <= f.start {
			out = append(out, [2]float64{})
			continue
		}
		out = append(out, [2]float64{t[f.start], t[f.end-1]})
	}
	return out
}

// Column returns the observations for the named column.
func (td *TransientData) Column(name string) ([]float64, error) {
	col, ok := td.Data[name]
	if !ok {
		return nil, fmt.Errorf("transient: %s: no column %q", td.Name, name)
	}
	return col, nil
}

// HasColumn reports whether the named column exists.
func (td *TransientData) HasColumn(name string) bool {
	_, ok := td.Data[name]
	return ok
}

// setColumn stores col under name, appending the name to the column
// order if it is new.
func (td *TransientData) setColumn(name string, col []float64) {
	if _, ok := td.Data[name]; !ok {
		td.Columns = append(td.Columns, name)
	}
	td.Data[name] = col
}

// columnRef matches a bracketed column reference left unresolved in a
// math-operation expression.
var columnRef = regexp.MustCompile(`\[[^\[\]]*`)

// MathOperation evaluates expr for every row and stores the result in
// the named column, creating the column if it does not exist. Columns
// are referenced inside square brackets, for example
//
//	"[NO (ppm)] + [NO2 (ppm)]"
//
// and the usual arithmetic operators and parentheses apply. An
// expression that references a column that does not exist returns an
// error naming it.
func (td *TransientData) MathOperation(name, expr string) error {
	// Substitute known column references with generated identifiers,
	// longest names first so that names containing bracketed suffixes,
	// such as "CO (500)[bypass]", are matched whole.
	names := append([]string{}, td.Columns...)
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	cols := make(map[string][]float64)
	transformed := expr
	for i, n := range names {
		ref := "[" + n + "]"
		if !strings.Contains(transformed, ref) {
			continue
		}
		id := "col" + strconv.Itoa(i)
		transformed = strings.ReplaceAll(transformed, ref, id)
		cols[id] = td.Data[n]
	}
	if m := columnRef.FindString(transformed); m != "" {
		return fmt.Errorf("transient: %s: math operation %q: no column %q", td.Name, expr, strings.TrimLeft(m, "["))
	}
	expression, err := govaluate.NewEvaluableExpression(transformed)
	if err != nil {
		return fmt.Errorf("transient: %s: math operation %q: %v", td.Name, expr, err)
	}

	n := td.Rows()
	out := make([]float64, n)
	params := make(map[string]interface{}, len(cols))
	for i := 0; i < n; i++ {
		for id, col := range cols {
			params[id] = col[i]
		}
		v, err := expression.Evaluate(params)
		if err != nil {
			return fmt.Errorf("transient: %s: math operation %q: %v", td.Name, expr, err)
		}
		fv, ok := v.(float64)
		if !ok {
			return fmt.Errorf("transient: %s: math operation %q is not numeric", td.Name, expr)
		}
		out[i] = fv
	}
	td.setColumn(name, out)
	return nil
}

// DeleteColumns removes the named columns. Names that do not exist are
// ignored.
func (td *TransientData) DeleteColumns(names ...string) {
	for _, name := range names {
		if _, ok := td.Data[name]; !ok {
			continue
		}
		delete(td.Data, name)
		for i, n := range td.Columns {
			if n == name {
				td.Columns = append(td.Columns[:i], td.Columns[i+1:]...)
				break
			}
		}
	}
}

// RetainOnlyColumns removes every column not in the given list. The
// elapsed-time column is always retained. Names that do not exist are
// ignored.
func (td *TransientData) RetainOnlyColumns(names ...string) {
	keep := map[string]bool{td.TimeKey(): true}
	for _, name := range names {
		keep[name] = true
	}
	var drop []string
	for _, name := range td.Columns {
		if !keep[name] {
			drop = append(drop, name)
		}
	}
	td.DeleteColumns(drop...)
}

// rangeSuffix matches a column name ending in a numeric full-scale
// range, such as "CO (500)".
var rangeSuffix = regexp.MustCompile(`^(.*\S) \((\d+(?:\.\d+)?)\)$`)

// CompressColumns merges columns that record the same quantity on
// analyzer channels with different full-scale ranges, such as
// "CO (500)" and "CO (10000)", into a single column named with the
// sorted ranges, "CO (500,10000)". For each row the merged value is
// taken from the smallest-range channel whose reading is within its
// range, falling back to the largest range when all channels read over
// scale. Columns whose parenthetical is not numeric, and quantities
// recorded on a single channel, are left unchanged.
func (td *TransientData) CompressColumns() {
	type channel struct {
		name  string
		limit float64
	}
	groups := make(map[string][]channel)
	var order []string
	for _, name := range td.Columns {
		m := rangeSuffix.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		limit, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if _, ok := groups[m[1]]; !ok {
			order = append(order, m[1])
		}
		groups[m[1]] = append(groups[m[1]], channel{name: name, limit: limit})
	}
	for _, prefix := range order {
		chans := groups[prefix]
		if len(chans) < 2 {
			continue
		}
		sort.Slice(chans, func(i, j int) bool { return chans[i].limit < chans[j].limit })
		ranges := make([]string, len(chans))
		for i, c := range chans {
			ranges[i] = strconv.FormatFloat(c.limit, 'g', -1, 64)
		}
		merged := prefix + " (" + strings.Join(ranges, ",") + ")"

		n := td.Rows()
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			v := td.Data[chans[len(chans)-1].name][i]
			for _, c := range chans {
				if r := td.Data[c.name][i]; math.Abs(r) <= c.limit {
					v = r
					break
				}
			}
			col[i] = v
		}

		// The merged column takes the position of the smallest-range
		// channel in the column order.
		first := chans[0].name
		for i, name := range td.Columns {
			if name == first {
				td.Columns[i] = merged
				break
			}
		}
		delete(td.Data, first)
		td.Data[merged] = col
		for _, c := range chans[1:] {
			td.DeleteColumns(c.name)
		}
	}
}

// RemoveNegatives clamps negative observations in the named columns to
// zero. Names that do not exist are ignored.
func (td *TransientData) RemoveNegatives(names ...string) {
	for _, name := range names {
		col, ok := td.Data[name]
		if !ok {
			continue
		}
		for i, v := range col {
			if v < 0 {
				col[i] = 0
			}
		}
	}
}

// Average returns the mean of the named column over all rows.
func (td *TransientData) Average(name string) (float64, error) {
	col, err := td.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("transient: %s: column %q has no rows", td.Name, name)
	}
	sum := 0.0
	for _, v := range col {
		sum += v
	}
	return sum / float64(len(col)), nil
}

// Minimum returns the smallest value of the named column.
func (td *TransientData) Minimum(name string) (float64, error) {
	col, err := td.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("transient: %s: column %q has no rows", td.Name, name)
	}
	min := col[0]
	for _, v := range col[1:] {
		if v < min {
			min = v
		}
	}
	return min, nil
}

// AppendColumnByFrame adds a column holding one constant value per
// time frame, broadcast over every row of that frame. perFrame must
// hold one value for each time frame.
func (td *TransientData) AppendColumnByFrame(name string, perFrame []float64) error {
	if len(perFrame) != len(td.frames) {
		return fmt.Errorf("transient: %s: got %d frame values for column %q, want %d", td.Name, len(perFrame), name, len(td.frames))
	}
	col := make([]float64, td.Rows())
	for i, f := range td.frames {
		for j := f.start; j < f.end; j++ {
			col[j] = perFrame[i]
		}
	}
	td.setColumn(name, col)
	return nil
}

// CompressRows replaces every n consecutive rows within each time frame
// by their mean, reducing noise and file size. A partial group at the
// end of a frame is averaged over the rows it has. n < 2 leaves the
// data unchanged.
func (td *TransientData) CompressRows(n int) {
	if n < 2 || td.Rows() == 0 {
		return
	}
	newData := make(map[string][]float64, len(td.Data))
	newFrames := make([]span, len(td.frames))
	for _, name := range td.Columns {
		col := td.Data[name]
		var out []float64
		for fi, f := range td.frames {
			if name == td.TimeKey() {
				newFrames[fi].start = len(out)
			}
			for start := f.start; start < f.end; start += n {
				end := start + n
				if end > f.end {
					end = f.end
				}
				sum := 0.0
				for _, v := range col[start:end] {
					sum += v
				}
				out = append(out, sum/float64(end-start))
			}
			if name == td.TimeKey() {
				newFrames[fi].end = len(out)
			}
		}
		newData[name] = out
	}
	td.Data = newData
	td.frames = newFrames
}

// CreateRateMap builds a table of approximate time derivatives for the
// named columns by forward finite differences within each time frame,
// using the elapsed-time column as the abscissa. The returned table
// holds the elapsed-time column and, for each name, the column itself,
// its "[bypass]" twin when one exists, and the derivative column
// "d{name}/dt". With no names, every column except the elapsed time and
// the "[bypass]" twins is differentiated.
func (td *TransientData) CreateRateMap(names ...string) (*TransientData, error) {
	if len(names) == 0 {
		for _, name := range td.Columns {
			if name == td.TimeKey() || strings.Contains(name, "[bypass]") {
				continue
			}
			names = append(names, name)
		}
	}
	t := td.Data[td.TimeKey()]
	out := &TransientData{
		Name:    td.Name,
		Data:    make(map[string][]float64),
		frames:  append([]span{}, td.frames...),
		Columns: []string{td.TimeKey()},
	}
	out.Data[td.TimeKey()] = append([]float64{}, t...)
	for _, name := range names {
		col, err := td.Column(name)
		if err != nil {
			return nil, err
		}
		out.setColumn(name, append([]float64{}, col...))
		if twin := name + "[bypass]"; td.HasColumn(twin) {
			out.setColumn(twin, append([]float64{}, td.Data[twin]...))
		}
		rate := make([]float64, len(col))
		for _, f := range td.frames {
			for i := f.start; i < f.end-1; i++ {
				dt := t[i+1] - t[i]
				if dt == 0 {
					rate[i] = 0
					continue
				}
				rate[i] = (col[i+1] - col[i]) / dt
			}
			if f.end-f.start > 1 {
				rate[f.end-1] = rate[f.end-2]
			}
		}
		out.setColumn("d{"+name+"}/dt", rate)
	}
	return out, nil
}

// PrintAllToFile writes every column to a tab-delimited file, creating
// the parent directories if needed. The first row holds the column
// names.
func (td *TransientData) PrintAllToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("transient: %v", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("transient: %v", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if _, err := fmt.Fprintln(w, strings.Join(td.Columns, "\t")); err != nil {
		return err
	}
	n := td.Rows()
	row := make([]string, len(td.Columns))
	for i := 0; i < n; i++ {
		for j, name := range td.Columns {
			row[j] = strconv.FormatFloat(td.Data[name][i], 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}
