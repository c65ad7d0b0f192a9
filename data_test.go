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
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLightOffData(t *testing.T) {
	d, err := NewLightOffData("NH3", []float64{0, 1, 2}, []float64{5, 6, 7})
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range d.Weights {
		if w != 1 {
			t.Errorf("weight %d starts at %g, expected 1", i, w)
		}
	}

	if _, err := NewLightOffData("NH3", []float64{0, 1}, []float64{5}); err == nil ||
		!strings.Contains(err.Error(), "2 times but 1 values") {
		t.Errorf("expected a length-mismatch error, got %v", err)
	}
	if _, err := NewLightOffData("NH3", nil, nil); err == nil ||
		!strings.Contains(err.Error(), "empty") {
		t.Errorf("expected an empty-series error, got %v", err)
	}
	if _, err := NewLightOffData("NH3", []float64{0, 1, 1}, []float64{5, 6, 7}); err == nil ||
		!strings.Contains(err.Error(), "not increasing at row 2") {
		t.Errorf("expected a monotonicity error, got %v", err)
	}
}

func TestReadLightOffData(t *testing.T) {
	dir, err := ioutil.TempDir("", "catsdata")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// Tab-delimited export with spaces inside the column names.
	tabbed := filepath.Join(dir, "lightoff.dat")
	content := strings.Join([]string{
		"Elapsed Time (min)\tNH3 (300,3000)\tTC top sample in (C)",
		"0\t0\t423.15",
		"1\t5\t448.15",
		"2\t20\t473.15",
		"",
	}, "\n")
	if err := ioutil.WriteFile(tabbed, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	e, err := ReadLightOffData(tabbed)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Columns) != 3 {
		t.Fatalf("parsed %d columns, expected 3", len(e.Columns))
	}
	times := e.Times()
	if len(times) != 3 || times[2] != 2 {
		t.Errorf("unexpected time base %v", times)
	}
	col, err := e.Column("NH3 (300,3000)")
	if err != nil {
		t.Fatal(err)
	}
	if col[1] != 5 {
		t.Errorf("column row 1 is %g, expected 5", col[1])
	}
	if _, err := e.Column("NH3"); err == nil ||
		!strings.Contains(err.Error(), "no column") {
		t.Errorf("expected a missing-column error, got %v", err)
	}

	d, err := e.Series("NH3", "NH3 (300,3000)")
	if err != nil {
		t.Fatal(err)
	}
	if d.Species != "NH3" || len(d.Values) != 3 || d.Values[2] != 20 {
		t.Errorf("unexpected series %+v", d)
	}

	mt, err := e.TemperatureProfile([]string{"TC top sample in (C)"}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if v := mt.Temperature(0, 0.5); absDifferent(v, 435.65, testTolerance) {
		t.Errorf("interpolated temperature %g, expected 435.65", v)
	}
	if _, err := e.TemperatureProfile([]string{"TC top sample in (C)"}, []float64{0, 5}); err == nil {
		t.Error("expected an error for mismatched columns and positions")
	}

	// Whitespace-delimited files separate columns with any run of
	// spaces.
	spaced := filepath.Join(dir, "lightoff.txt")
	content = "time  NH3   NO\n0 1  2\n1   3 4\n"
	if err := ioutil.WriteFile(spaced, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	e, err = ReadLightOffData(spaced)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Columns) != 3 || e.Columns[1] != "NH3" {
		t.Fatalf("parsed columns %v", e.Columns)
	}
	col, err = e.Column("NO")
	if err != nil {
		t.Fatal(err)
	}
	if col[0] != 2 || col[1] != 4 {
		t.Errorf("unexpected NO column %v", col)
	}

	if _, err := ReadLightOffData(filepath.Join(dir, "missing.dat")); err == nil {
		t.Error("expected an error for a missing file")
	}

	bad := filepath.Join(dir, "ragged.dat")
	if err := ioutil.WriteFile(bad, []byte("a\tb\tc\n0\t1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLightOffData(bad); err == nil ||
		!strings.Contains(err.Error(), "got 2 fields, want 3") {
		t.Errorf("expected a ragged-row error, got %v", err)
	}

	bad = filepath.Join(dir, "nonnumeric.dat")
	if err := ioutil.WriteFile(bad, []byte("a b\n0 x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLightOffData(bad); err == nil ||
		!strings.Contains(err.Error(), "parsing") {
		t.Errorf("expected a parse error, got %v", err)
	}

	bad = filepath.Join(dir, "empty.dat")
	if err := ioutil.WriteFile(bad, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLightOffData(bad); err == nil ||
		!strings.Contains(err.Error(), "empty") {
		t.Errorf("expected an empty-file error, got %v", err)
	}

	bad = filepath.Join(dir, "headeronly.dat")
	if err := ioutil.WriteFile(bad, []byte("a b c\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLightOffData(bad); err == nil ||
		!strings.Contains(err.Error(), "no data rows") {
		t.Errorf("expected a no-data error, got %v", err)
	}

	bad = filepath.Join(dir, "duplicate.dat")
	if err := ioutil.WriteFile(bad, []byte("a\ta\n0\t1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLightOffData(bad); err == nil ||
		!strings.Contains(err.Error(), "duplicate column") {
		t.Errorf("expected a duplicate-column error, got %v", err)
	}
}

func TestTimePointSelectors(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5, 6}

	if idx := AllPoints()(times); len(idx) != len(times) {
		t.Errorf("AllPoints kept %d of %d rows", len(idx), len(times))
	}

	idx := EveryNth(3)(times)
	want := []int{0, 3, 6}
	if len(idx) != len(want) {
		t.Fatalf("EveryNth(3) kept %v", idx)
	}
	for i, w := range want {
		if idx[i] != w {
			t.Errorf("EveryNth(3) kept %v, expected %v", idx, want)
		}
	}
	// The last row is always included even when the stride misses it.
	idx = EveryNth(4)(times)
	if idx[len(idx)-1] != 6 {
		t.Errorf("EveryNth(4) dropped the last row: %v", idx)
	}

	idx = TimeWindow(2, 4.5)(times)
	want = []int{2, 3, 4}
	if len(idx) != len(want) {
		t.Fatalf("TimeWindow kept %v", idx)
	}
	for i, w := range want {
		if idx[i] != w {
			t.Errorf("TimeWindow kept %v, expected %v", idx, want)
		}
	}

	idx = MaxPoints(3)(times)
	want = []int{0, 3, 6}
	if len(idx) != len(want) {
		t.Fatalf("MaxPoints(3) kept %v", idx)
	}
	for i, w := range want {
		if idx[i] != w {
			t.Errorf("MaxPoints(3) kept %v, expected %v", idx, want)
		}
	}
	if idx := MaxPoints(100)(times); len(idx) != len(times) {
		t.Errorf("MaxPoints larger than the series kept %v", idx)
	}
	// The first and last rows survive even the most aggressive thinning.
	idx = MaxPoints(1)(times)
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 6 {
		t.Errorf("MaxPoints(1) kept %v, expected the first and last rows", idx)
	}
}

func TestSelect(t *testing.T) {
	d, err := NewLightOffData("NH3",
		[]float64{0, 1, 2, 3, 4},
		[]float64{10, 11, 12, 13, 14})
	if err != nil {
		t.Fatal(err)
	}
	d.Weights[2] = 0.5

	s := d.Select(EveryNth(2))
	if len(s.Times) != 3 {
		t.Fatalf("selected %d rows", len(s.Times))
	}
	if s.Times[1] != 2 || s.Values[1] != 12 || s.Weights[1] != 0.5 {
		t.Errorf("selection did not carry the row contents: %+v", s)
	}
	// The original series is untouched.
	if len(d.Times) != 5 {
		t.Error("selection modified the source series")
	}
}

func TestAutoSelectWeightFactors(t *testing.T) {
	big, _ := NewLightOffData("NO", []float64{0, 1}, []float64{0, 500})
	small, _ := NewLightOffData("N2O", []float64{0, 1}, []float64{0, 5})
	small.Weights[0] = 0 // ignored points stay ignored

	AutoSelectWeightFactors(big, small)
	if different(big.Weights[1], 1/(500.*500), testTolerance) {
		t.Errorf("expected weight %g, got %g", 1/(500.*500), big.Weights[1])
	}
	if different(small.Weights[1], 1/(5.*5), testTolerance) {
		t.Errorf("expected weight %g, got %g", 1/(5.*5), small.Weights[1])
	}
	if small.Weights[0] != 0 {
		t.Error("a zero weight was overwritten")
	}

	// The two series now contribute comparably at full scale.
	if different(big.Weights[1]*500*500, small.Weights[1]*5*5, testTolerance) {
		t.Error("weights do not equalize the series magnitudes")
	}
}

func TestIgnoreWeightFactor(t *testing.T) {
	d, _ := NewLightOffData("NH3",
		[]float64{0, 1, 2, 3, 4},
		[]float64{10, 11, 12, 13, 14})
	d.IgnoreWeightFactor(1, 3)
	want := []float64{1, 0, 0, 0, 1}
	for i, w := range want {
		if d.Weights[i] != w {
			t.Errorf("weight %d: expected %g, got %g", i, w, d.Weights[i])
		}
	}
}

func TestIgnoreWeightsOpenEnded(t *testing.T) {
	d, _ := NewLightOffData("NH3",
		[]float64{0, 1, 2, 3, 4},
		[]float64{10, 11, 12, 13, 14})
	d.IgnoreWeightsBefore(1)
	want := []float64{0, 0, 1, 1, 1}
	for i, w := range want {
		if d.Weights[i] != w {
			t.Errorf("after IgnoreWeightsBefore, weight %d is %g, expected %g",
				i, d.Weights[i], w)
		}
	}
	d.IgnoreWeightsAfter(3)
	want = []float64{0, 0, 1, 0, 0}
	for i, w := range want {
		if d.Weights[i] != w {
			t.Errorf("after IgnoreWeightsAfter, weight %d is %g, expected %g",
				i, d.Weights[i], w)
		}
	}
}

func TestLightOffValueAt(t *testing.T) {
	d, _ := NewLightOffData("NH3", []float64{0, 2, 4}, []float64{0, 20, 40})
	cases := []struct{ t, want float64 }{
		{-1, 0},
		{1, 10},
		{3, 30},
		{9, 40},
	}
	for _, c := range cases {
		if v := d.ValueAt(c.t); absDifferent(v, c.want, testTolerance) {
			t.Errorf("t=%g: expected %g, got %g", c.t, c.want, v)
		}
	}
}
