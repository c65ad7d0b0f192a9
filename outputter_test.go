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
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

func TestOutputterExpansion(t *testing.T) {
	o, err := NewOutputter("", map[string]string{
		"NH3ppm": "ppm(NH3, T)",
		"double": "NH3ppm * 2",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := o.outputVariables["double"]; got != "(ppm(NH3, T)) * 2" {
		t.Errorf("expanded expression = %q", got)
	}
	vars := append([]string{}, o.modelVariables...)
	sort.Strings(vars)
	if strings.Join(vars, ",") != "NH3,T" {
		t.Errorf("model variables = %v", vars)
	}
}

func TestOutputterBadExpression(t *testing.T) {
	if _, err := NewOutputter("", map[string]string{"NH3ppm": "ppm(NH3,"}, nil); err == nil {
		t.Error("an unparsable expression should fail")
	}
}

func TestOutputterCircularDefinition(t *testing.T) {
	_, err := NewOutputter("", map[string]string{"a": "b", "b": "a"}, nil)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Errorf("expected a circular-definition error, got %v", err)
	}
}

func TestCheckOutputVars(t *testing.T) {
	m := CreateTestModel()

	o, err := NewOutputter("", map[string]string{
		"stored":     "ZNH4",
		"conversion": "conv(NH3_w, NH3)",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(m); err != nil {
		t.Error(err)
	}

	o, err = NewOutputter("", map[string]string{"NH3 out": "NH3"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(m); err == nil ||
		!strings.Contains(err.Error(), "unsupported characters") {
		t.Errorf("expected a bad-name error, got %v", err)
	}

	o, err = NewOutputter("", map[string]string{"foo": "CO * 2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(m); err == nil ||
		!strings.Contains(err.Error(), "CO") {
		t.Errorf("expected an undefined-variable error, got %v", err)
	}
}

func TestOutput(t *testing.T) {
	m := printTestModel(t)
	dir, err := ioutil.TempDir("", "catsoutput")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	fileName := filepath.Join(dir, "out.csv")

	o, err := NewOutputter(fileName, map[string]string{
		"NH3ppm": "ppm(NH3, T)",
		"stored": "ZNH4",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(m); err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(m); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	wantRows := 1 + len(m.Times())*len(m.Cells())
	if len(rows) != wantRows {
		t.Fatalf("got %d rows, expected %d", len(rows), wantRows)
	}
	if strings.Join(rows[0], ",") != "time,z,NH3ppm,stored" {
		t.Errorf("header = %v", rows[0])
	}

	// First data row holds the recorded initial state at the first node.
	first := make([]float64, len(rows[1]))
	for i, field := range rows[1] {
		if first[i], err = strconv.ParseFloat(field, 64); err != nil {
			t.Fatal(err)
		}
	}
	if first[0] != 0 || different(first[1], 1, testTolerance) {
		t.Errorf("first row at time %g, z %g", first[0], first[1])
	}
	if want := ConcToPPM(1.e-6, testTemp, testPress); different(first[2], want, testTolerance) {
		t.Errorf("NH3ppm = %g, expected %g", first[2], want)
	}
	if different(first[3], 0.01, testTolerance) {
		t.Errorf("stored = %g, expected %g", first[3], 0.01)
	}

	// Expressions must evaluate to numbers.
	o, err = NewOutputter(fileName, map[string]string{"flag": "NH3 > 0"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(m); err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(m); err == nil ||
		!strings.Contains(err.Error(), "not numeric") {
		t.Errorf("expected a non-numeric error, got %v", err)
	}

	// Output before anything has been recorded fails.
	o, err = NewOutputter(fileName, map[string]string{"NH3ppm": "ppm(NH3, T)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(CreateTestModel()); err == nil ||
		!strings.Contains(err.Error(), "no results") {
		t.Errorf("expected a no-results error, got %v", err)
	}
}
