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
	"strings"
	"sync"
	"testing"
)

func TestCalculationsVisitsEveryCell(t *testing.T) {
	m := CreateTestModel()
	m.Dt = 2.5

	var mx sync.Mutex
	counts := make(map[*Cell]int)
	var dts []float64
	visit := func(c *Cell, Δt float64) {
		mx.Lock()
		counts[c]++
		dts = append(dts, Δt)
		mx.Unlock()
	}
	if err := Calculations(visit)(m); err != nil {
		t.Fatal(err)
	}

	if len(counts) != len(m.Cells()) {
		t.Fatalf("visited %d cells, expected %d", len(counts), len(m.Cells()))
	}
	for _, c := range m.Cells() {
		if counts[c] != 1 {
			t.Errorf("node %d visited %d times", c.index, counts[c])
		}
	}
	if counts[m.inlet] != 0 {
		t.Error("the inlet boundary cell must not be manipulated")
	}
	for _, dt := range dts {
		if dt != 2.5 {
			t.Errorf("manipulator received Δt=%g, expected 2.5", dt)
		}
	}
}

func TestResetCells(t *testing.T) {
	m := CreateTestModel()
	if err := ApplyInitialConditions()(m); err != nil {
		t.Fatal(err)
	}
	for _, c := range m.Cells() {
		c.Cb[0] = 1
		c.Q[0] = 0.05
	}
	m.inlet.Cb[0] = 1
	m.tIndex = 7
	m.Done = true
	if err := RecordState()(m); err != nil {
		t.Fatal(err)
	}

	if err := ResetCells()(m); err != nil {
		t.Fatal(err)
	}
	for i, c := range m.Cells() {
		if c.Cb[0] != 0 || c.Cw[0] != 0 || c.Q[0] != 0 {
			t.Errorf("node %d was not cleared", i)
		}
	}
	if m.inlet.Cb[0] != 0 {
		t.Error("the inlet boundary was not cleared")
	}
	if m.tIndex != 0 || m.Done {
		t.Error("the simulation position was not rewound")
	}
	if m.results != nil || m.trajectory != nil {
		t.Error("recorded results were not discarded")
	}
}

func TestRecordStateAndResults(t *testing.T) {
	m := CreateTestModel()
	m.SetConstIC("NH3", 1.e-6).SetConstIC("ZNH4", 0.01)
	if err := ApplyInitialConditions()(m); err != nil {
		t.Fatal(err)
	}
	if err := RecordState()(m); err != nil {
		t.Fatal(err)
	}

	res, err := m.Results("NH3", "NH3_w", "ZNH4", "ZH", "T", "V")
	if err != nil {
		t.Fatal(err)
	}
	for name, vals := range res {
		if len(vals) != len(m.Times()) {
			t.Fatalf("%s: %d time rows, expected %d", name, len(vals), len(m.Times()))
		}
		if len(vals[0]) != len(m.Cells()) {
			t.Fatalf("%s: %d node columns, expected %d", name, len(vals[0]), len(m.Cells()))
		}
	}
	for i := range m.Cells() {
		if res["NH3"][0][i] != 1.e-6 || res["NH3_w"][0][i] != 1.e-6 {
			t.Errorf("node %d: recorded gas state is wrong", i)
		}
		if res["ZNH4"][0][i] != 0.01 {
			t.Errorf("node %d: recorded coverage is wrong", i)
		}
		if different(res["ZH"][0][i], testSiteDensity-0.01, testTolerance) {
			t.Errorf("node %d: recorded free sites are wrong", i)
		}
		if res["T"][0][i] != testTemp {
			t.Errorf("node %d: recorded temperature is wrong", i)
		}
		if res["V"][0][i] <= 0 {
			t.Errorf("node %d: recorded velocity is wrong", i)
		}
	}

	// Rows that have not been reached yet stay zero.
	if res["T"][1][0] != 0 {
		t.Error("unreached time rows should be zero")
	}

	if _, err := m.Results("bogus"); err == nil ||
		!strings.Contains(err.Error(), `unknown results variable "bogus"`) {
		t.Errorf("expected an unknown-variable error, got %v", err)
	}
}

func TestResultsWithoutRecording(t *testing.T) {
	m := CreateTestModel()
	if _, err := m.Results("NH3"); err == nil ||
		!strings.Contains(err.Error(), "no results") {
		t.Errorf("expected a no-results error, got %v", err)
	}
}

func TestRecordStateRequiresDiscretization(t *testing.T) {
	m := NewMonolith()
	if err := RecordState()(m); err == nil {
		t.Error("expected an error for an undiscretized model")
	}
}

func TestLog(t *testing.T) {
	m := CreateTestModel()
	m.stats = SimulationStatus{Time: 4, Step: 2, Steps: 20}

	c := make(chan *SimulationStatus, 1)
	if err := Log(c)(m); err != nil {
		t.Fatal(err)
	}
	status := <-c
	if status.Time != 4 || status.Step != 2 || status.Steps != 20 {
		t.Errorf("unexpected status %v", status)
	}
	if status.Walltime < 0 {
		t.Errorf("negative walltime %v", status.Walltime)
	}

	// A nil channel disables logging without blocking.
	if err := Log(nil)(m); err != nil {
		t.Fatal(err)
	}
}
