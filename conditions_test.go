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
	"testing"
)

func TestBoundaryConditionValueAt(t *testing.T) {
	m := NewMonolith().SetTimeDependentBC("NH3", 1, []TimePair{
		{Time: 30, Value: 0},
		{Time: 5, Value: 3}, // declaration order must not matter
	})
	bc := m.bcs["NH3"]

	cases := []struct {
		t, want float64
	}{
		{0, 1},
		{4.999, 1},
		{5, 3},
		{15, 3},
		{29.999, 3},
		{30, 0},
		{100, 0},
	}
	for _, c := range cases {
		if v := bc.ValueAt(c.t); absDifferent(v, c.want, testTolerance) {
			t.Errorf("t=%g: expected %g, got %g", c.t, c.want, v)
		}
	}
}

func TestBoundaryConditionRamp(t *testing.T) {
	m := NewMonolith().SetTimeDependentBC("NH3", 0,
		[]TimePair{{Time: 5, Value: 4}},
		Ramp{Time: 5, Span: 2})
	bc := m.bcs["NH3"]

	cases := []struct {
		t, want float64
	}{
		{4, 0},
		{5, 0},   // ramp start
		{6, 2},   // halfway through the ramp
		{6.5, 3}, // three quarters through
		{7, 4},   // ramp complete
		{10, 4},
	}
	for _, c := range cases {
		if v := bc.ValueAt(c.t); absDifferent(v, c.want, testTolerance) {
			t.Errorf("t=%g: expected %g, got %g", c.t, c.want, v)
		}
	}
}

func TestRampTemperature(t *testing.T) {
	rt := &RampTemperature{Start: 400, End: 600, StartTime: 10, EndTime: 30}
	cases := []struct {
		t, want float64
	}{
		{0, 400},
		{10, 400},
		{20, 500},
		{25, 550},
		{30, 600},
		{100, 600},
	}
	for _, c := range cases {
		if v := rt.Temperature(0, c.t); absDifferent(v, c.want, testTolerance) {
			t.Errorf("t=%g: expected %g K, got %g", c.t, c.want, v)
		}
	}
	// A degenerate window holds the start temperature.
	flat := &RampTemperature{Start: 400, End: 600, StartTime: 10, EndTime: 10}
	if v := flat.Temperature(0, 20); absDifferent(v, 400, testTolerance) {
		t.Errorf("degenerate ramp: expected 400 K, got %g", v)
	}
}

func TestMeasuredTemperature(t *testing.T) {
	mt, err := TemperatureProfile(
		[]float64{0, 10},
		[]float64{0, 10},
		[][]float64{
			{300, 400}, // inlet thermocouple
			{350, 450}, // outlet thermocouple
		})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		z, t, want float64
	}{
		{0, 0, 300},
		{0, 5, 350},   // temporal interpolation
		{10, 0, 350},  // downstream station
		{5, 0, 325},   // spatial interpolation
		{5, 10, 425},  // both
		{-1, 0, 300},  // upstream of the first station
		{20, 10, 450}, // downstream of the last station
		{0, 99, 400},  // past the last sample
	}
	for _, c := range cases {
		if v := mt.Temperature(c.z, c.t); absDifferent(v, c.want, testTolerance) {
			t.Errorf("z=%g t=%g: expected %g K, got %g", c.z, c.t, c.want, v)
		}
	}
}

func TestSetTemperatureFromData(t *testing.T) {
	e := &LightOffExperiment{
		Name:    "lightoff.dat",
		Columns: []string{"Elapsed Time (min)", "TC in (C)", "TC out (C)"},
		Data: map[string][]float64{
			"Elapsed Time (min)": {0, 10},
			"TC in (C)":          {300, 400},
			"TC out (C)":         {350, 450},
		},
	}

	m := CreateInertTestModel()
	if err := m.SetTemperatureFromData(e,
		[]string{"TC in (C)", "TC out (C)"}, []float64{0, 5}); err != nil {
		t.Fatal(err)
	}
	if err := ApplyInitialConditions()(m); err != nil {
		t.Fatal(err)
	}
	// Node temperatures at t=0 interpolate linearly between the inlet
	// and outlet stations.
	for _, c := range m.Cells() {
		want := 300 + 10*c.Z
		if absDifferent(c.T, want, testTolerance) {
			t.Errorf("z=%g: expected %g K, got %g", c.Z, want, c.T)
		}
	}

	if err := m.SetTemperatureFromData(e,
		[]string{"TC mid (C)"}, []float64{2.5}); err == nil ||
		!strings.Contains(err.Error(), "no column") {
		t.Errorf("expected a missing-column error, got %v", err)
	}
}

func TestTemperatureProfileErrors(t *testing.T) {
	if _, err := TemperatureProfile(nil, []float64{0}, nil); err == nil {
		t.Error("expected an error for an empty profile")
	}
	if _, err := TemperatureProfile([]float64{1, 0}, []float64{0},
		[][]float64{{300}, {300}}); err == nil ||
		!strings.Contains(err.Error(), "sorted") {
		t.Errorf("expected a sorted-positions error, got %v", err)
	}
	if _, err := TemperatureProfile([]float64{0}, []float64{0, 1},
		[][]float64{{300}}); err == nil ||
		!strings.Contains(err.Error(), "samples") {
		t.Errorf("expected a length-mismatch error, got %v", err)
	}
}

func TestInterpolate(t *testing.T) {
	xs := []float64{0, 1, 3}
	ys := []float64{0, 10, 30}
	cases := []struct {
		x, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.5, 5},
		{2, 20},
		{3, 30},
		{4, 30},
	}
	for _, c := range cases {
		if v := interpolate(xs, ys, c.x); absDifferent(v, c.want, testTolerance) {
			t.Errorf("x=%g: expected %g, got %g", c.x, c.want, v)
		}
	}
	if v := interpolate(nil, nil, 1); v != 0 {
		t.Errorf("empty series: expected 0, got %g", v)
	}
}

func TestApplyInitialConditions(t *testing.T) {
	m := CreateTestModel()
	m.SetConstIC("NH3", 1.e-6).SetConstIC("ZNH4", 0.01)
	if err := ApplyInitialConditions()(m); err != nil {
		t.Fatal(err)
	}

	v := m.interstitialVelocity(testTemp)
	for i, c := range m.Cells() {
		if absDifferent(c.T, testTemp, testTolerance) {
			t.Errorf("node %d: temperature %g", i, c.T)
		}
		if different(c.V, v, testTolerance) {
			t.Errorf("node %d: velocity %g, expected %g", i, c.V, v)
		}
		if absDifferent(c.Cb[0], 1.e-6, testTolerance) || absDifferent(c.Cw[0], 1.e-6, testTolerance) {
			t.Errorf("node %d: gas initial condition not applied: Cb=%g Cw=%g", i, c.Cb[0], c.Cw[0])
		}
		if absDifferent(c.Q[0], 0.01, testTolerance) {
			t.Errorf("node %d: coverage initial condition not applied: %g", i, c.Q[0])
		}
		if different(c.S[0], testSiteDensity-0.01, testTolerance) {
			t.Errorf("node %d: site balance not closed: S=%g", i, c.S[0])
		}
		// The beginning-of-step copies start equal to the state.
		if c.Cbi[0] != c.Cb[0] || c.Cwi[0] != c.Cw[0] || c.Qi[0] != c.Q[0] {
			t.Errorf("node %d: beginning-of-step arrays were not initialized", i)
		}
	}
	// The feed has not yet started at t=0.
	if absDifferent(m.inlet.Cb[0], 0, testTolerance) {
		t.Errorf("inlet concentration at t=0: %g", m.inlet.Cb[0])
	}
	if m.tIndex != 0 || m.Done {
		t.Error("initial conditions did not rewind the simulation state")
	}
}

func TestApplyInitialConditionsErrors(t *testing.T) {
	m := CreateTestModel()
	m.SetConstIC("XYZ", 1)
	err := ApplyInitialConditions()(m)
	if err == nil || !strings.Contains(err.Error(), `undeclared species "XYZ"`) {
		t.Errorf("expected an undeclared-species error, got %v", err)
	}

	m2 := NewMonolith()
	if err := ApplyInitialConditions()(m2); err == nil {
		t.Error("expected an error for an undiscretized model")
	}
}

func TestInletConcentration(t *testing.T) {
	m := CreateTestModel()
	feed := PPMToConc(testFeedPPM, testTemp, testPress)
	if v := m.InletConcentration("NH3", 10); different(v, feed, testTolerance) {
		t.Errorf("expected %g, got %g", feed, v)
	}
	if v := m.InletConcentration("NH3", 0); v != 0 {
		t.Errorf("expected no feed at t=0, got %g", v)
	}
	if v := m.InletConcentration("XYZ", 10); v != 0 {
		t.Errorf("expected zero for a species without a boundary condition, got %g", v)
	}
}

func TestStepStartAndClipNegatives(t *testing.T) {
	m := CreateTestModel()
	c := m.Cells()[0]
	c.Cb[0] = 2
	c.Cw[0] = -1
	c.Q[0] = 0.5

	StepStart()(c, 0)
	if c.Cbi[0] != 2 || c.Cwi[0] != -1 || c.Qi[0] != 0.5 {
		t.Error("step start did not copy the state")
	}

	ClipNegatives()(c, 0)
	if c.Cw[0] != 0 {
		t.Errorf("negative washcoat concentration survived: %g", c.Cw[0])
	}
	if c.Cb[0] != 2 || c.Q[0] != 0.5 {
		t.Error("clipping changed a positive value")
	}
}
