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
	"math"
	"strings"
	"testing"
)

func TestBoundTransforms(t *testing.T) {
	const lo, hi = 2., 10.
	for _, v := range []float64{2.1, 5, 6, 9.9} {
		y := toUnbounded(v, lo, hi)
		if back := fromUnbounded(y, lo, hi); different(back, v, 1.e-6) {
			t.Errorf("%g did not survive the transform round trip: %g", v, back)
		}
	}
	// Any real optimization coordinate maps back inside the bounds.
	for _, y := range []float64{-1.e3, -1, 0, 1, 1.e3} {
		v := fromUnbounded(y, lo, hi)
		if v < lo || v > hi {
			t.Errorf("y=%g decoded to %g outside [%g, %g]", y, v, lo, hi)
		}
	}
	// Out-of-range values clip to the margins instead of diverging.
	if y := toUnbounded(1, lo, hi); math.IsInf(y, 0) || math.IsNaN(y) {
		t.Errorf("clipped transform is not finite: %g", y)
	}

	// Pre-exponentials transform in log space.
	fp := freeParam{b: Bounds{Lo: 1.e4, Hi: 1.e6}, logSpace: true}
	if v := fp.decode(fp.encode(1.e5)); different(v, 1.e5, 1.e-6) {
		t.Errorf("log-space round trip changed 1e5 to %g", v)
	}
}

func TestNewFitProblemValidation(t *testing.T) {
	data, err := NewLightOffData("NH3", []float64{0, 1}, []float64{0, 10})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewFitProblem(NewMonolith(), data); err == nil ||
		!strings.Contains(err.Error(), "discretized") {
		t.Errorf("expected a discretization error, got %v", err)
	}

	m := CreateTestModel()
	if _, err := NewFitProblem(m); err == nil ||
		!strings.Contains(err.Error(), "no breakthrough data") {
		t.Errorf("expected a no-data error, got %v", err)
	}

	bogus, err := NewLightOffData("CO", []float64{0, 1}, []float64{0, 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFitProblem(m, bogus); err == nil ||
		!strings.Contains(err.Error(), `undeclared gas species "CO"`) {
		t.Errorf("expected an undeclared-species error, got %v", err)
	}

	// Sample times must lie inside the model's temporal domain; the
	// interpolant would otherwise silently hold its endpoint values.
	late, err := NewLightOffData("NH3", []float64{0, 140}, []float64{0, 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFitProblem(m, late); err == nil ||
		!strings.Contains(err.Error(), "sample time 140 is past the temporal domain end 40") {
		t.Errorf("expected a domain-end error, got %v", err)
	}
	early, err := NewLightOffData("NH3", []float64{-5, 10}, []float64{0, 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFitProblem(m, early); err == nil ||
		!strings.Contains(err.Error(), "sample time -5 is before the temporal domain start 0") {
		t.Errorf("expected a domain-start error, got %v", err)
	}

	p, err := NewFitProblem(m, data)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxEvaluations != 500 || p.Tolerance != 1.e-8 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestFixReactions(t *testing.T) {
	m := CreateTestModel()
	data, _ := NewLightOffData("NH3", []float64{0, 1}, []float64{0, 10})
	p, err := NewFitProblem(m, data)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.FixReactions("nope"); err == nil {
		t.Error("expected an error fixing an undeclared reaction")
	}
	p.FixAllReactions()
	if _, err := p.buildFreeParams(); err == nil ||
		!strings.Contains(err.Error(), "all reactions are fixed") {
		t.Errorf("expected an all-fixed error, got %v", err)
	}
	if err := p.UnfixReactions("r1"); err != nil {
		t.Fatal(err)
	}
	fps, err := p.buildFreeParams()
	if err != nil {
		t.Fatal(err)
	}
	if len(fps) != 4 { // A, E, dH, dS
		t.Errorf("expected 4 free parameters, got %d", len(fps))
	}
	// Default pre-exponential bounds are ±20% around the current value.
	if different(fps[0].b.Lo, 0.8*250000, testTolerance) ||
		different(fps[0].b.Hi, 1.2*250000, testTolerance) {
		t.Errorf("unexpected default bounds %+v", fps[0].b)
	}
	if !fps[0].logSpace || fps[1].logSpace {
		t.Error("only the pre-exponential should vary in log space")
	}
}

func TestSetParamBounds(t *testing.T) {
	m := CreateTestModel()
	data, _ := NewLightOffData("NH3", []float64{0, 1}, []float64{0, 10})
	p, err := NewFitProblem(m, data)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.SetParamBounds("nope", "A", 1, 2); err == nil {
		t.Error("expected an error for an undeclared reaction")
	}
	if err := p.SetParamBounds("r1", "Z", 1, 2); err == nil ||
		!strings.Contains(err.Error(), `no parameter "Z"`) {
		t.Errorf("expected a parameter-name error, got %v", err)
	}
	if err := p.SetParamBounds("r1", "E", 5, 5); err == nil ||
		!strings.Contains(err.Error(), "lower bound") {
		t.Errorf("expected an ordering error, got %v", err)
	}
	if err := p.SetParamBounds("r1", "A", -1, 2); err == nil ||
		!strings.Contains(err.Error(), "positive") {
		t.Errorf("expected a positivity error, got %v", err)
	}
	if err := p.SetParamBounds("r1", "A", 1.e5, 5.e5); err != nil {
		t.Fatal(err)
	}
	fps, err := p.buildFreeParams()
	if err != nil {
		t.Fatal(err)
	}
	if fps[0].b.Lo != 1.e5 || fps[0].b.Hi != 5.e5 {
		t.Errorf("explicit bounds were not used: %+v", fps[0].b)
	}

	// Factor bounds derive a range around the current value.
	if err := p.SetParamFactorBounds("r1", "dS", 0.5); err != nil {
		t.Fatal(err)
	}
	b := p.bounds["r1/dS"]
	if different(b.Lo, 30-15, testTolerance) || different(b.Hi, 30+15, testTolerance) {
		t.Errorf("unexpected factor bounds %+v", b)
	}
	if err := p.SetParamFactorBounds("r1", "dS", -1); err == nil {
		t.Error("expected an error for a non-positive factor")
	}
}

func TestBreakthroughErrors(t *testing.T) {
	m := CreateTestModel()
	if _, _, err := m.Breakthrough("CO"); err == nil ||
		!strings.Contains(err.Error(), `undeclared gas species "CO"`) {
		t.Errorf("expected an undeclared-species error, got %v", err)
	}
	if _, _, err := m.Breakthrough("NH3"); err == nil ||
		!strings.Contains(err.Error(), "no results") {
		t.Errorf("expected a no-results error, got %v", err)
	}
}

// Fitting synthetic data generated by the model itself: starting from a
// perturbed pre-exponential, the optimizer must reduce the mismatch.
func TestFitImprovesObjective(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping the optimization in short mode")
	}

	// Generate the observation series at the true parameters.
	m := CreateTestModel()
	for _, f := range []DomainManipulator{
		ApplyInitialConditions(),
		InitializeAutoScaling(),
	} {
		if err := f(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.RunSolver(nil); err != nil {
		t.Fatal(err)
	}
	times, ppm, err := m.Breakthrough("NH3")
	if err != nil {
		t.Fatal(err)
	}
	full, err := NewLightOffData("NH3", times, ppm)
	if err != nil {
		t.Fatal(err)
	}
	data := full.Select(EveryNth(2))

	// Perturb the pre-exponential and fit it back.
	r := m.Reaction("r1")
	truth := r.Params()
	pv := r.Params()
	pv[0] = 150000
	r.SetParams(pv)

	p, err := NewFitProblem(m, data)
	if err != nil {
		t.Fatal(err)
	}
	p.MaxEvaluations = 120
	if err := p.SetParamBounds("r1", "A", 1.e5, 5.e5); err != nil {
		t.Fatal(err)
	}
	// Pin the thermodynamic parameters so only A is effectively free.
	if err := p.SetParamBounds("r1", "E", -1.e-6, 1.e-6); err != nil {
		t.Fatal(err)
	}
	if err := p.SetParamBounds("r1", "dH", -54000.01, -53999.99); err != nil {
		t.Fatal(err)
	}
	if err := p.SetParamBounds("r1", "dS", 29.9999, 30.0001); err != nil {
		t.Fatal(err)
	}

	before, err := p.Report()
	if err != nil {
		t.Fatal(err)
	}
	if before.Objective <= 0 {
		t.Fatalf("the perturbed model should mismatch the data, objective %g", before.Objective)
	}

	rep, err := p.Fit()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Objective >= before.Objective {
		t.Errorf("fit did not improve the objective: %g -> %g", before.Objective, rep.Objective)
	}
	if rep.Evaluations <= 0 {
		t.Error("no objective evaluations were counted")
	}

	// The fitted pre-exponential moves toward the generating value.
	fitted := m.Reaction("r1").Params()[0]
	if math.Abs(fitted-truth[0]) >= math.Abs(150000-truth[0]) {
		t.Errorf("fitted A=%g did not move toward the generating value %g", fitted, truth[0])
	}

	if len(rep.Parameters) != 4 {
		t.Errorf("expected 4 parameter rows, got %d", len(rep.Parameters))
	}
	if len(rep.Series) != 1 {
		t.Fatalf("expected one series report, got %d", len(rep.Series))
	}
	sr := rep.Series[0]
	if sr.Species != "NH3" || sr.N != len(data.Times) {
		t.Errorf("unexpected series report %+v", sr)
	}
	if sr.RMSE < 0 || math.IsNaN(sr.RMSE) {
		t.Errorf("bad RMSE %g", sr.RMSE)
	}
	if sr.R2 > 1+1.e-9 {
		t.Errorf("impossible R² %g", sr.R2)
	}
}

func TestFitStatistics(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{1, 2, 3, 4}
	if v := rmse(a, b); v != 0 {
		t.Errorf("rmse of identical series: %g", v)
	}
	if v := meanBias(a, b); v != 0 {
		t.Errorf("mean bias of identical series: %g", v)
	}

	c := []float64{2, 3, 4, 5} // uniformly one higher
	if v := meanBias(a, c); different(v, 1, testTolerance) {
		t.Errorf("expected mean bias 1, got %g", v)
	}
	if v := meanErr(a, c); different(v, 1, testTolerance) {
		t.Errorf("expected mean error 1, got %g", v)
	}
	if v := rmse(a, c); different(v, 1, testTolerance) {
		t.Errorf("expected RMSE 1, got %g", v)
	}
	if !math.IsNaN(rmse(nil, nil)) {
		t.Error("empty series should give NaN")
	}
}
