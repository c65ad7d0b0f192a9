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

func TestDiscretizationMethodString(t *testing.T) {
	if FiniteDifference.String() != "FiniteDifference" {
		t.Errorf("got %q", FiniteDifference.String())
	}
	if OrthogonalCollocation.String() != "OrthogonalCollocation" {
		t.Errorf("got %q", OrthogonalCollocation.String())
	}
}

func TestBuildConstraintsValidation(t *testing.T) {
	// base returns a valid specification; each case breaks one aspect of
	// it and names the expected complaint.
	base := func() *Monolith {
		return NewMonolith().
			AddAxialDim(0, 5).
			AddTemporalDim(0, 10).
			SetBulkPorosity(0.4).
			SetWashcoatPorosity(0.4).
			SetSurfaceToVolume(10).
			SetLinearVelocity(100).
			SetIsothermalTemp(500).
			AddGasSpecies("NH3").
			SetMassTransferCoef(10)
	}
	if err := base().BuildConstraints(); err != nil {
		t.Fatalf("the base specification should build: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(m *Monolith)
		want   string
	}{
		{"no length", func(m *Monolith) { m.length = 0 }, "axial dimension"},
		{"no times", func(m *Monolith) { m.times = nil }, "temporal dimension"},
		{"bad bulk porosity", func(m *Monolith) { m.bulkPorosity = 1.5 }, "bulk porosity"},
		{"no velocity", func(m *Monolith) { m.linearVelocity = 0 }, "velocity"},
		{"no surface area", func(m *Monolith) { m.surfToVol = 0 }, "surface-to-volume"},
		{"no temperature", func(m *Monolith) { m.temp = nil }, "temperature model"},
		{"no gas species", func(m *Monolith) { m.gas = nil }, "no gas species"},
		{"no mass transfer", func(m *Monolith) { m.gas[0].Km = 0 }, "mass transfer"},
		{"bad site occupancy", func(m *Monolith) {
			m.AddSites(Site{Name: "Z", Density: 1, Occupancy: map[string]float64{"missing": 1}})
		}, "undeclared surface species"},
		{"bad boundary condition", func(m *Monolith) { m.SetConstBC("CO", 1) }, "undeclared gas species"},
	}
	for _, c := range cases {
		m := base()
		c.mutate(m)
		err := m.BuildConstraints()
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: expected an error containing %q, got %v", c.name, c.want, err)
		}
	}

	// A washcoat porosity is only required once surface species exist.
	m := base()
	m.washcoatPore = 0
	if err := m.BuildConstraints(); err != nil {
		t.Errorf("washcoat porosity should default without surface species: %v", err)
	}
	if m.washcoatPore != 1 {
		t.Errorf("expected default washcoat porosity 1, got %g", m.washcoatPore)
	}
	m2 := base().AddSurfaceSpecies("q1")
	m2.washcoatPore = 0
	if err := m2.BuildConstraints(); err == nil ||
		!strings.Contains(err.Error(), "washcoat porosity") {
		t.Errorf("expected a washcoat porosity error, got %v", err)
	}
}

func TestDiscretizeTimesExpansion(t *testing.T) {
	m := CreateTestModel() // AddTemporalDim(0, 40) with 20 steps
	times := m.Times()
	if len(times) != 21 {
		t.Fatalf("expected 21 time points, got %d", len(times))
	}
	for i, tv := range times {
		if absDifferent(tv, 2*float64(i), testTolerance) {
			t.Errorf("time point %d: expected %g, got %g", i, 2*float64(i), tv)
		}
	}
}

func TestDiscretizeExplicitTimePoints(t *testing.T) {
	m := NewMonolith().
		AddAxialDim(0, 5).
		SetTemporalPoints([]float64{0, 1, 2.5, 7}).
		SetBulkPorosity(0.4).
		SetSurfaceToVolume(10).
		SetLinearVelocity(100).
		SetIsothermalTemp(500).
		AddGasSpecies("NH3").
		SetMassTransferCoef(10)
	if err := m.BuildConstraints(); err != nil {
		t.Fatal(err)
	}
	if err := m.DiscretizeModel(FiniteDifference, 99, 3, 0); err != nil {
		t.Fatal(err)
	}
	// Explicit points are kept as given; tstep is ignored.
	want := []float64{0, 1, 2.5, 7}
	times := m.Times()
	if len(times) != len(want) {
		t.Fatalf("expected %d time points, got %d", len(want), len(times))
	}
	for i, tv := range want {
		if times[i] != tv {
			t.Errorf("time point %d: expected %g, got %g", i, tv, times[i])
		}
	}
}

func TestDiscretizeFDGrid(t *testing.T) {
	m := CreateTestModel() // L=5 cm, 5 nodes
	for i, c := range m.Cells() {
		wantZ := float64(i+1) * 1.0
		if different(c.Z, wantZ, testTolerance) {
			t.Errorf("node %d: expected z=%g, got %g", i, wantZ, c.Z)
		}
		if different(c.Dz, 1.0, testTolerance) {
			t.Errorf("node %d: expected dz=1, got %g", i, c.Dz)
		}
	}
	if m.inlet.Z != 0 {
		t.Errorf("inlet boundary is at z=%g", m.inlet.Z)
	}
	for i, s := range m.scale {
		if s != 1 {
			t.Errorf("scale %d not initialized to 1: %g", i, s)
		}
	}
}

func TestDiscretizeModelErrors(t *testing.T) {
	m := NewMonolith()
	if err := m.DiscretizeModel(FiniteDifference, 10, 5, 0); err == nil ||
		!strings.Contains(err.Error(), "BuildConstraints") {
		t.Errorf("expected a build-order error, got %v", err)
	}

	build := func() *Monolith {
		b := NewMonolith().
			AddAxialDim(0, 5).
			AddTemporalDim(0, 10).
			SetBulkPorosity(0.4).
			SetSurfaceToVolume(10).
			SetLinearVelocity(100).
			SetIsothermalTemp(500).
			AddGasSpecies("NH3").
			SetMassTransferCoef(10)
		if err := b.BuildConstraints(); err != nil {
			t.Fatal(err)
		}
		return b
	}

	if err := build().DiscretizeModel(FiniteDifference, 0, 5, 0); err == nil ||
		!strings.Contains(err.Error(), "time step") {
		t.Errorf("expected a time step error, got %v", err)
	}
	if err := build().DiscretizeModel(FiniteDifference, 10, 1, 0); err == nil ||
		!strings.Contains(err.Error(), "at least 2 nodes") {
		t.Errorf("expected a node count error, got %v", err)
	}
	if err := build().DiscretizeModel(OrthogonalCollocation, 10, 0, 2); err == nil ||
		!strings.Contains(err.Error(), "finite element") {
		t.Errorf("expected an element count error, got %v", err)
	}
	if err := build().DiscretizeModel(OrthogonalCollocation, 10, 2, 0); err == nil ||
		!strings.Contains(err.Error(), "collocation") {
		t.Errorf("expected a collocation point error, got %v", err)
	}
	if err := build().SetTemporalPoints([]float64{0, 2, 1}).DiscretizeModel(FiniteDifference, 10, 5, 0); err == nil ||
		!strings.Contains(err.Error(), "not strictly increasing") {
		t.Errorf("expected a time ordering error, got %v", err)
	}
	if err := build().DiscretizeModel(DiscretizationMethod(99), 10, 2, 2); err == nil ||
		!strings.Contains(err.Error(), "unknown discretization method") {
		t.Errorf("expected an unknown-method error, got %v", err)
	}
}

// The upwind stencil differentiates a linear profile exactly at every
// node, including the first node which references the inlet boundary.
func TestUpwindGradientLinearField(t *testing.T) {
	const slope = 2.
	zs, grad := upwindOperator(5, 5)
	value := func(col int) float64 {
		if col < 0 {
			return 0 // inlet face at z=0
		}
		return slope * zs[col]
	}
	for i := range zs {
		if g := grad.apply(i, value); different(g, slope, testTolerance) {
			t.Errorf("node %d: expected gradient %g, got %g", i, slope, g)
		}
	}
}

func TestGaussPoints(t *testing.T) {
	for n := 1; n <= 5; n++ {
		pts, err := gaussPoints(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(pts) != n {
			t.Fatalf("expected %d points, got %d", n, len(pts))
		}
		for i, p := range pts {
			if p <= 0 || p >= 1 {
				t.Errorf("n=%d: point %g outside (0,1)", n, p)
			}
			// Legendre roots are symmetric about the midpoint.
			if q := pts[len(pts)-1-i]; absDifferent(p+q, 1, 1.e-12) {
				t.Errorf("n=%d: points %g and %g are not symmetric", n, p, q)
			}
		}
	}
	if _, err := gaussPoints(6); err == nil {
		t.Error("expected an error for an unsupported point count")
	}
}

// Collocation gradients built from Lagrange differentiation matrices are
// exact for polynomials up to the element's interpolation order.
func TestCollocationGradientExactness(t *testing.T) {
	const length = 2.
	zs, grad, err := collocationOperator(length, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(zs) != 6 { // 2 elements × (2 interior + right edge)
		t.Fatalf("expected 6 collocation nodes, got %d", len(zs))
	}
	if different(zs[len(zs)-1], length, testTolerance) {
		t.Errorf("last node should sit on the outlet face: %g", zs[len(zs)-1])
	}

	for name, f := range map[string]struct{ f, df func(z float64) float64 }{
		"linear":    {func(z float64) float64 { return 3*z + 1 }, func(z float64) float64 { return 3 }},
		"quadratic": {func(z float64) float64 { return z * z }, func(z float64) float64 { return 2 * z }},
		"cubic":     {func(z float64) float64 { return z * z * z }, func(z float64) float64 { return 3 * z * z }},
	} {
		value := func(col int) float64 {
			if col < 0 {
				return f.f(0)
			}
			return f.f(zs[col])
		}
		for i := range zs {
			want := f.df(zs[i])
			if got := grad.apply(i, value); math.Abs(got-want) > 1.e-9 {
				t.Errorf("%s: node %d (z=%g): expected %g, got %g", name, i, zs[i], want, got)
			}
		}
	}
}

// An orthogonal collocation discretization wires up like a finite
// difference one: linked nodes, an inlet boundary, and states sized for
// the declared species.
func TestDiscretizeCollocation(t *testing.T) {
	m := NewMonolith().
		AddAxialDim(0, 5).
		AddTemporalDim(0, 10).
		SetBulkPorosity(0.4).
		SetSurfaceToVolume(10).
		SetLinearVelocity(100).
		SetIsothermalTemp(500).
		AddGasSpecies("NH3").
		SetMassTransferCoef(10)
	if err := m.BuildConstraints(); err != nil {
		t.Fatal(err)
	}
	if err := m.DiscretizeModel(OrthogonalCollocation, 10, 2, 2); err != nil {
		t.Fatal(err)
	}
	cells := m.Cells()
	if len(cells) != 6 {
		t.Fatalf("expected 6 nodes, got %d", len(cells))
	}
	for i := 1; i < len(cells); i++ {
		if cells[i].Z <= cells[i-1].Z {
			t.Errorf("node %d is not downstream of node %d", i, i-1)
		}
		if cells[i].west != cells[i-1] {
			t.Errorf("node %d west link is wrong", i)
		}
	}
	if cells[0].west != m.inlet {
		t.Error("first collocation node is not linked to the inlet")
	}
}
