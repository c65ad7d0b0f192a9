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
	"sort"
)

// TimePair is one entry of a stepwise boundary specification: the inlet
// takes Value [mol/L] beginning at Time [min].
type TimePair struct {
	Time  float64
	Value float64
}

// Ramp smooths the boundary step at the given step time over Span
// minutes instead of applying it instantaneously.
type Ramp struct {
	Time float64
	Span float64
}

// BoundaryCondition describes the inlet concentration of one gas species
// over time.
type BoundaryCondition struct {
	base  float64
	pairs []TimePair
	ramps map[float64]float64
}

// ValueAt returns the inlet concentration [mol/L] at time t [min].
func (bc *BoundaryCondition) ValueAt(t float64) float64 {
	val := bc.base
	for _, p := range bc.pairs {
		if t < p.Time {
			break
		}
		if span, ok := bc.ramps[p.Time]; ok && span > 0 && t < p.Time+span {
			// Inside the ramp window: interpolate between the previous
			// plateau and the new value.
			return val + (p.Value-val)*(t-p.Time)/span
		}
		val = p.Value
	}
	return val
}

// SetConstBC sets a constant inlet concentration [mol/L] for a gas
// species.
func (m *Monolith) SetConstBC(species string, value float64) *Monolith {
	m.bcs[species] = &BoundaryCondition{base: value}
	return m
}

// SetTimeDependentBC sets a stepwise inlet concentration for a gas
// species: the inlet holds base [mol/L] until the first pair's time and
// each pair's value from its time onward. Optional ramps replace steps
// with linear transitions.
func (m *Monolith) SetTimeDependentBC(species string, base float64, pairs []TimePair, ramps ...Ramp) *Monolith {
	bc := &BoundaryCondition{base: base, ramps: make(map[float64]float64)}
	bc.pairs = append(bc.pairs, pairs...)
	sort.Slice(bc.pairs, func(i, j int) bool { return bc.pairs[i].Time < bc.pairs[j].Time })
	for _, r := range ramps {
		bc.ramps[r.Time] = r.Span
	}
	m.bcs[species] = bc
	return m
}

// SetConstIC sets the initial concentration of a species throughout the
// reactor: mol/L for gas species (applied to both the bulk channel and
// the washcoat) and mol/L washcoat for surface species.
func (m *Monolith) SetConstIC(species string, value float64) *Monolith {
	m.ics[species] = value
	return m
}

// TemperatureModel gives the gas temperature [K] as a function of axial
// position z [cm] and time t [min].
type TemperatureModel interface {
	Temperature(z, t float64) float64
}

// IsothermalTemperature is a spatially and temporally uniform
// temperature [K].
type IsothermalTemperature float64

// Temperature implements the TemperatureModel interface.
func (T IsothermalTemperature) Temperature(z, t float64) float64 { return float64(T) }

// RampTemperature is a spatially uniform temperature that rises linearly
// from Start [K] at StartTime to End at EndTime and holds outside that
// window. It models temperature-programmed light-off experiments.
type RampTemperature struct {
	Start, End         float64
	StartTime, EndTime float64
}

// Temperature implements the TemperatureModel interface.
func (rt *RampTemperature) Temperature(z, t float64) float64 {
	if t <= rt.StartTime || rt.EndTime <= rt.StartTime {
		return rt.Start
	}
	if t >= rt.EndTime {
		return rt.End
	}
	frac := (t - rt.StartTime) / (rt.EndTime - rt.StartTime)
	return rt.Start + (rt.End-rt.Start)*frac
}

// MeasuredTemperature interpolates thermocouple readings measured at
// fixed axial stations: linearly in time within each station's series
// and linearly in space between stations. Outside the measured range the
// nearest value is held.
type MeasuredTemperature struct {
	Positions []float64   // station positions [cm], increasing
	Times     []float64   // sample times [min], increasing
	Series    [][]float64 // Series[i][j] is station i at Times[j] [K]
}

// Temperature implements the TemperatureModel interface.
func (mt *MeasuredTemperature) Temperature(z, t float64) float64 {
	if len(mt.Positions) == 1 {
		return interpolate(mt.Times, mt.Series[0], t)
	}
	i := sort.SearchFloat64s(mt.Positions, z)
	if i == 0 {
		return interpolate(mt.Times, mt.Series[0], t)
	}
	if i >= len(mt.Positions) {
		return interpolate(mt.Times, mt.Series[len(mt.Positions)-1], t)
	}
	lo := interpolate(mt.Times, mt.Series[i-1], t)
	hi := interpolate(mt.Times, mt.Series[i], t)
	frac := (z - mt.Positions[i-1]) / (mt.Positions[i] - mt.Positions[i-1])
	return lo + (hi-lo)*frac
}

// interpolate linearly interpolates ys over xs at x, holding the end
// values outside the range. xs must be increasing.
func interpolate(xs, ys []float64, x float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	i := sort.SearchFloat64s(xs, x)
	frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + (ys[i]-ys[i-1])*frac
}

// SetIsothermalTemp sets a uniform, constant temperature [K].
func (m *Monolith) SetIsothermalTemp(T float64) *Monolith {
	m.temp = IsothermalTemperature(T)
	return m
}

// SetTemperatureModel sets an arbitrary temperature field, for example
// one built from measured thermocouple data.
func (m *Monolith) SetTemperatureModel(tm TemperatureModel) *Monolith {
	m.temp = tm
	return m
}

// SetTemperatureFromData installs a temperature field interpolated from
// the named thermocouple columns of a light-off experiment, one column
// per axial station position [cm]: linear in time at each station and
// linear in space between stations.
func (m *Monolith) SetTemperatureFromData(e *LightOffExperiment, cols []string, positions []float64) error {
	mt, err := e.TemperatureProfile(cols, positions)
	if err != nil {
		return err
	}
	m.SetTemperatureModel(mt)
	return nil
}

// ApplyInitialConditions returns a function that installs the configured
// initial state in every node: concentrations from the initial-condition
// table, temperatures from the temperature model at the first time
// point, and velocities from the flow specification.
func ApplyInitialConditions() DomainManipulator {
	return func(m *Monolith) error {
		if !m.discretized {
			return fmt.Errorf("cats: model must be discretized before initial conditions are applied")
		}
		t0 := m.times[0]
		for _, c := range append([]*Cell{m.inlet}, m.cells...) {
			c.T = m.temp.Temperature(c.Z, t0)
		}
		m.updateVelocities()
		for name, val := range m.ics {
			if i, ok := m.gasIndex[name]; ok {
				for _, c := range m.cells {
					c.Cb[i] = val
					c.Cw[i] = val
				}
				continue
			}
			if i, ok := m.qIndex[name]; ok {
				for _, c := range m.cells {
					c.Q[i] = val
				}
				continue
			}
			return fmt.Errorf("cats: initial condition for undeclared species %q", name)
		}
		for _, c := range m.cells {
			m.updateSites(c)
			c.stepStart()
		}
		m.applyBoundaryAt(t0)
		m.tIndex = 0
		m.Done = false
		return nil
	}
}

// applyBoundaryAt sets the inlet boundary cell state for time t, and
// refreshes temperatures and velocities throughout the domain.
func (m *Monolith) applyBoundaryAt(t float64) {
	for _, c := range append([]*Cell{m.inlet}, m.cells...) {
		c.T = m.temp.Temperature(c.Z, t)
	}
	m.updateVelocities()
	for name, bc := range m.bcs {
		if i, ok := m.gasIndex[name]; ok {
			m.inlet.Cb[i] = bc.ValueAt(t)
		}
	}
}

// InletConcentration returns the inlet concentration [mol/L] of a gas
// species at time t [min], or zero if no boundary condition is set.
func (m *Monolith) InletConcentration(species string, t float64) float64 {
	if bc, ok := m.bcs[species]; ok {
		return bc.ValueAt(t)
	}
	return 0
}

// StepStart returns a function that stores the beginning-of-step state
// of each node before an implicit solve.
func StepStart() CellManipulator {
	return func(c *Cell, Δt float64) {
		c.stepStart()
	}
}

// ClipNegatives returns a function that clamps trace negative
// concentrations left behind by Newton overshoot back to zero.
func ClipNegatives() CellManipulator {
	return func(c *Cell, Δt float64) {
		for _, arr := range [][]float64{c.Cb, c.Cw, c.Q} {
			for i, v := range arr {
				if v < 0 {
					arr[i] = 0
				}
			}
		}
	}
}
