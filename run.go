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
	"runtime"
	"sync"
	"time"

	"github.com/ctessum/sparse"
)

// ResetCells clears the concentration and coverage state of all nodes
// and the inlet boundary.
func ResetCells() DomainManipulator {
	return func(m *Monolith) error {
		for _, c := range append([]*Cell{m.inlet}, m.cells...) {
			c.prepare(len(m.gas), len(m.surf), len(m.sites))
		}
		m.tIndex = 0
		m.results = nil
		m.trajectory = nil
		m.Done = false
		return nil
	}
}

// Calculations returns a function that concurrently runs a series of
// calculations on all of the model nodes.
func Calculations(calculators ...CellManipulator) DomainManipulator {

	nprocs := runtime.GOMAXPROCS(0) // number of processors
	var wg sync.WaitGroup

	return func(m *Monolith) error {
		// Concurrently run all of the calculators on all of the nodes.
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				var c *Cell
				for ii := pp; ii < len(m.cells); ii += nprocs {
					c = m.cells[ii]
					c.Lock() // Lock the cell to avoid race conditions
					for _, f := range calculators {
						f(c, m.Dt)
					}
					c.Unlock() // Unlock the cell: we're done editing it
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// Log returns a function that sends simulation status information to c
// after each time step.
func Log(c chan *SimulationStatus) DomainManipulator {
	startTime := time.Now()
	return func(m *Monolith) error {
		if c == nil {
			return nil
		}
		status := m.stats
		status.Walltime = time.Since(startTime)
		c <- &status
		return nil
	}
}

// RecordState returns a function that stores the current domain state in
// the results array. It should be run once among the initialization
// functions to capture the initial condition and then after every time
// step.
func RecordState() DomainManipulator {
	return func(m *Monolith) error {
		if !m.discretized {
			return fmt.Errorf("cats: model must be discretized before recording state")
		}
		if m.results == nil {
			m.results = sparse.ZerosDense(len(m.times), len(m.cells), len(m.varNames))
		}
		ti := m.tIndex
		for i, c := range m.cells {
			c.RLock()
			iv := 0
			for j := range m.gas {
				m.results.Set(c.Cb[j], ti, i, iv)
				iv++
			}
			for j := range m.gas {
				m.results.Set(c.Cw[j], ti, i, iv)
				iv++
			}
			for k := range m.surf {
				m.results.Set(c.Q[k], ti, i, iv)
				iv++
			}
			for k := range m.sites {
				m.results.Set(c.S[k], ti, i, iv)
				iv++
			}
			m.results.Set(c.T, ti, i, iv)
			m.results.Set(c.V, ti, i, iv+1)
			c.RUnlock()
		}
		return nil
	}
}

// VarNames returns the names of the recorded state variables, ordered as
// they appear in the results array: bulk gas concentrations, washcoat
// gas concentrations (suffix "_w"), surface coverages, free site
// concentrations, temperature, and velocity.
func (m *Monolith) VarNames() []string {
	out := make([]string, len(m.varNames))
	copy(out, m.varNames)
	return out
}

// Results returns the recorded solution for the requested variables as
// [time][node] arrays. RecordState must have run for results to exist.
func (m *Monolith) Results(outputVariables ...string) (map[string][][]float64, error) {
	if m.results == nil {
		return nil, fmt.Errorf("cats: no results have been recorded")
	}
	out := make(map[string][][]float64)
	for _, name := range outputVariables {
		iv := -1
		for j, n := range m.varNames {
			if n == name {
				iv = j
				break
			}
		}
		if iv < 0 {
			return nil, fmt.Errorf("cats: unknown results variable %q", name)
		}
		vals := make([][]float64, len(m.times))
		for ti := range m.times {
			row := make([]float64, len(m.cells))
			for i := range m.cells {
				row[i] = m.results.Get(ti, i, iv)
			}
			vals[ti] = row
		}
		out[name] = vals
	}
	return out, nil
}

// resultAt returns recorded variable iv at time index ti and node i.
func (m *Monolith) resultAt(ti, i, iv int) float64 {
	return m.results.Get(ti, i, iv)
}
