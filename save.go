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
	"encoding/json"
	"fmt"
	"io"

	"github.com/ctessum/sparse"
)

// savedReaction is one reaction in a model snapshot.
type savedReaction struct {
	Name string
	Type ReactionType
	Info ReactionInfo
}

// savedResults carries the recorded solution grid in a form that
// survives a JSON round trip.
type savedResults struct {
	Shape    []int
	Elements []float64
}

// modelState is the snapshot written by SaveModelState. It is
// self-describing: geometry, species, and rate parameters ride along
// with the current fields, so a checkpoint taken during a parameter fit
// carries the kinetics it was evaluated with.
type modelState struct {
	Version string

	// Geometry and flow.
	Length            float64 // [cm]
	Radius            float64 // [cm]
	BulkPorosity      float64
	WashcoatPorosity  float64
	SurfaceToVolume   float64 // [cm⁻¹]
	HydraulicDiameter float64 // [cm]
	SpaceVelocity     float64 // volumes/min at RefTemp and RefPress
	RefTemp           float64 // [K]
	RefPress          float64 // [kPa]
	LinearVelocity    float64 // [cm/min]

	GasSpecies     []*GasSpecies
	SurfaceSpecies []*SurfaceSpecies
	Sites          []*Site
	Reactions      []savedReaction

	// Simulation state.
	Cells     []*Cell
	Inlet     *Cell
	Times     []float64
	TimeIndex int
	VarNames  []string
	Results   *savedResults
	Done      bool
}

// SaveModelState writes a JSON snapshot of the model: geometry, species,
// reaction parameters, and the current fields. The snapshot restores
// with LoadModelState into a model built with the same species and
// discretization, which then resumes from the saved time.
func (m *Monolith) SaveModelState(w io.Writer) error {
	s := modelState{
		Version:           Version,
		Length:            m.length,
		Radius:            m.radius,
		BulkPorosity:      m.bulkPorosity,
		WashcoatPorosity:  m.washcoatPore,
		SurfaceToVolume:   m.surfToVol,
		HydraulicDiameter: m.hydraulicDiam,
		SpaceVelocity:     m.spaceVelocity,
		RefTemp:           m.refTemp,
		RefPress:          m.refPress,
		LinearVelocity:    m.linearVelocity,
		GasSpecies:        m.gas,
		SurfaceSpecies:    m.surf,
		Sites:             m.sites,
		Cells:             m.cells,
		Inlet:             m.inlet,
		Times:             m.times,
		TimeIndex:         m.tIndex,
		VarNames:          m.varNames,
		Done:              m.Done,
	}
	for _, r := range m.reactions {
		s.Reactions = append(s.Reactions, savedReaction{
			Name: r.Name(), Type: r.Type(), Info: r.Info()})
	}
	if m.results != nil {
		s.Results = &savedResults{Shape: m.results.Shape, Elements: m.results.Elements}
	}
	if err := json.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("cats: saving model state: %v", err)
	}
	return nil
}

// LoadModelState restores a snapshot written by SaveModelState into a
// model that has been built and discretized with the same species,
// nodes, and variables. Geometry, reaction parameters, and fields take
// the saved values.
func (m *Monolith) LoadModelState(r io.Reader) error {
	var s modelState
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("cats: loading model state: %v", err)
	}
	return m.initFromState(&s)
}

// Save returns a pipeline step that writes the simulation state with
// SaveModelState.
func Save(w io.Writer) DomainManipulator {
	return func(m *Monolith) error {
		return m.SaveModelState(w)
	}
}

// Load returns a pipeline step that restores state previously written by
// Save into a built and discretized model with the same species, nodes,
// and variables. The simulation can then be continued from where it was
// saved.
func Load(r io.Reader) DomainManipulator {
	return func(m *Monolith) error {
		return m.LoadModelState(r)
	}
}

func (m *Monolith) initFromState(s *modelState) error {
	if !m.discretized {
		return fmt.Errorf("cats: model must be built and discretized before loading")
	}
	if len(s.Cells) != len(m.cells) {
		return fmt.Errorf("cats: saved state has %d nodes but the model has %d",
			len(s.Cells), len(m.cells))
	}
	if s.Inlet == nil {
		return fmt.Errorf("cats: saved state has no inlet boundary")
	}
	if len(s.VarNames) != len(m.varNames) {
		return fmt.Errorf("cats: saved state has %d variables but the model has %d",
			len(s.VarNames), len(m.varNames))
	}
	for i, n := range s.VarNames {
		if n != m.varNames[i] {
			return fmt.Errorf("cats: saved state variable %d is %q but the model declares %q",
				i, n, m.varNames[i])
		}
	}
	if len(s.GasSpecies) != len(m.gas) || len(s.SurfaceSpecies) != len(m.surf) ||
		len(s.Sites) != len(m.sites) {
		return fmt.Errorf("cats: saved state species do not match the model")
	}

	m.length = s.Length
	m.radius = s.Radius
	m.bulkPorosity = s.BulkPorosity
	m.washcoatPore = s.WashcoatPorosity
	m.surfToVol = s.SurfaceToVolume
	m.hydraulicDiam = s.HydraulicDiameter
	m.spaceVelocity = s.SpaceVelocity
	m.refTemp = s.RefTemp
	m.refPress = s.RefPress
	m.linearVelocity = s.LinearVelocity

	for i, g := range s.GasSpecies {
		if g.Name != m.gas[i].Name {
			return fmt.Errorf("cats: saved gas species %d is %q but the model declares %q",
				i, g.Name, m.gas[i].Name)
		}
		m.gas[i].Km = g.Km
		m.gas[i].Diff = g.Diff
		m.gas[i].MolarMass = g.MolarMass
	}
	for i, q := range s.SurfaceSpecies {
		if q.Name != m.surf[i].Name {
			return fmt.Errorf("cats: saved surface species %d is %q but the model declares %q",
				i, q.Name, m.surf[i].Name)
		}
	}
	for i, st := range s.Sites {
		if st.Name != m.sites[i].Name {
			return fmt.Errorf("cats: saved site %d is %q but the model declares %q",
				i, st.Name, m.sites[i].Name)
		}
		m.sites[i].Density = st.Density
	}

	// Restore the rate parameters, rebinding the rate terms in case the
	// snapshot's stoichiometry differs from the declared one.
	for _, sr := range s.Reactions {
		i, ok := m.rxnIndex[sr.Name]
		if !ok {
			return fmt.Errorf("cats: saved state has undeclared reaction %q", sr.Name)
		}
		r := m.reactions[i].(*baseReaction)
		if r.rtype != sr.Type {
			return fmt.Errorf("cats: reaction %s: saved type %v does not match the model's %v",
				sr.Name, sr.Type, r.rtype)
		}
		r.info = sr.Info
		r.hasInfo = true
		if err := r.resolve(m); err != nil {
			return err
		}
	}

	restore := func(dst, src *Cell) {
		copy(dst.Cb, src.Cb)
		copy(dst.Cw, src.Cw)
		copy(dst.Q, src.Q)
		copy(dst.S, src.S)
		copy(dst.Cbi, src.Cbi)
		copy(dst.Cwi, src.Cwi)
		copy(dst.Qi, src.Qi)
		dst.T = src.T
		dst.V = src.V
	}
	for i, c := range m.cells {
		restore(c, s.Cells[i])
	}
	restore(m.inlet, s.Inlet)
	m.times = s.Times
	m.tIndex = s.TimeIndex
	m.Done = s.Done
	if s.Results != nil {
		m.results = sparse.ZerosDense(s.Results.Shape...)
		copy(m.results.Elements, s.Results.Elements)
	} else {
		m.results = nil
	}
	return nil
}
