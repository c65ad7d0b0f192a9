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

// Package cats implements a transient, one-dimensional model of gas
// transport and surface reaction in monolith catalytic converters, along
// with tools for fitting the kinetic parameters of the model to
// experimental light-off data.
package cats

import (
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/sparse"

	"github.com/coelectrolyzer/cats/gasprops"
)

// Version gives the version number.
const Version = "1.2.1"

// Rstd is the ideal gas constant [J mol⁻¹ K⁻¹]. Because 1 kPa·L = 1 J,
// it can also be read in units of kPa·L·mol⁻¹·K⁻¹.
const Rstd = 8.3144621

// Monolith holds the current state of a monolith reactor simulation.
// Unexported configuration fields are set using the builder methods in
// this package and frozen by BuildConstraints.
type Monolith struct {
	// InitFuncs are functions to be run in the given order at the
	// beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be run in the given order repeatedly
	// until "Done" is true.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be run in the given order after the
	// simulation has completed.
	CleanupFuncs []DomainManipulator

	// Done specifies whether the simulation is finished.
	Done bool

	// Dt is the current timestep [min].
	Dt float64

	cells []*Cell // the axial nodes, ordered from inlet to outlet
	inlet *Cell   // boundary cell holding the current inlet condition

	// Reactor geometry.
	length        float64 // [cm]
	radius        float64 // [cm]
	bulkPorosity  float64 // open frontal fraction εb
	washcoatPore  float64 // washcoat porosity εw
	surfToVol     float64 // geometric surface area per total volume Ga [cm⁻¹]
	hydraulicDiam float64 // channel hydraulic diameter [cm]

	// Flow specification. If spaceVelocity is nonzero it takes
	// precedence over linearVelocity.
	spaceVelocity  float64 // volumes per minute at refTemp and refPress
	refTemp        float64 // [K]
	refPress       float64 // [kPa]
	linearVelocity float64 // interstitial velocity [cm/min]

	gas      []*GasSpecies
	surf     []*SurfaceSpecies
	sites    []*Site
	gasIndex map[string]int
	qIndex   map[string]int
	sIndex   map[string]int

	reactions []Reaction
	rxnIndex  map[string]int

	ics  map[string]float64
	bcs  map[string]*BoundaryCondition
	temp TemperatureModel

	// Discretization.
	method    DiscretizationMethod
	grad      *gradientOperator
	times     []float64
	tIndex    int
	nUnknowns int // unknowns per node

	// Solver state.
	solver     SolverConfig
	scale      []float64   // per-unknown scale factors, nodes × nUnknowns
	trajectory [][]float64 // initialization-march states, one per time point
	stats      SimulationStatus

	// results holds the recorded solution with shape
	// [time][node][variable]. It is filled by RecordState.
	results  *sparse.DenseArray
	varNames []string

	built       bool
	discretized bool
}

// DomainManipulator is a class of functions that operate on the entire
// model domain.
type DomainManipulator func(m *Monolith) error

// CellManipulator is a class of functions that operate on a single node,
// usually within a time step Δt [min].
type CellManipulator func(c *Cell, Δt float64)

// Cell holds the state of a single axial node.
type Cell struct {
	Z  float64 `desc:"Distance from the inlet face" units:"cm"`
	Dz float64 `desc:"Node spacing" units:"cm"`
	T  float64 `desc:"Gas temperature" units:"K"`
	V  float64 `desc:"Interstitial linear velocity" units:"cm/min"`

	Cb []float64 `desc:"Bulk-channel gas concentrations" units:"mol/L"`
	Cw []float64 `desc:"Washcoat gas concentrations" units:"mol/L"`
	Q  []float64 `desc:"Surface coverages" units:"mol/L washcoat"`
	S  []float64 `desc:"Free site concentrations" units:"mol/L washcoat"`

	// Beginning-of-timestep copies.
	Cbi []float64
	Cwi []float64
	Qi  []float64

	Boundary bool // Does this cell represent a boundary condition?

	west  *Cell // upstream neighbor
	east  *Cell // downstream neighbor
	index int   // node index, 0 at the inlet

	sync.RWMutex // Avoid the cell being written and read at the same time.
}

func (c *Cell) prepare(nGas, nSurf, nSites int) {
	c.Cb = make([]float64, nGas)
	c.Cw = make([]float64, nGas)
	c.Q = make([]float64, nSurf)
	c.S = make([]float64, nSites)
	c.Cbi = make([]float64, nGas)
	c.Cwi = make([]float64, nGas)
	c.Qi = make([]float64, nSurf)
}

func (c *Cell) makecopy() *Cell {
	c2 := new(Cell)
	c2.Z, c2.Dz, c2.T, c2.V = c.Z, c.Dz, c.T, c.V
	c2.prepare(len(c.Cb), len(c.Q), len(c.S))
	copy(c2.Cb, c.Cb)
	copy(c2.Cbi, c.Cbi)
	return c2
}

// stepStart copies the end-of-step state into the beginning-of-step
// arrays in preparation for the next implicit solve.
func (c *Cell) stepStart() {
	copy(c.Cbi, c.Cb)
	copy(c.Cwi, c.Cw)
	copy(c.Qi, c.Q)
}

// NewMonolith creates a new monolith reactor model with default reference
// conditions (273.15 K and 101.35 kPa).
func NewMonolith() *Monolith {
	return &Monolith{
		refTemp:  273.15,
		refPress: 101.35,
		ics:      make(map[string]float64),
		bcs:      make(map[string]*BoundaryCondition),
		gasIndex: make(map[string]int),
		qIndex:   make(map[string]int),
		sIndex:   make(map[string]int),
		rxnIndex: make(map[string]int),
		solver:   DefaultSolverConfig(),
	}
}

// Init initializes the simulation by running InitFuncs.
func (m *Monolith) Init() error {
	for _, f := range m.InitFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running RunFuncs repeatedly until
// Done is true.
func (m *Monolith) Run() error {
	for !m.Done {
		for _, f := range m.RunFuncs {
			if err := f(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running CleanupFuncs.
func (m *Monolith) Cleanup() error {
	for _, f := range m.CleanupFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Cells returns the axial nodes of the domain, ordered from inlet to
// outlet, not including the inlet boundary cell.
func (m *Monolith) Cells() []*Cell {
	return m.cells
}

// Times returns the temporal discretization points [min].
func (m *Monolith) Times() []float64 {
	return m.times
}

// CurrentTime returns the simulation time [min] of the most recently
// completed step.
func (m *Monolith) CurrentTime() float64 {
	if len(m.times) == 0 {
		return 0
	}
	return m.times[m.tIndex]
}

// AddAxialDim sets the axial extent of the reactor: start and end are the
// inlet and outlet face positions [cm].
func (m *Monolith) AddAxialDim(start, end float64) *Monolith {
	m.length = end - start
	return m
}

// AddTemporalDim sets the temporal extent of the simulation [min]. The
// time resolution is chosen by DiscretizeModel unless explicit points
// are supplied with SetTemporalPoints.
func (m *Monolith) AddTemporalDim(start, end float64) *Monolith {
	m.times = []float64{start, end}
	return m
}

// SetTemporalPoints sets an explicit, strictly increasing list of time
// points [min], for example points chosen from experimental data.
func (m *Monolith) SetTemporalPoints(times []float64) *Monolith {
	m.times = append(m.times[:0], times...)
	return m
}

// SetBulkPorosity sets the open frontal fraction of the monolith.
func (m *Monolith) SetBulkPorosity(eb float64) *Monolith { m.bulkPorosity = eb; return m }

// SetWashcoatPorosity sets the porosity of the washcoat layer.
func (m *Monolith) SetWashcoatPorosity(ew float64) *Monolith { m.washcoatPore = ew; return m }

// SetReactorRadius sets the core radius [cm].
func (m *Monolith) SetReactorRadius(r float64) *Monolith { m.radius = r; return m }

// SetSurfaceToVolume sets the geometric surface area per total reactor
// volume Ga [cm⁻¹].
func (m *Monolith) SetSurfaceToVolume(ga float64) *Monolith { m.surfToVol = ga; return m }

// SetCellDensity sets the channel density [cells/cm²] and derives the
// surface-to-volume ratio and hydraulic diameter from it.
func (m *Monolith) SetCellDensity(cells float64) *Monolith {
	dc := math.Sqrt(m.bulkPorosity / cells) // open channel width [cm]
	m.hydraulicDiam = dc
	m.surfToVol = 4 * math.Sqrt(m.bulkPorosity) / dc
	return m
}

// SetSpaceVelocity sets the flow as reactor volumes per minute measured
// at the reference temperature refT [K] and pressure refP [kPa]. The
// local interstitial velocity is derived per node as
// v = SV·L/εb·(T/refT).
func (m *Monolith) SetSpaceVelocity(sv, refT, refP float64) *Monolith {
	m.spaceVelocity = sv
	m.refTemp = refT
	m.refPress = refP
	return m
}

// SetLinearVelocity directly sets the interstitial velocity [cm/min],
// overriding any space velocity specification.
func (m *Monolith) SetLinearVelocity(v float64) *Monolith {
	m.linearVelocity = v
	m.spaceVelocity = 0
	return m
}

// SetMassTransferCoef sets the film mass transfer coefficient [cm/min]
// for all gas species.
func (m *Monolith) SetMassTransferCoef(km float64) *Monolith {
	for _, g := range m.gas {
		g.Km = km
	}
	return m
}

// sherwoodLaminar is the asymptotic Sherwood number for fully developed
// laminar flow in a square channel with a constant wall concentration.
const sherwoodLaminar = 2.977

// SetMassTransferCoefFromProps derives the film mass transfer
// coefficient for all gas species from gas transport properties, using
// the laminar-channel Sherwood asymptote. It returns an error when a
// property carries the wrong dimensions.
func (m *Monolith) SetMassTransferCoefFromProps(p gasprops.Properties) error {
	km, err := p.MassTransferCoef(sherwoodLaminar)
	if err != nil {
		return err
	}
	// The properties are SI; the model works in cm and minutes.
	m.SetMassTransferCoef(km.Value() * 100 * 60)
	return nil
}

// PPMToConc converts a mole fraction in parts per million to a molar
// concentration [mol/L] at temperature T [K] and pressure P [kPa].
func PPMToConc(ppm, T, P float64) float64 {
	return ppm * 1.e-6 * P / (Rstd * T)
}

// ConcToPPM converts a molar concentration [mol/L] to a mole fraction in
// parts per million at temperature T [K] and pressure P [kPa].
func ConcToPPM(conc, T, P float64) float64 {
	return conc / P * (Rstd * T) * 1.e6
}

// interstitialVelocity gives the local linear velocity [cm/min] at
// temperature T [K].
func (m *Monolith) interstitialVelocity(T float64) float64 {
	if m.spaceVelocity > 0 {
		return m.spaceVelocity * m.length / m.bulkPorosity * (T / m.refTemp)
	}
	return m.linearVelocity
}

func (m *Monolith) updateVelocities() {
	for _, c := range m.cells {
		c.V = m.interstitialVelocity(c.T)
	}
	m.inlet.V = m.cells[0].V
}

func max(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func min(v1, v2 float64) float64 {
	if v1 < v2 {
		return v1
	}
	return v2
}

func amin(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals {
		if v < m {
			m = v
		}
	}
	return m
}

func (m *Monolith) String() string {
	return fmt.Sprintf("monolith reactor: L=%g cm, %d nodes, %d gas species, %d reactions",
		m.length, len(m.cells), len(m.gas), len(m.reactions))
}
