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

	"gonum.org/v1/gonum/mat"
)

// DiscretizationMethod selects the spatial discretization scheme.
type DiscretizationMethod int

const (
	// FiniteDifference discretizes the axial advection term with
	// first-order upwind differences on uniformly spaced nodes.
	FiniteDifference DiscretizationMethod = iota

	// OrthogonalCollocation discretizes space with orthogonal
	// collocation on finite elements, using Gauss-point interior nodes
	// and Lagrange differentiation matrices within each element.
	OrthogonalCollocation
)

func (dm DiscretizationMethod) String() string {
	switch dm {
	case FiniteDifference:
		return "FiniteDifference"
	case OrthogonalCollocation:
		return "OrthogonalCollocation"
	default:
		return fmt.Sprintf("DiscretizationMethod(%d)", int(dm))
	}
}

// stencilEntry is one weighted reference in a gradient stencil. Column
// index −1 refers to the inlet boundary cell.
type stencilEntry struct {
	col int
	w   float64
}

// gradientOperator evaluates ∂/∂z at every node from nodal values.
type gradientOperator struct {
	rows [][]stencilEntry
}

// apply evaluates the gradient for node i given a nodal value accessor.
// The accessor receives −1 for the inlet boundary.
func (g *gradientOperator) apply(i int, value func(col int) float64) float64 {
	var sum float64
	for _, e := range g.rows[i] {
		sum += e.w * value(e.col)
	}
	return sum
}

// BuildConstraints validates and freezes the model specification:
// species and site references are resolved, reaction stoichiometry is
// indexed, and the unknown layout is fixed. It must be called before
// DiscretizeModel.
func (m *Monolith) BuildConstraints() error {
	if m.length <= 0 {
		return fmt.Errorf("cats: axial dimension must be set before BuildConstraints")
	}
	if len(m.times) < 2 {
		return fmt.Errorf("cats: temporal dimension must be set before BuildConstraints")
	}
	if m.bulkPorosity <= 0 || m.bulkPorosity > 1 {
		return fmt.Errorf("cats: bulk porosity %g outside (0,1]", m.bulkPorosity)
	}
	if len(m.surf) > 0 && (m.washcoatPore <= 0 || m.washcoatPore > 1) {
		return fmt.Errorf("cats: washcoat porosity %g outside (0,1]", m.washcoatPore)
	}
	if m.washcoatPore <= 0 {
		m.washcoatPore = 1 // no washcoat layer: treat pore volume as open
	}
	if m.spaceVelocity <= 0 && m.linearVelocity <= 0 {
		return fmt.Errorf("cats: either a space velocity or a linear velocity must be set")
	}
	if m.surfToVol <= 0 {
		return fmt.Errorf("cats: surface-to-volume ratio must be set (directly or via SetCellDensity)")
	}
	if m.temp == nil {
		return fmt.Errorf("cats: no temperature model set")
	}
	if len(m.gas) == 0 {
		return fmt.Errorf("cats: no gas species declared")
	}
	for _, g := range m.gas {
		if g.Km <= 0 {
			return fmt.Errorf("cats: gas species %s has no mass transfer coefficient", g.Name)
		}
	}
	for _, s := range m.sites {
		s.occIdx = s.occIdx[:0]
		s.occN = s.occN[:0]
		for _, name := range sortedKeys(s.Occupancy) {
			qi, ok := m.qIndex[name]
			if !ok {
				return fmt.Errorf("cats: site %s occupancy references undeclared surface species %q", s.Name, name)
			}
			s.occIdx = append(s.occIdx, qi)
			s.occN = append(s.occN, s.Occupancy[name])
		}
	}
	for _, rxn := range m.reactions {
		if err := rxn.(*baseReaction).resolve(m); err != nil {
			return err
		}
	}
	for name := range m.bcs {
		if _, ok := m.gasIndex[name]; !ok {
			return fmt.Errorf("cats: boundary condition for undeclared gas species %q", name)
		}
	}
	m.nUnknowns = 2*len(m.gas) + len(m.surf)
	m.varNames = m.varNames[:0]
	for _, g := range m.gas {
		m.varNames = append(m.varNames, g.Name)
	}
	for _, g := range m.gas {
		m.varNames = append(m.varNames, g.Name+"_w")
	}
	for _, s := range m.surf {
		m.varNames = append(m.varNames, s.Name)
	}
	for _, s := range m.sites {
		m.varNames = append(m.varNames, s.Name)
	}
	m.varNames = append(m.varNames, "T", "V")
	m.built = true
	return nil
}

// DiscretizeModel allocates the space-time grid. tstep is the number of
// uniform time steps (ignored when explicit points were supplied with
// SetTemporalPoints). For FiniteDifference, nodes gives the number of
// axial nodes and colpoints is ignored. For OrthogonalCollocation, nodes
// gives the number of finite elements and colpoints the number of
// interior collocation points per element.
func (m *Monolith) DiscretizeModel(method DiscretizationMethod, tstep, nodes, colpoints int) error {
	if !m.built {
		return fmt.Errorf("cats: BuildConstraints must be called before DiscretizeModel")
	}
	if len(m.times) == 2 {
		if tstep < 1 {
			return fmt.Errorf("cats: at least one time step is required")
		}
		start, end := m.times[0], m.times[1]
		m.times = make([]float64, tstep+1)
		for i := range m.times {
			m.times[i] = start + (end-start)*float64(i)/float64(tstep)
		}
	}
	for i := 1; i < len(m.times); i++ {
		if m.times[i] <= m.times[i-1] {
			return fmt.Errorf("cats: time points are not strictly increasing")
		}
	}
	m.method = method

	var zs []float64
	var grad *gradientOperator
	var err error
	switch method {
	case FiniteDifference:
		if nodes < 2 {
			return fmt.Errorf("cats: finite differences require at least 2 nodes")
		}
		zs, grad = upwindOperator(m.length, nodes)
	case OrthogonalCollocation:
		if nodes < 1 {
			return fmt.Errorf("cats: at least one finite element is required")
		}
		if colpoints < 1 {
			return fmt.Errorf("cats: orthogonal collocation requires at least 1 interior point per element")
		}
		zs, grad, err = collocationOperator(m.length, nodes, colpoints)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("cats: unknown discretization method %v", method)
	}
	m.grad = grad

	nGas, nSurf, nSites := len(m.gas), len(m.surf), len(m.sites)
	m.cells = make([]*Cell, len(zs))
	prevZ := 0.
	for i, z := range zs {
		c := &Cell{Z: z, Dz: z - prevZ, index: i}
		c.prepare(nGas, nSurf, nSites)
		m.cells[i] = c
		prevZ = z
	}
	for i, c := range m.cells {
		if i > 0 {
			c.west = m.cells[i-1]
			m.cells[i-1].east = c
		}
	}
	m.inlet = &Cell{Z: 0, Dz: m.cells[0].Dz, index: -1, Boundary: true}
	m.inlet.prepare(nGas, nSurf, nSites)
	m.inlet.east = m.cells[0]
	m.cells[0].west = m.inlet

	m.scale = make([]float64, len(m.cells)*m.nUnknowns)
	for i := range m.scale {
		m.scale[i] = 1
	}
	m.trajectory = nil
	m.discretized = true
	return nil
}

// upwindOperator builds uniformly spaced nodes over (0, L] and
// first-order upwind gradient stencils referencing the upstream node.
func upwindOperator(length float64, nodes int) ([]float64, *gradientOperator) {
	h := length / float64(nodes)
	zs := make([]float64, nodes)
	rows := make([][]stencilEntry, nodes)
	for i := range zs {
		zs[i] = h * float64(i+1)
		rows[i] = []stencilEntry{{col: i, w: 1 / h}, {col: i - 1, w: -1 / h}}
	}
	return zs, &gradientOperator{rows: rows}
}

// collocationOperator builds collocation nodes over (0, L] for the given
// number of elements and interior Gauss points, along with gradient rows
// from the Lagrange differentiation matrix of each element. The element
// edge node at z=0 is the inlet boundary.
func collocationOperator(length float64, elems, colpoints int) ([]float64, *gradientOperator, error) {
	interior, err := gaussPoints(colpoints)
	if err != nil {
		return nil, nil, err
	}
	local := make([]float64, 0, colpoints+2)
	local = append(local, 0)
	local = append(local, interior...)
	local = append(local, 1)

	D, err := lagrangeDerivMatrix(local)
	if err != nil {
		return nil, nil, err
	}

	h := length / float64(elems)
	perElem := colpoints + 1 // nodes added per element (interior + right edge)
	n := elems * perElem
	zs := make([]float64, n)
	rows := make([][]stencilEntry, n)
	for e := 0; e < elems; e++ {
		left := float64(e) * h
		// Global column of the element's left edge node: −1 (the inlet
		// boundary) for the first element, otherwise the previous
		// element's right edge.
		leftCol := e*perElem - 1
		for j := 1; j < len(local); j++ {
			gi := e*perElem + j - 1
			zs[gi] = left + local[j]*h
			row := make([]stencilEntry, 0, len(local))
			for k := 0; k < len(local); k++ {
				w := D.At(j, k) / h
				if w == 0 {
					continue
				}
				col := leftCol + k
				row = append(row, stencilEntry{col: col, w: w})
			}
			rows[gi] = row
		}
	}
	for i := 1; i < n; i++ {
		if zs[i] <= zs[i-1] {
			return nil, nil, fmt.Errorf("cats: collocation nodes are not strictly increasing")
		}
	}
	return zs, &gradientOperator{rows: rows}, nil
}

// gaussPoints returns the roots of the shifted Legendre polynomial of
// the given degree on (0,1), the interior collocation points.
func gaussPoints(n int) ([]float64, error) {
	switch n {
	case 1:
		return []float64{0.5}, nil
	case 2:
		return []float64{0.2113248654051871, 0.7886751345948129}, nil
	case 3:
		return []float64{0.1127016653792583, 0.5, 0.8872983346207417}, nil
	case 4:
		return []float64{0.06943184420297371, 0.33000947820757187,
			0.6699905217924281, 0.9305681557970262}, nil
	case 5:
		return []float64{0.04691007703066800, 0.23076534494715845, 0.5,
			0.7692346550528415, 0.9530899229693319}, nil
	default:
		return nil, fmt.Errorf("cats: %d interior collocation points unsupported (1-5 available)", n)
	}
}

// lagrangeDerivMatrix returns D such that, for nodal values f on the
// points xs, (D·f)[i] is the derivative at xs[i] of the interpolating
// polynomial.
func lagrangeDerivMatrix(xs []float64) (*mat.Dense, error) {
	n := len(xs)
	V := mat.NewDense(n, n, nil)
	W := mat.NewDense(n, n, nil)
	for i, x := range xs {
		p := 1.
		for k := 0; k < n; k++ {
			V.Set(i, k, p)
			if k > 0 {
				W.Set(i, k, float64(k)*pow(x, k-1))
			}
			p *= x
		}
	}
	var Vinv mat.Dense
	if err := Vinv.Inverse(V); err != nil {
		return nil, fmt.Errorf("cats: building differentiation matrix: %v", err)
	}
	var D mat.Dense
	D.Mul(W, &Vinv)
	return &D, nil
}

func pow(x float64, n int) float64 {
	p := 1.
	for i := 0; i < n; i++ {
		p *= x
	}
	return p
}
