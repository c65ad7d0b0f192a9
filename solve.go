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
	"math"
	"time"

	"github.com/cenkalti/backoff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SolverConfig holds the nonlinear solver settings.
type SolverConfig struct {
	// NewtonTol is the convergence tolerance on the scaled residual
	// infinity norm.
	NewtonTol float64

	// InitTol is the relaxed tolerance used during the initialization
	// time march.
	InitTol float64

	// MaxNewtonIter caps the Newton iterations per solve.
	MaxNewtonIter int

	// MaxRestarts caps the restart attempts per time step. Each restart
	// doubles the internal substep count and strengthens Newton damping.
	MaxRestarts int

	// ScaleFloor is the smallest magnitude used when deriving automatic
	// scale factors.
	ScaleFloor float64

	// MinDt aborts the simulation if restart substepping pushes the
	// internal step below this value [min].
	MinDt float64
}

// DefaultSolverConfig returns the solver settings used when none are
// specified.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		NewtonTol:     1.e-8,
		InitTol:       1.e-4,
		MaxNewtonIter: 30,
		MaxRestarts:   5,
		ScaleFloor:    1.e-6,
		MinDt:         1.e-9,
	}
}

// SetSolverConfig replaces the solver settings.
func (m *Monolith) SetSolverConfig(cfg SolverConfig) *Monolith {
	m.solver = cfg
	return m
}

// SolverConfig returns the solver settings currently in effect.
func (m *Monolith) SolverConfig() SolverConfig {
	return m.solver
}

// SimulationStatus holds information about the progress of a simulation.
type SimulationStatus struct {
	Time             float64 // current simulation time [min]
	Step             int     // completed time steps
	Steps            int     // total time steps
	NewtonIterations int     // iterations used by the most recent solve
	Residual         float64 // final scaled residual of the most recent solve
	Restarts         int     // restarts used by the most recent step
	Walltime         time.Duration
}

func (s *SimulationStatus) String() string {
	return fmt.Sprintf("Step %d/%d  t=%-8.4g min  newton=%-2d  residual=%8.3g  restarts=%d  walltime=%v",
		s.Step, s.Steps, s.Time, s.NewtonIterations, s.Residual, s.Restarts,
		s.Walltime.Round(time.Millisecond))
}

// ConvergenceStatus holds information about how different the state of
// the domain is from the last time it was checked.
type ConvergenceStatus struct {
	Step      int
	Change    float64 // relative state change since the last check
	Converged bool
}

func (c *ConvergenceStatus) String() string {
	if c.Converged {
		return fmt.Sprintf("Step %d: total state difference %3.2g%%; converged", c.Step, c.Change*100)
	}
	return fmt.Sprintf("Step %d: total state difference %3.2g%% from last check", c.Step, c.Change*100)
}

// Unknown vector layout helpers. The unknowns of node i occupy the block
// [i·nu, (i+1)·nu) ordered bulk concentrations, washcoat concentrations,
// then surface coverages.
func (m *Monolith) idxCb(node, gas int) int { return node*m.nUnknowns + gas }
func (m *Monolith) idxCw(node, gas int) int { return node*m.nUnknowns + len(m.gas) + gas }
func (m *Monolith) idxQ(node, srf int) int  { return node*m.nUnknowns + 2*len(m.gas) + srf }

// variableName describes unknown i for diagnostics.
func (m *Monolith) variableName(i int) string {
	node := i / m.nUnknowns
	j := i % m.nUnknowns
	switch {
	case j < len(m.gas):
		return fmt.Sprintf("%s (bulk) at node %d", m.gas[j].Name, node)
	case j < 2*len(m.gas):
		return fmt.Sprintf("%s (washcoat) at node %d", m.gas[j-len(m.gas)].Name, node)
	default:
		return fmt.Sprintf("%s at node %d", m.surf[j-2*len(m.gas)].Name, node)
	}
}

func (m *Monolith) packState(x []float64) {
	for i, c := range m.cells {
		for j := range m.gas {
			x[m.idxCb(i, j)] = c.Cb[j]
			x[m.idxCw(i, j)] = c.Cw[j]
		}
		for k := range m.surf {
			x[m.idxQ(i, k)] = c.Q[k]
		}
	}
}

func (m *Monolith) unpackState(x []float64) {
	for i, c := range m.cells {
		for j := range m.gas {
			c.Cb[j] = x[m.idxCb(i, j)]
			c.Cw[j] = x[m.idxCw(i, j)]
		}
		for k := range m.surf {
			c.Q[k] = x[m.idxQ(i, k)]
		}
	}
}

// residual evaluates the backward-Euler residual for candidate state x
// over step Δt, writing into F. Residual components are expressed in
// concentration units so that scale factors apply to rows and columns
// alike. The inlet boundary and node temperatures must already be set
// for the end-of-step time.
func (m *Monolith) residual(x []float64, Δt float64, F, gasSrc, surfSrc []float64) {
	m.unpackState(x)
	eb := m.bulkPorosity
	ew := m.washcoatPore
	ga := m.surfToVol
	for i, c := range m.cells {
		m.sourceTerms(c, gasSrc, surfSrc)
		for j, g := range m.gas {
			grad := m.grad.apply(i, func(col int) float64 {
				if col < 0 {
					return m.inlet.Cb[j]
				}
				return m.cells[col].Cb[j]
			})
			film := (1 - eb) / eb * ga * g.Km * (c.Cb[j] - c.Cw[j])
			F[m.idxCb(i, j)] = c.Cb[j] - c.Cbi[j] + Δt*(c.V*grad+film)
			F[m.idxCw(i, j)] = c.Cw[j] - c.Cwi[j] - Δt*(ga*g.Km*(c.Cb[j]-c.Cw[j])/ew+gasSrc[j])
		}
		for k := range m.surf {
			F[m.idxQ(i, k)] = c.Q[k] - c.Qi[k] - Δt*surfSrc[k]
		}
	}
}

// scaledNorm returns the infinity norm of F measured against the scale
// factors, along with the index of the worst component.
func (m *Monolith) scaledNorm(F []float64) (float64, int) {
	worst := 0.
	worstIdx := 0
	for i, f := range F {
		v := math.Abs(f) / m.scale[i]
		if v > worst || math.IsNaN(v) {
			worst = v
			worstIdx = i
			if math.IsNaN(v) {
				return math.NaN(), i
			}
		}
	}
	return worst, worstIdx
}

// newton solves one implicit step of size Δt with damping factor damp,
// returning the iterations used and the final scaled residual norm. On
// entry the cells hold the initial guess; on successful exit they hold
// the converged end-of-step state.
func (m *Monolith) newton(Δt, damp, tol float64) (int, float64, error) {
	n := len(m.cells) * m.nUnknowns
	x := make([]float64, n)
	F := make([]float64, n)
	F2 := make([]float64, n)
	δ := make([]float64, n)
	gasSrc := make([]float64, len(m.gas))
	surfSrc := make([]float64, len(m.surf))
	J := mat.NewDense(n, n, nil)

	m.packState(x)
	var rn float64
	var worst int
	for it := 0; it < m.solver.MaxNewtonIter; it++ {
		m.residual(x, Δt, F, gasSrc, surfSrc)
		rn, worst = m.scaledNorm(F)
		if math.IsNaN(rn) {
			return it, rn, fmt.Errorf("cats: residual is NaN for %s", m.variableName(worst))
		}
		if rn <= tol {
			m.unpackState(x)
			return it, rn, nil
		}
		// Forward-difference Jacobian, column by column.
		const relStep = 1.5e-8
		for j := 0; j < n; j++ {
			h := relStep * max(math.Abs(x[j]), m.scale[j])
			xj := x[j]
			x[j] = xj + h
			m.residual(x, Δt, F2, gasSrc, surfSrc)
			x[j] = xj
			inv := 1 / h
			for i := 0; i < n; i++ {
				J.Set(i, j, (F2[i]-F[i])*inv)
			}
		}
		var lu mat.LU
		lu.Factorize(J)
		b := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			b.SetVec(i, -F[i])
		}
		d := mat.NewVecDense(n, nil)
		if err := lu.SolveVecTo(d, false, b); err != nil {
			return it, rn, fmt.Errorf("cats: singular Jacobian: %v", err)
		}
		copy(δ, d.RawVector().Data)
		floats.AddScaled(x, damp, δ)
	}
	m.unpackState(x)
	return m.solver.MaxNewtonIter, rn, fmt.Errorf(
		"cats: Newton did not converge: scaled residual %g > %g after %d iterations (worst: %s)",
		rn, tol, m.solver.MaxNewtonIter, m.variableName(worst))
}

// marchStep advances the state from t0 to t1 using the given number of
// internal substeps and Newton damping. The outer step start state must
// already be stored in the beginning-of-step arrays.
func (m *Monolith) marchStep(t0, t1 float64, substeps int, damp, tol float64, stats *SimulationStatus) error {
	dt := (t1 - t0) / float64(substeps)
	if dt < m.solver.MinDt {
		return backoff.Permanent(fmt.Errorf("cats: substep %g min below the minimum %g", dt, m.solver.MinDt))
	}
	for k := 0; k < substeps; k++ {
		ta := t0 + dt*float64(k+1)
		m.applyBoundaryAt(ta)
		iters, rn, err := m.newton(dt, damp, tol)
		stats.NewtonIterations = iters
		stats.Residual = rn
		if err != nil {
			return err
		}
		if k < substeps-1 {
			for _, c := range m.cells {
				c.stepStart()
			}
		}
	}
	return nil
}

// advance moves the domain from t0 to t1, retrying with substeps and
// stronger damping when the nonlinear solve fails. notify receives a
// message for each restart.
func (m *Monolith) advance(t0, t1, tol float64, stats *SimulationStatus, notify func(error, time.Duration)) error {
	xStart := make([]float64, len(m.cells)*m.nUnknowns)
	m.packState(xStart)

	// Use the initialization trajectory as the Newton guess when one
	// was recorded for the target time point.
	if m.trajectory != nil && m.tIndex+1 < len(m.trajectory) && m.trajectory[m.tIndex+1] != nil {
		m.unpackState(m.trajectory[m.tIndex+1])
	}

	attempt := 0
	op := func() error {
		if attempt > 0 {
			// Restart: recover the step start state, refresh scaling and
			// retry with substeps and a damped Newton iteration.
			m.unpackState(xStart)
			for _, c := range m.cells {
				c.stepStart()
			}
			m.rescaleFromState()
		}
		substeps := 1 << uint(attempt)
		damp := 1 / float64(attempt+1)
		stats.Restarts = attempt
		err := m.marchStep(t0, t1, substeps, damp, tol, stats)
		if err != nil {
			if attempt >= m.solver.MaxRestarts {
				return backoff.Permanent(fmt.Errorf("cats: step to t=%g min failed after %d restarts: %v", t1, attempt, err))
			}
			attempt++
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = 0 // restarts are bounded by MaxRestarts, not walltime
	if notify == nil {
		notify = func(error, time.Duration) {}
	}
	return backoff.RetryNotify(op, bo, notify)
}

// SolveTimestep returns a function that advances the simulation by one
// time step using an implicit backward-Euler solve, retrying with the
// restart heuristics when the solve fails. msgLog, if non-nil, receives
// restart notifications.
func SolveTimestep(msgLog chan string) DomainManipulator {
	return func(m *Monolith) error {
		if !m.discretized {
			return fmt.Errorf("cats: model must be discretized before solving")
		}
		if m.tIndex >= len(m.times)-1 {
			m.Done = true
			return nil
		}
		t0, t1 := m.times[m.tIndex], m.times[m.tIndex+1]
		m.Dt = t1 - t0
		notify := func(err error, d time.Duration) {
			if msgLog != nil {
				msgLog <- fmt.Sprintf("restarting step to t=%g min in %v: %v", t1, d, err)
			}
		}
		if err := m.advance(t0, t1, m.solver.NewtonTol, &m.stats, notify); err != nil {
			return err
		}
		m.tIndex++
		m.stats.Step = m.tIndex
		m.stats.Steps = len(m.times) - 1
		m.stats.Time = t1
		if m.tIndex >= len(m.times)-1 {
			m.Done = true
		}
		return nil
	}
}

// SetTimestepCFL returns a function that sets the timestep used by the
// initialization march so that the advective Courant number does not
// exceed Cmax.
func SetTimestepCFL() DomainManipulator {
	const Cmax = 0.9
	return func(m *Monolith) error {
		for i, c := range m.cells {
			dt := Cmax * c.Dz / max(math.Abs(c.V), 1.e-30)
			if i == 0 {
				m.Dt = dt
			} else {
				m.Dt = amin(m.Dt, dt)
			}
		}
		return nil
	}
}

// InitializeAutoScaling returns a function that derives per-variable
// scale factors from the initial and boundary conditions.
func InitializeAutoScaling() DomainManipulator {
	return func(m *Monolith) error {
		floor := m.solver.ScaleFloor
		for j := range m.gas {
			mag := floor
			for _, c := range m.cells {
				mag = max(mag, math.Abs(c.Cb[j]), math.Abs(c.Cw[j]))
			}
			for _, bc := range []float64{m.inlet.Cb[j]} {
				mag = max(mag, math.Abs(bc))
			}
			if bc, ok := m.bcs[m.gas[j].Name]; ok {
				for _, t := range m.times {
					mag = max(mag, math.Abs(bc.ValueAt(t)))
				}
			}
			for i := range m.cells {
				m.scale[m.idxCb(i, j)] = mag
				m.scale[m.idxCw(i, j)] = mag
			}
		}
		for k, s := range m.surf {
			mag := floor
			for _, c := range m.cells {
				mag = max(mag, math.Abs(c.Q[k]))
			}
			// Site densities bound the coverages.
			for _, site := range m.sites {
				if _, ok := site.Occupancy[s.Name]; ok {
					mag = max(mag, site.Density)
				}
			}
			for i := range m.cells {
				m.scale[m.idxQ(i, k)] = mag
			}
		}
		return nil
	}
}

// rescaleFromState refreshes the scale factors from the current state,
// keeping the configured floor.
func (m *Monolith) rescaleFromState() {
	floor := m.solver.ScaleFloor
	for j := range m.gas {
		mag := floor
		for _, c := range m.cells {
			mag = max(mag, math.Abs(c.Cb[j]), math.Abs(c.Cw[j]))
		}
		for i := range m.cells {
			m.scale[m.idxCb(i, j)] = mag
			m.scale[m.idxCw(i, j)] = mag
		}
	}
	for k := range m.surf {
		mag := floor
		for _, c := range m.cells {
			mag = max(mag, math.Abs(c.Q[k]))
		}
		for i := range m.cells {
			m.scale[m.idxQ(i, k)] = mag
		}
	}
}

// FinalizeAutoScaling returns a function that re-derives the scale
// factors from the trajectory recorded by the initialization march.
func FinalizeAutoScaling() DomainManipulator {
	return func(m *Monolith) error {
		if m.trajectory == nil {
			return fmt.Errorf("cats: FinalizeAutoScaling requires InitializeSimulator to run first")
		}
		floor := m.solver.ScaleFloor
		n := len(m.cells) * m.nUnknowns
		mags := make([]float64, n)
		for i := range mags {
			mags[i] = floor
		}
		for _, x := range m.trajectory {
			if x == nil {
				continue
			}
			for i, v := range x {
				mags[i] = max(mags[i], math.Abs(v))
			}
		}
		// Share one scale per variable across all nodes so that a
		// clean section of the bed does not dominate the norm.
		for j := range m.gas {
			mag := floor
			for i := range m.cells {
				mag = max(mag, mags[m.idxCb(i, j)], mags[m.idxCw(i, j)])
			}
			for i := range m.cells {
				m.scale[m.idxCb(i, j)] = mag
				m.scale[m.idxCw(i, j)] = mag
			}
		}
		for k := range m.surf {
			mag := floor
			for i := range m.cells {
				mag = max(mag, mags[m.idxQ(i, k)])
			}
			for i := range m.cells {
				m.scale[m.idxQ(i, k)] = mag
			}
		}
		return nil
	}
}

// InitializeSimulator returns a function that performs a conservative
// time march over the whole temporal domain at the relaxed
// initialization tolerance, recording the state at each time point for
// use as Newton guesses by the full-accuracy sweep. The domain state is
// restored to the initial conditions afterwards.
func InitializeSimulator(msgLog chan string) DomainManipulator {
	return func(m *Monolith) error {
		n := len(m.cells) * m.nUnknowns
		x0 := make([]float64, n)
		m.packState(x0)
		m.trajectory = make([][]float64, len(m.times))
		m.trajectory[0] = make([]float64, n)
		copy(m.trajectory[0], x0)

		notify := func(err error, d time.Duration) {
			if msgLog != nil {
				msgLog <- fmt.Sprintf("initialization restart in %v: %v", d, err)
			}
		}
		for ti := 0; ti < len(m.times)-1; ti++ {
			for _, c := range m.cells {
				c.stepStart()
			}
			m.tIndex = ti
			var stats SimulationStatus
			if err := m.advance(m.times[ti], m.times[ti+1], m.solver.InitTol, &stats, notify); err != nil {
				return fmt.Errorf("cats: initialization march: %v", err)
			}
			x := make([]float64, n)
			m.packState(x)
			m.trajectory[ti+1] = x
		}

		// Rewind to the initial state for the accurate sweep.
		m.unpackState(x0)
		for _, c := range m.cells {
			c.stepStart()
		}
		m.applyBoundaryAt(m.times[0])
		m.tIndex = 0
		m.Done = false
		if msgLog != nil {
			msgLog <- fmt.Sprintf("initialization march complete: %d time points", len(m.times))
		}
		return nil
	}
}

// RunSolver advances the simulation from its current state through all
// remaining time points at the configured tolerance, recording the
// solution after each step. ApplyInitialConditions must have run first.
// msgLog, if non-nil, receives restart messages; something must be
// receiving from it.
func (m *Monolith) RunSolver(msgLog chan string) error {
	if !m.discretized {
		return fmt.Errorf("cats: model must be discretized before solving")
	}
	begin := Calculations(StepStart())
	step := SolveTimestep(msgLog)
	clip := Calculations(ClipNegatives())
	record := RecordState()
	if m.results == nil {
		if err := record(m); err != nil {
			return err
		}
	}
	for !m.Done {
		for _, f := range []DomainManipulator{begin, step, clip, record} {
			if err := f(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// SteadyStateConvergenceCheck checks whether a simulation held at fixed
// conditions has stopped changing and sets the Done flag if it has. If
// maxSteps > 0, the simulation is also finished after that number of
// steps. Status reports are sent to c if it is non-nil.
func SteadyStateConvergenceCheck(maxSteps int, c chan ConvergenceStatus) DomainManipulator {
	const tolerance = 0.005
	var oldSum float64
	step := 0
	return func(m *Monolith) error {
		step++
		var sum float64
		for _, cell := range m.cells {
			for _, v := range cell.Cb {
				sum += math.Abs(v)
			}
			for _, v := range cell.Q {
				sum += math.Abs(v)
			}
		}
		change := math.Abs(sum-oldSum) / max(math.Abs(oldSum), 1.e-30)
		oldSum = sum
		status := ConvergenceStatus{Step: step, Change: change}
		if maxSteps > 0 && step >= maxSteps {
			m.Done = true
			status.Converged = true
		} else if maxSteps <= 0 && step > 1 && change < tolerance {
			m.Done = true
			status.Converged = true
		}
		if c != nil {
			c <- status
		}
		return nil
	}
}
