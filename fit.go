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

	"github.com/GaryBoone/GoStats/stats"
	"gonum.org/v1/gonum/optimize"
)

// Bounds is an inclusive range for an adjustable rate parameter.
type Bounds struct {
	Lo, Hi float64
}

// freeParam is one adjustable parameter in the optimization vector.
type freeParam struct {
	rxn      int // index into the reaction network
	par      int // index into the reaction's parameter vector
	name     string
	b        Bounds
	logSpace bool // pre-exponentials vary over decades
}

// FitProblem couples a reactor model to observed breakthrough series and
// adjusts the unfixed reaction rate parameters to minimize the weighted
// squared mismatch between the simulated and observed outlet
// concentrations.
type FitProblem struct {
	Model *Monolith
	Data  []*LightOffData

	// MaxEvaluations caps the number of objective evaluations.
	MaxEvaluations int

	// Tolerance is the absolute convergence tolerance on the objective.
	Tolerance float64

	// MsgLog receives a progress message per objective evaluation if it
	// is non-nil. Something must be receiving from it.
	MsgLog chan string

	fixed  map[string]bool
	bounds map[string]Bounds
	evals  int
}

// NewFitProblem creates a fitting problem for the given model and
// breakthrough series. The model must already be built and discretized,
// every data series must name a declared gas species, and every sample
// time must lie inside the model's temporal domain.
func NewFitProblem(m *Monolith, data ...*LightOffData) (*FitProblem, error) {
	if !m.discretized {
		return nil, fmt.Errorf("cats: fit: model must be built and discretized")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("cats: fit: no breakthrough data given")
	}
	times := m.Times()
	t0, t1 := times[0], times[len(times)-1]
	for _, d := range data {
		if _, ok := m.gasIndex[d.Species]; !ok {
			return nil, fmt.Errorf("cats: fit: data series names undeclared gas species %q", d.Species)
		}
		// Sample times are increasing, so the ends bound the series.
		if first := d.Times[0]; first < t0 {
			return nil, fmt.Errorf("cats: fit: %s sample time %g is before the temporal domain start %g",
				d.Species, first, t0)
		}
		if last := d.Times[len(d.Times)-1]; last > t1 {
			return nil, fmt.Errorf("cats: fit: %s sample time %g is past the temporal domain end %g",
				d.Species, last, t1)
		}
	}
	return &FitProblem{
		Model:          m,
		Data:           data,
		MaxEvaluations: 500,
		Tolerance:      1.e-8,
		fixed:          make(map[string]bool),
		bounds:         make(map[string]Bounds),
	}, nil
}

// FixReactions removes the named reactions from the fit, holding their
// parameters at their current values.
func (p *FitProblem) FixReactions(names ...string) error {
	for _, name := range names {
		if p.Model.Reaction(name) == nil {
			return fmt.Errorf("cats: fit: cannot fix undeclared reaction %q", name)
		}
		p.fixed[name] = true
	}
	return nil
}

// FixAllReactions holds every reaction at its current parameters.
// Selected reactions can then be released with UnfixReactions.
func (p *FitProblem) FixAllReactions() {
	for _, r := range p.Model.Reactions() {
		p.fixed[r.Name()] = true
	}
}

// UnfixReactions returns the named reactions to the fit.
func (p *FitProblem) UnfixReactions(names ...string) error {
	for _, name := range names {
		if p.Model.Reaction(name) == nil {
			return fmt.Errorf("cats: fit: cannot unfix undeclared reaction %q", name)
		}
		delete(p.fixed, name)
	}
	return nil
}

// SetParamBounds sets an absolute range for one rate parameter of one
// reaction. Pre-exponential bounds must be positive.
func (p *FitProblem) SetParamBounds(reaction, param string, lo, hi float64) error {
	r := p.Model.Reaction(reaction)
	if r == nil {
		return fmt.Errorf("cats: fit: bounds for undeclared reaction %q", reaction)
	}
	found := false
	for _, n := range r.ParamNames() {
		if n == param {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("cats: fit: reaction %s has no parameter %q", reaction, param)
	}
	if lo >= hi {
		return fmt.Errorf("cats: fit: bounds for %s/%s: lower bound %g is not below upper bound %g",
			reaction, param, lo, hi)
	}
	if param == "A" && lo <= 0 {
		return fmt.Errorf("cats: fit: pre-exponential bounds for %s must be positive", reaction)
	}
	p.bounds[reaction+"/"+param] = Bounds{lo, hi}
	return nil
}

// SetParamFactorBounds sets the range for one rate parameter to
// v ± |v|·factor around its current value v.
func (p *FitProblem) SetParamFactorBounds(reaction, param string, factor float64) error {
	r := p.Model.Reaction(reaction)
	if r == nil {
		return fmt.Errorf("cats: fit: bounds for undeclared reaction %q", reaction)
	}
	if factor <= 0 {
		return fmt.Errorf("cats: fit: bound factor for %s/%s must be positive", reaction, param)
	}
	names := r.ParamNames()
	vals := r.Params()
	for i, n := range names {
		if n != param {
			continue
		}
		v := vals[i]
		span := math.Abs(v) * factor
		if span == 0 {
			span = factor
		}
		lo, hi := v-span, v+span
		if param == "A" {
			// Pre-exponentials stay positive.
			lo = max(lo, v/(1+factor))
			if lo <= 0 {
				lo = v * 1.e-3
			}
		}
		return p.SetParamBounds(reaction, param, lo, hi)
	}
	return fmt.Errorf("cats: fit: reaction %s has no parameter %q", reaction, param)
}

// buildFreeParams collects the adjustable parameters of the unfixed
// reactions in deterministic order. Parameters without explicit bounds
// default to ±20% around their current value.
func (p *FitProblem) buildFreeParams() ([]freeParam, error) {
	var fps []freeParam
	for ri, r := range p.Model.Reactions() {
		if p.fixed[r.Name()] {
			continue
		}
		names := r.ParamNames()
		vals := r.Params()
		for pi, n := range names {
			key := r.Name() + "/" + n
			b, ok := p.bounds[key]
			if !ok {
				v := vals[pi]
				span := 0.2 * math.Abs(v)
				if span == 0 {
					span = 1
				}
				b = Bounds{v - span, v + span}
				if n == "A" {
					if v <= 0 {
						return nil, fmt.Errorf("cats: fit: reaction %s has non-positive pre-exponential %g", r.Name(), v)
					}
					b = Bounds{v * 0.8, v * 1.2}
				}
			}
			fps = append(fps, freeParam{rxn: ri, par: pi, name: key, b: b, logSpace: n == "A"})
		}
	}
	if len(fps) == 0 {
		return nil, fmt.Errorf("cats: fit: all reactions are fixed")
	}
	return fps, nil
}

// toUnbounded maps parameter value v in (lo, hi) onto the real line.
func toUnbounded(v, lo, hi float64) float64 {
	f := (v - lo) / (hi - lo)
	const margin = 1.e-9
	f = math.Min(math.Max(f, margin), 1-margin)
	return math.Log(f / (1 - f))
}

// fromUnbounded is the inverse of toUnbounded.
func fromUnbounded(y, lo, hi float64) float64 {
	return lo + (hi-lo)/(1+math.Exp(-y))
}

func (fp freeParam) encode(v float64) float64 {
	if fp.logSpace {
		return toUnbounded(math.Log(v), math.Log(fp.b.Lo), math.Log(fp.b.Hi))
	}
	return toUnbounded(v, fp.b.Lo, fp.b.Hi)
}

func (fp freeParam) decode(y float64) float64 {
	if fp.logSpace {
		return math.Exp(fromUnbounded(y, math.Log(fp.b.Lo), math.Log(fp.b.Hi)))
	}
	return fromUnbounded(y, fp.b.Lo, fp.b.Hi)
}

// applyParams writes the decoded optimization vector into the reaction
// network.
func (p *FitProblem) applyParams(fps []freeParam, x []float64) {
	rxns := p.Model.Reactions()
	for k, fp := range fps {
		r := rxns[fp.rxn]
		vals := r.Params()
		vals[fp.par] = fp.decode(x[k])
		r.SetParams(vals)
	}
}

// objective runs the model at the candidate parameters and returns the
// weighted sum of squared outlet mismatches. Failed solves return +Inf
// so the optimizer steps away from them.
func (p *FitProblem) objective(fps []freeParam, x []float64) float64 {
	p.applyParams(fps, x)
	p.evals++
	m := p.Model
	if err := p.rerun(); err != nil {
		if p.MsgLog != nil {
			p.MsgLog <- fmt.Sprintf("fit evaluation %d: solver failed: %v", p.evals, err)
		}
		return math.Inf(1)
	}
	var sse float64
	for _, d := range p.Data {
		times, model, err := m.Breakthrough(d.Species)
		if err != nil {
			return math.Inf(1)
		}
		for i, t := range d.Times {
			if d.Weights[i] == 0 {
				continue
			}
			mv := interpolate(times, model, t)
			diff := mv - d.Values[i]
			sse += d.Weights[i] * diff * diff
		}
	}
	if p.MsgLog != nil {
		p.MsgLog <- fmt.Sprintf("fit evaluation %d: objective %.6g", p.evals, sse)
	}
	return sse
}

// rerun resets the domain to its initial conditions and marches through
// the whole temporal domain.
func (p *FitProblem) rerun() error {
	m := p.Model
	for _, f := range []DomainManipulator{
		ResetCells(),
		ApplyInitialConditions(),
		InitializeAutoScaling(),
		RecordState(),
	} {
		if err := f(m); err != nil {
			return err
		}
	}
	return m.RunSolver(nil)
}

// ParameterValue reports one rate parameter after a fit.
type ParameterValue struct {
	Reaction string
	Name     string
	Value    float64
	Bounds   Bounds
	Fixed    bool
}

// SeriesReport holds goodness-of-fit statistics for one breakthrough
// series, from a linear regression of model values against observations.
type SeriesReport struct {
	Species   string
	N         int // points with nonzero weight
	Slope     float64
	Intercept float64
	R2        float64
	RMSE      float64
	MeanBias  float64
	MeanErr   float64
}

// FitReport summarizes a completed fit.
type FitReport struct {
	Objective   float64
	Evaluations int
	Status      string
	Parameters  []ParameterValue
	Series      []SeriesReport
}

// Fit adjusts the unfixed reaction parameters to minimize the weighted
// squared mismatch against the breakthrough data, using a bounded
// Nelder-Mead search. The model is left holding the best parameters
// found.
func (p *FitProblem) Fit() (*FitReport, error) {
	fps, err := p.buildFreeParams()
	if err != nil {
		return nil, err
	}
	rxns := p.Model.Reactions()
	x0 := make([]float64, len(fps))
	for k, fp := range fps {
		x0[k] = fp.encode(rxns[fp.rxn].Params()[fp.par])
	}

	p.evals = 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return p.objective(fps, x) },
	}
	settings := &optimize.Settings{
		FuncEvaluations: p.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   p.Tolerance,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("cats: fit: %v", err)
	}

	// Leave the model holding the optimum and rerun it so the recorded
	// results match the reported parameters.
	p.applyParams(fps, result.X)
	if err := p.rerun(); err != nil {
		return nil, fmt.Errorf("cats: fit: final solve at the optimum failed: %v", err)
	}
	report := p.report(result.F, result.Status.String())
	report.Evaluations = p.evals
	return report, nil
}

// Report computes goodness-of-fit statistics for the model at its
// current parameters without optimizing.
func (p *FitProblem) Report() (*FitReport, error) {
	if err := p.rerun(); err != nil {
		return nil, err
	}
	var sse float64
	for _, d := range p.Data {
		times, model, err := p.Model.Breakthrough(d.Species)
		if err != nil {
			return nil, err
		}
		for i, t := range d.Times {
			if d.Weights[i] == 0 {
				continue
			}
			diff := interpolate(times, model, t) - d.Values[i]
			sse += d.Weights[i] * diff * diff
		}
	}
	return p.report(sse, "NotOptimized"), nil
}

// report builds the parameter table and per-series statistics from the
// model's current recorded results.
func (p *FitProblem) report(objective float64, status string) *FitReport {
	rep := &FitReport{Objective: objective, Status: status}
	for _, r := range p.Model.Reactions() {
		names := r.ParamNames()
		vals := r.Params()
		for i, n := range names {
			pv := ParameterValue{
				Reaction: r.Name(),
				Name:     n,
				Value:    vals[i],
				Fixed:    p.fixed[r.Name()],
			}
			if b, ok := p.bounds[r.Name()+"/"+n]; ok {
				pv.Bounds = b
			}
			rep.Parameters = append(rep.Parameters, pv)
		}
	}
	for _, d := range p.Data {
		times, model, err := p.Model.Breakthrough(d.Species)
		if err != nil {
			continue
		}
		var obs, mod []float64
		for i, t := range d.Times {
			if d.Weights[i] == 0 {
				continue
			}
			obs = append(obs, d.Values[i])
			mod = append(mod, interpolate(times, model, t))
		}
		sr := SeriesReport{Species: d.Species, N: len(obs)}
		if len(obs) >= 2 {
			sr.Slope, sr.Intercept, sr.R2, _, _, _ = stats.LinearRegression(obs, mod)
		}
		sr.RMSE = rmse(obs, mod)
		sr.MeanBias = meanBias(obs, mod)
		sr.MeanErr = meanErr(obs, mod)
		rep.Series = append(rep.Series, sr)
	}
	return rep
}

func rmse(a, b []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	r := 0.
	for i, v1 := range a {
		v2 := b[i]
		r += (v2 - v1) * (v2 - v1)
	}
	return math.Sqrt(r / float64(len(a)))
}

func meanBias(a, b []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	r := 0.
	for i, v1 := range a {
		r += b[i] - v1
	}
	return r / float64(len(a))
}

func meanErr(a, b []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	r := 0.
	for i, v1 := range a {
		r += math.Abs(b[i] - v1)
	}
	return r / float64(len(a))
}

// Breakthrough returns the recorded outlet time series for the named gas
// species in mole-fraction ppm. The reactor is taken as isobaric at the
// reference pressure.
func (m *Monolith) Breakthrough(species string) (times, ppm []float64, err error) {
	j, ok := m.gasIndex[species]
	if !ok {
		return nil, nil, fmt.Errorf("cats: breakthrough of undeclared gas species %q", species)
	}
	if m.results == nil {
		return nil, nil, fmt.Errorf("cats: no results have been recorded")
	}
	last := len(m.cells) - 1
	iT := len(m.varNames) - 2
	ppm = make([]float64, len(m.times))
	for ti := range m.times {
		conc := m.results.Get(ti, last, j)
		T := m.results.Get(ti, last, iT)
		ppm[ti] = ConcToPPM(conc, T, m.refPress)
	}
	return m.Times(), ppm, nil
}
