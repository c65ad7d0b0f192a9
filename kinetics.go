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
	"sort"
)

// ReactionType distinguishes the available rate law forms.
type ReactionType int

const (
	// Arrhenius is an irreversible reaction with rate constant
	// k = A·T^B·exp(−E/(R·T)).
	Arrhenius ReactionType = iota

	// EquilibriumArrhenius is a reversible reaction whose forward rate
	// constant follows the Arrhenius form and whose reverse rate
	// constant is derived from the equilibrium constant
	// K = exp(−ΔH/(R·T) + ΔS/R) as kr = kf/K.
	EquilibriumArrhenius
)

func (rt ReactionType) String() string {
	switch rt {
	case Arrhenius:
		return "Arrhenius"
	case EquilibriumArrhenius:
		return "EquilibriumArrhenius"
	default:
		return fmt.Sprintf("ReactionType(%d)", int(rt))
	}
}

// ReactionInfo specifies the rate law parameters and stoichiometry of a
// reaction. Reactant and product names may refer to gas species (their
// washcoat concentration enters the rate law), surface species, or
// sites; the map values are stoichiometric numbers, which also serve as
// rate-law exponents.
type ReactionInfo struct {
	A float64 `desc:"Pre-exponential factor" units:"rate-dependent"`
	B float64 `desc:"Temperature exponent" units:"dimensionless"`
	E float64 `desc:"Activation energy" units:"J/mol"`

	// DH and DS parameterize the equilibrium constant of
	// EquilibriumArrhenius reactions.
	DH float64 `desc:"Reaction enthalpy" units:"J/mol"`
	DS float64 `desc:"Reaction entropy" units:"J/(mol K)"`

	Reactants map[string]float64
	Products  map[string]float64
}

// Reaction is a single reaction in the network.
type Reaction interface {
	// Name returns the identifier the reaction was declared with.
	Name() string

	// Type returns the rate law form.
	Type() ReactionType

	// Rate returns the net volumetric rate [mol/(L washcoat · min)]
	// evaluated at the current state of node c.
	Rate(c *Cell) float64

	// Params and SetParams expose the adjustable rate parameters for
	// fitting: [A, E] for Arrhenius reactions and [A, E, ΔH, ΔS] for
	// equilibrium-Arrhenius reactions.
	Params() []float64
	SetParams(p []float64)
	ParamNames() []string

	// Info returns the current reaction specification.
	Info() ReactionInfo
}

type speciesKind int

const (
	gasKind speciesKind = iota
	surfKind
	siteKind
)

// rateTerm is one concentration factor in a power-law rate expression.
type rateTerm struct {
	kind speciesKind
	idx  int
	pow  float64
}

func (t rateTerm) conc(c *Cell) float64 {
	var v float64
	switch t.kind {
	case gasKind:
		v = c.Cw[t.idx]
	case surfKind:
		v = c.Q[t.idx]
	case siteKind:
		v = c.S[t.idx]
	}
	if v < 0 {
		return 0
	}
	return v
}

type baseReaction struct {
	name    string
	rtype   ReactionType
	info    ReactionInfo
	hasInfo bool

	fwdTerms []rateTerm
	revTerms []rateTerm

	// Net production coefficients, filled by resolve.
	gasStoich  []float64
	surfStoich []float64
}

func (r *baseReaction) Name() string       { return r.name }
func (r *baseReaction) Type() ReactionType { return r.rtype }
func (r *baseReaction) Info() ReactionInfo { return r.info }

func (r *baseReaction) forwardK(T float64) float64 {
	return r.info.A * math.Pow(T, r.info.B) * math.Exp(-r.info.E/(Rstd*T))
}

func (r *baseReaction) reverseK(T float64) float64 {
	if r.rtype != EquilibriumArrhenius {
		return 0
	}
	K := math.Exp(-r.info.DH/(Rstd*T) + r.info.DS/Rstd)
	return r.forwardK(T) / K
}

func (r *baseReaction) Rate(c *Cell) float64 {
	fwd := r.forwardK(c.T)
	for _, t := range r.fwdTerms {
		fwd *= math.Pow(t.conc(c), t.pow)
	}
	if r.rtype != EquilibriumArrhenius {
		return fwd
	}
	rev := r.reverseK(c.T)
	for _, t := range r.revTerms {
		rev *= math.Pow(t.conc(c), t.pow)
	}
	return fwd - rev
}

func (r *baseReaction) Params() []float64 {
	if r.rtype == EquilibriumArrhenius {
		return []float64{r.info.A, r.info.E, r.info.DH, r.info.DS}
	}
	return []float64{r.info.A, r.info.E}
}

func (r *baseReaction) SetParams(p []float64) {
	r.info.A, r.info.E = p[0], p[1]
	if r.rtype == EquilibriumArrhenius && len(p) >= 4 {
		r.info.DH, r.info.DS = p[2], p[3]
	}
}

func (r *baseReaction) ParamNames() []string {
	if r.rtype == EquilibriumArrhenius {
		return []string{"A", "E", "dH", "dS"}
	}
	return []string{"A", "E"}
}

// resolve translates species names into indexed rate terms and net
// stoichiometric coefficient vectors.
func (r *baseReaction) resolve(m *Monolith) error {
	if !r.hasInfo {
		return fmt.Errorf("cats: reaction %s has no rate information", r.name)
	}
	r.gasStoich = make([]float64, len(m.gas))
	r.surfStoich = make([]float64, len(m.surf))
	r.fwdTerms = r.fwdTerms[:0]
	r.revTerms = r.revTerms[:0]

	add := func(spec map[string]float64, sign float64, terms *[]rateTerm) error {
		for _, name := range sortedKeys(spec) {
			nu := spec[name]
			if i, ok := m.gasIndex[name]; ok {
				*terms = append(*terms, rateTerm{gasKind, i, nu})
				r.gasStoich[i] += sign * nu
				continue
			}
			if i, ok := m.qIndex[name]; ok {
				*terms = append(*terms, rateTerm{surfKind, i, nu})
				r.surfStoich[i] += sign * nu
				continue
			}
			if i, ok := m.sIndex[name]; ok {
				// Sites are closed by the site balance, so they carry
				// no independent stoichiometric contribution.
				*terms = append(*terms, rateTerm{siteKind, i, nu})
				continue
			}
			return fmt.Errorf("cats: reaction %s references undeclared species %q", r.name, name)
		}
		return nil
	}
	if err := add(r.info.Reactants, -1, &r.fwdTerms); err != nil {
		return err
	}
	return add(r.info.Products, 1, &r.revTerms)
}

// AddReactions declares reactions and their rate law forms. Reactions
// are stored sorted by name so that parameter ordering is deterministic.
func (m *Monolith) AddReactions(rxns map[string]ReactionType) *Monolith {
	for _, name := range sortedReactionKeys(rxns) {
		m.rxnIndex[name] = len(m.reactions)
		m.reactions = append(m.reactions, &baseReaction{name: name, rtype: rxns[name]})
	}
	return m
}

// SetReactionInfo sets the rate parameters and stoichiometry for a
// previously declared reaction.
func (m *Monolith) SetReactionInfo(name string, info ReactionInfo) *Monolith {
	if i, ok := m.rxnIndex[name]; ok {
		r := m.reactions[i].(*baseReaction)
		r.info = info
		r.hasInfo = true
	}
	return m
}

// Reactions returns the reaction network in deterministic order.
func (m *Monolith) Reactions() []Reaction {
	return m.reactions
}

// Reaction returns the named reaction, or nil if it was not declared.
func (m *Monolith) Reaction(name string) Reaction {
	if i, ok := m.rxnIndex[name]; ok {
		return m.reactions[i]
	}
	return nil
}

// sourceTerms accumulates the net volumetric production rates
// [mol/(L washcoat · min)] of the gas and surface species at node c.
func (m *Monolith) sourceTerms(c *Cell, gasSrc, surfSrc []float64) {
	for i := range gasSrc {
		gasSrc[i] = 0
	}
	for i := range surfSrc {
		surfSrc[i] = 0
	}
	m.updateSites(c)
	for _, rxn := range m.reactions {
		r := rxn.(*baseReaction)
		rate := r.Rate(c)
		for i, nu := range r.gasStoich {
			if nu != 0 {
				gasSrc[i] += nu * rate
			}
		}
		for i, nu := range r.surfStoich {
			if nu != 0 {
				surfSrc[i] += nu * rate
			}
		}
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedReactionKeys(m map[string]ReactionType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
