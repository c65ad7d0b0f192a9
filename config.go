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
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// ModelConfig is the TOML description of a monolith reactor model. See
// LoadModelTOML for how it is turned into a runnable model.
type ModelConfig struct {
	Domain struct {
		Length            float64 `toml:"length"`             // [cm]
		Radius            float64 `toml:"radius"`             // [cm]
		BulkPorosity      float64 `toml:"bulk_porosity"`      // εb
		WashcoatPorosity  float64 `toml:"washcoat_porosity"`  // εw
		CellDensity       float64 `toml:"cell_density"`       // [cells/cm²]
		SurfaceToVolume   float64 `toml:"surface_to_volume"`  // overrides cell_density if set [cm⁻¹]
		MassTransferCoef  float64 `toml:"mass_transfer_coef"` // default per-species km [cm/min]
		StartTime         float64 `toml:"start_time"`         // [min]
		EndTime           float64 `toml:"end_time"`           // [min]
		IsothermalTemp    float64 `toml:"isothermal_temp"`    // [K]
		TemperatureRampTo float64 `toml:"temperature_ramp_to"`
	} `toml:"domain"`

	Flow struct {
		SpaceVelocity  float64 `toml:"space_velocity"` // [1/min]
		RefTemp        float64 `toml:"ref_temp"`       // [K]
		RefPress       float64 `toml:"ref_press"`      // [kPa]
		LinearVelocity float64 `toml:"linear_velocity"`
	} `toml:"flow"`

	Gas []struct {
		Name      string  `toml:"name"`
		Km        float64 `toml:"km"` // overrides the domain default
		Diff      float64 `toml:"diff"`
		MolarMass float64 `toml:"molar_mass"`
	} `toml:"gas"`

	Surface []struct {
		Name string `toml:"name"`
	} `toml:"surface"`

	Site []struct {
		Name      string             `toml:"name"`
		Density   float64            `toml:"density"` // [mol/L washcoat]
		Occupancy map[string]float64 `toml:"occupancy"`
	} `toml:"site"`

	Reaction []struct {
		Name      string             `toml:"name"`
		Type      string             `toml:"type"` // "Arrhenius" or "EquilibriumArrhenius"
		A         float64            `toml:"A"`
		B         float64            `toml:"B"`
		E         float64            `toml:"E"`
		DH        float64            `toml:"dH"`
		DS        float64            `toml:"dS"`
		Reactants map[string]float64 `toml:"reactants"`
		Products  map[string]float64 `toml:"products"`
	} `toml:"reaction"`

	// IC maps species names to initial values. Gas species are given in
	// ppm and converted at the initial temperature; surface species are
	// in mol/L washcoat.
	IC map[string]float64 `toml:"ic"`

	// BC maps gas species names to inlet histories.
	BC map[string]BCConfig `toml:"bc"`

	Solver struct {
		Method      string  `toml:"method"` // "fd" or "ocfe"
		TimeSteps   int     `toml:"tstep"`
		Nodes       int     `toml:"nodes"`
		ColPoints   int     `toml:"colpoints"`
		NewtonTol   float64 `toml:"newton_tol"`
		InitTol     float64 `toml:"init_tol"`
		MaxIter     int     `toml:"max_iter"`
		MaxRestarts int     `toml:"max_restarts"`
	} `toml:"solver"`
}

// BCConfig is the TOML description of one inlet history. Values are in
// ppm unless units is "conc". Steps holds (time, value) pairs applied as
// plateaus; Ramps holds (time, span) pairs that turn the step starting
// at that time into a linear ramp over the span.
type BCConfig struct {
	Units string      `toml:"units"`
	Base  float64     `toml:"base"`
	Steps [][]float64 `toml:"steps"`
	Ramps [][]float64 `toml:"ramps"`
}

// LoadModelTOML reads a model description and builds the monolith model
// it describes, leaving it discretized and ready to run.
func LoadModelTOML(r io.Reader) (*Monolith, error) {
	var cfg ModelConfig
	if _, err := toml.DecodeReader(r, &cfg); err != nil {
		return nil, fmt.Errorf("cats: decoding model configuration: %v", err)
	}
	return cfg.Build()
}

// Build turns the configuration into a discretized model.
func (cfg *ModelConfig) Build() (*Monolith, error) {
	return cfg.build(nil)
}

// BuildForTimes is like Build but lays the temporal grid over the given
// points instead of uniform steps across the time domain.
func (cfg *ModelConfig) BuildForTimes(times []float64) (*Monolith, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("cats: model configuration: at least two time points are required")
	}
	return cfg.build(times)
}

func (cfg *ModelConfig) build(times []float64) (*Monolith, error) {
	m := NewMonolith()
	m.AddAxialDim(0, cfg.Domain.Length)
	m.AddTemporalDim(cfg.Domain.StartTime, cfg.Domain.EndTime)
	m.SetBulkPorosity(cfg.Domain.BulkPorosity)
	m.SetWashcoatPorosity(cfg.Domain.WashcoatPorosity)
	if cfg.Domain.Radius > 0 {
		m.SetReactorRadius(cfg.Domain.Radius)
	}
	if cfg.Domain.SurfaceToVolume > 0 {
		m.SetSurfaceToVolume(cfg.Domain.SurfaceToVolume)
	} else if cfg.Domain.CellDensity > 0 {
		m.SetCellDensity(cfg.Domain.CellDensity)
	}

	if cfg.Flow.RefTemp == 0 {
		cfg.Flow.RefTemp = 273.15
	}
	if cfg.Flow.RefPress == 0 {
		cfg.Flow.RefPress = 101.35
	}
	if cfg.Flow.SpaceVelocity > 0 {
		m.SetSpaceVelocity(cfg.Flow.SpaceVelocity, cfg.Flow.RefTemp, cfg.Flow.RefPress)
	} else if cfg.Flow.LinearVelocity > 0 {
		m.SetLinearVelocity(cfg.Flow.LinearVelocity)
	}

	T0 := cfg.Domain.IsothermalTemp
	if T0 <= 0 {
		return nil, fmt.Errorf("cats: model configuration: isothermal_temp must be positive")
	}
	if rampTo := cfg.Domain.TemperatureRampTo; rampTo > 0 {
		m.SetTemperatureModel(&RampTemperature{
			Start: T0, End: rampTo,
			StartTime: cfg.Domain.StartTime, EndTime: cfg.Domain.EndTime,
		})
	} else {
		m.SetIsothermalTemp(T0)
	}

	gasNames := make([]string, len(cfg.Gas))
	for i, g := range cfg.Gas {
		gasNames[i] = g.Name
	}
	m.AddGasSpecies(gasNames...)
	if cfg.Domain.MassTransferCoef > 0 {
		m.SetMassTransferCoef(cfg.Domain.MassTransferCoef)
	}
	for _, g := range cfg.Gas {
		gs := m.GasSpecies(g.Name)
		if g.Km > 0 {
			gs.Km = g.Km
		}
		gs.Diff = g.Diff
		gs.MolarMass = g.MolarMass
	}
	for _, s := range cfg.Surface {
		m.AddSurfaceSpecies(s.Name)
	}
	for _, s := range cfg.Site {
		m.AddSites(Site{Name: s.Name, Density: s.Density, Occupancy: s.Occupancy})
	}

	rxns := make(map[string]ReactionType, len(cfg.Reaction))
	infos := make(map[string]ReactionInfo, len(cfg.Reaction))
	for _, r := range cfg.Reaction {
		var rt ReactionType
		switch strings.ToLower(r.Type) {
		case "arrhenius":
			rt = Arrhenius
		case "equilibriumarrhenius", "equilibrium-arrhenius", "equilibrium_arrhenius":
			rt = EquilibriumArrhenius
		default:
			return nil, fmt.Errorf("cats: model configuration: reaction %s has unknown type %q", r.Name, r.Type)
		}
		rxns[r.Name] = rt
		infos[r.Name] = ReactionInfo{
			A: r.A, B: r.B, E: r.E, DH: r.DH, DS: r.DS,
			Reactants: r.Reactants, Products: r.Products,
		}
	}
	m.AddReactions(rxns)
	for name, info := range infos {
		m.SetReactionInfo(name, info)
	}

	for spec, v := range cfg.IC {
		if _, ok := m.gasIndex[spec]; ok {
			v = PPMToConc(v, T0, cfg.Flow.RefPress)
		}
		m.SetConstIC(spec, v)
	}
	for spec, bc := range cfg.BC {
		conv := func(v float64) float64 { return v }
		if strings.ToLower(bc.Units) != "conc" {
			conv = func(v float64) float64 { return PPMToConc(v, T0, cfg.Flow.RefPress) }
		}
		var pairs []TimePair
		for i, s := range bc.Steps {
			if len(s) != 2 {
				return nil, fmt.Errorf("cats: model configuration: BC step %d for %s needs [time, value]", i, spec)
			}
			pairs = append(pairs, TimePair{Time: s[0], Value: conv(s[1])})
		}
		var ramps []Ramp
		for i, rp := range bc.Ramps {
			if len(rp) != 2 {
				return nil, fmt.Errorf("cats: model configuration: BC ramp %d for %s needs [time, span]", i, spec)
			}
			ramps = append(ramps, Ramp{Time: rp[0], Span: rp[1]})
		}
		m.SetTimeDependentBC(spec, conv(bc.Base), pairs, ramps...)
	}

	sc := DefaultSolverConfig()
	if cfg.Solver.NewtonTol > 0 {
		sc.NewtonTol = cfg.Solver.NewtonTol
	}
	if cfg.Solver.InitTol > 0 {
		sc.InitTol = cfg.Solver.InitTol
	}
	if cfg.Solver.MaxIter > 0 {
		sc.MaxNewtonIter = cfg.Solver.MaxIter
	}
	if cfg.Solver.MaxRestarts > 0 {
		sc.MaxRestarts = cfg.Solver.MaxRestarts
	}
	m.SetSolverConfig(sc)

	if err := m.BuildConstraints(); err != nil {
		return nil, err
	}
	if len(times) > 0 {
		m.SetTemporalPoints(times)
	}

	method := FiniteDifference
	switch strings.ToLower(cfg.Solver.Method) {
	case "", "fd", "finitedifference", "finite-difference":
	case "oc", "ocfe", "orthogonalcollocation", "orthogonal-collocation":
		method = OrthogonalCollocation
	default:
		return nil, fmt.Errorf("cats: model configuration: unknown discretization method %q", cfg.Solver.Method)
	}
	tstep := cfg.Solver.TimeSteps
	if tstep == 0 {
		tstep = 20
	}
	nodes := cfg.Solver.Nodes
	if nodes == 0 {
		nodes = 5
	}
	colpoints := cfg.Solver.ColPoints
	if colpoints == 0 {
		colpoints = 2
	}
	if err := m.DiscretizeModel(method, tstep, nodes, colpoints); err != nil {
		return nil, err
	}
	return m, nil
}
