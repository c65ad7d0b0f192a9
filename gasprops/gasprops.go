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

// Package gasprops estimates gas-phase transport properties for monolith
// channel flow. Quantities are carried as github.com/ctessum/unit values
// in SI units, so an input supplied in the wrong laboratory units
// surfaces as a dimension error instead of a silently wrong coefficient.
//
// The correlations are deliberately simple: they trade rigor for the
// ability to estimate film and pore transport coefficients from the few
// properties a light-off experiment reports.
package gasprops

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
)

const (
	// HeatCapacityRatio is the specific heat ratio of a diatomic ideal
	// gas, used to derive heat capacities from the gas constant.
	HeatCapacityRatio = 1.4

	// DefaultEffDiffFactor is the porosity exponent of the
	// parallel-pore effective diffusivity model.
	DefaultEffDiffFactor = 1.4

	// gasConstant is the ideal gas constant [J mol⁻¹ K⁻¹].
	gasConstant = 8.3144621

	// knudsenCoef gives the Knudsen diffusivity in cm² s⁻¹ from the
	// pore radius in cm and sqrt(T/M) in K·mol/g.
	knudsenCoef = 9700

	// diffTempExponent relates molecular diffusivity to temperature,
	// D ∝ T^1.75.
	diffTempExponent = 1.75

	// thermalConductivityCoef and thermalConductivityExp give the
	// conductivity of combustion exhaust in W m⁻¹ K⁻¹ as
	// 2.66e-4·T^0.805.
	thermalConductivityCoef = 2.66e-4
	thermalConductivityExp  = 0.805
)

// MoleDim is the amount-of-substance dimension, which the unit package
// does not predefine.
var MoleDim unit.Dimension

// Dimension sets of the derived quantities used in this package.
var (
	// Meter2PerSecond is diffusivity [m² s⁻¹].
	Meter2PerSecond = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -1}
	// WattPerMeterKelvin is thermal conductivity [W m⁻¹ K⁻¹].
	WattPerMeterKelvin = unit.Dimensions{
		unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -3, unit.TemperatureDim: -1}
	// WattPerMeter2Kelvin is a heat transfer coefficient [W m⁻² K⁻¹].
	WattPerMeter2Kelvin = unit.Dimensions{
		unit.MassDim: 1, unit.TimeDim: -3, unit.TemperatureDim: -1}
	// JoulePerKilogramKelvin is specific heat capacity [J kg⁻¹ K⁻¹].
	JoulePerKilogramKelvin = unit.Dimensions{
		unit.LengthDim: 2, unit.TimeDim: -2, unit.TemperatureDim: -1}

	// KilogramPerMole is molar mass [kg mol⁻¹]. Assigned during
	// initialization because it carries MoleDim.
	KilogramPerMole unit.Dimensions
	// JoulePerMoleKelvin is molar heat capacity [J mol⁻¹ K⁻¹].
	JoulePerMoleKelvin unit.Dimensions

	// GasConstant is the ideal gas constant.
	GasConstant *unit.Unit
)

func init() {
	// "mol" is reserved by the unit package.
	MoleDim = unit.NewDimension("mole")
	KilogramPerMole = unit.Dimensions{unit.MassDim: 1, MoleDim: -1}
	JoulePerMoleKelvin = unit.Dimensions{
		unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2,
		unit.TemperatureDim: -1, MoleDim: -1}
	GasConstant = unit.New(gasConstant, JoulePerMoleKelvin)
}

// MolarMass returns a molar mass given in g mol⁻¹, the form species
// tables list.
func MolarMass(gramsPerMole float64) *unit.Unit {
	return unit.New(gramsPerMole*1e-3, KilogramPerMole)
}

// Properties describes the state of the bulk gas and the monolith
// geometry needed to evaluate transport coefficients.
type Properties struct {
	// Temperature of the bulk gas [K].
	Temperature *unit.Unit
	// Pressure of the bulk gas [Pa].
	Pressure *unit.Unit
	// PoreRadius is the mean washcoat micro-pore radius [m].
	PoreRadius *unit.Unit
	// HydraulicDiameter of the open monolith channel [m].
	HydraulicDiameter *unit.Unit
	// WashcoatPorosity is the void fraction of the washcoat layer.
	WashcoatPorosity *unit.Unit
	// MolarMass of the diffusing species [kg mol⁻¹].
	MolarMass *unit.Unit
	// RefDiffusivity is the molecular diffusivity of the species
	// measured at RefTemperature [m² s⁻¹].
	RefDiffusivity *unit.Unit
	// RefTemperature is the temperature of the RefDiffusivity
	// measurement [K].
	RefTemperature *unit.Unit
	// EffDiffFactor is the porosity exponent of the parallel-pore
	// model; zero selects DefaultEffDiffFactor.
	EffDiffFactor float64
}

// check validates that a quantity is present and carries the expected
// dimensions.
func check(u *unit.Unit, d unit.Dimensions, name string) error {
	if u == nil {
		return fmt.Errorf("gasprops: %s is not set", name)
	}
	if err := u.Check(d); err != nil {
		return fmt.Errorf("gasprops: %s: %v", name, err)
	}
	return nil
}

// MolecularDiffusivity returns the molecular diffusivity of a species at
// the gas temperature, extrapolated from a reference measurement as
// D(T) = D_ref·(T/T_ref)^1.75.
func (p *Properties) MolecularDiffusivity(ref, refT *unit.Unit) (*unit.Unit, error) {
	if err := check(p.Temperature, unit.Kelvin, "temperature"); err != nil {
		return nil, err
	}
	if err := check(ref, Meter2PerSecond, "reference diffusivity"); err != nil {
		return nil, err
	}
	if err := check(refT, unit.Kelvin, "reference temperature"); err != nil {
		return nil, err
	}
	d := ref.Value() * math.Pow(p.Temperature.Value()/refT.Value(), diffTempExponent)
	return unit.New(d, Meter2PerSecond), nil
}

// KnudsenDiffusivity returns the Knudsen diffusivity of a species of the
// given molar mass in the washcoat micro-pores, D_K = 9700·r·sqrt(T/M)
// with r in cm and M in g mol⁻¹.
func (p *Properties) KnudsenDiffusivity(molarMass *unit.Unit) (*unit.Unit, error) {
	if err := check(p.Temperature, unit.Kelvin, "temperature"); err != nil {
		return nil, err
	}
	if err := check(p.PoreRadius, unit.Meter, "pore radius"); err != nil {
		return nil, err
	}
	if err := check(molarMass, KilogramPerMole, "molar mass"); err != nil {
		return nil, err
	}
	rCm := p.PoreRadius.Value() * 100
	mGram := molarMass.Value() * 1000
	dk := knudsenCoef * rCm * math.Sqrt(p.Temperature.Value()/mGram) // [cm² s⁻¹]
	return unit.New(dk*1e-4, Meter2PerSecond), nil
}

// EffectiveDiffusivity returns the effective diffusivity of the species
// described by the MolarMass and RefDiffusivity fields in the washcoat:
// the parallel-pore combination of the molecular and Knudsen
// diffusivities, scaled by the washcoat porosity raised to
// EffDiffFactor.
func (p *Properties) EffectiveDiffusivity() (*unit.Unit, error) {
	dm, err := p.MolecularDiffusivity(p.RefDiffusivity, p.RefTemperature)
	if err != nil {
		return nil, err
	}
	dk, err := p.KnudsenDiffusivity(p.MolarMass)
	if err != nil {
		return nil, err
	}
	if err := check(p.WashcoatPorosity, unit.Dimless, "washcoat porosity"); err != nil {
		return nil, err
	}
	f := p.EffDiffFactor
	if f == 0 {
		f = DefaultEffDiffFactor
	}
	dp := 1 / (1/dm.Value() + 1/dk.Value())
	return unit.New(math.Pow(p.WashcoatPorosity.Value(), f)*dp, Meter2PerSecond), nil
}

// MassTransferCoef returns the film mass transfer coefficient
// km = Sh·D/d_h for the given Sherwood number.
func (p *Properties) MassTransferCoef(sh float64) (*unit.Unit, error) {
	d, err := p.MolecularDiffusivity(p.RefDiffusivity, p.RefTemperature)
	if err != nil {
		return nil, err
	}
	if err := check(p.HydraulicDiameter, unit.Meter, "hydraulic diameter"); err != nil {
		return nil, err
	}
	return unit.Div(unit.Mul(d, unit.New(sh, unit.Dimless)), p.HydraulicDiameter), nil
}

// ThermalConductivity returns the conductivity of the bulk gas,
// K_g = 2.66e-4·T^0.805.
func (p *Properties) ThermalConductivity() (*unit.Unit, error) {
	if err := check(p.Temperature, unit.Kelvin, "temperature"); err != nil {
		return nil, err
	}
	k := thermalConductivityCoef * math.Pow(p.Temperature.Value(), thermalConductivityExp)
	return unit.New(k, WattPerMeterKelvin), nil
}

// HeatTransferCoef returns the gas-solid film heat transfer coefficient
// h = Nu·K_g/d_h for the given Nusselt number.
func (p *Properties) HeatTransferCoef(nu float64) (*unit.Unit, error) {
	kg, err := p.ThermalConductivity()
	if err != nil {
		return nil, err
	}
	if err := check(p.HydraulicDiameter, unit.Meter, "hydraulic diameter"); err != nil {
		return nil, err
	}
	return unit.Div(unit.Mul(kg, unit.New(nu, unit.Dimless)), p.HydraulicDiameter), nil
}

// HeatCapacity returns the constant-pressure specific heat of the gas
// from the ideal-gas relation cp = gamma/(gamma-1)·R/M.
func (p *Properties) HeatCapacity() (*unit.Unit, error) {
	if err := check(p.MolarMass, KilogramPerMole, "molar mass"); err != nil {
		return nil, err
	}
	g := unit.New(HeatCapacityRatio/(HeatCapacityRatio-1), unit.Dimless)
	return unit.Div(unit.Mul(g, GasConstant), p.MolarMass), nil
}

// Density returns the ideal-gas density rho = P·M/(R·T).
func (p *Properties) Density() (*unit.Unit, error) {
	if err := check(p.Temperature, unit.Kelvin, "temperature"); err != nil {
		return nil, err
	}
	if err := check(p.Pressure, unit.Pascal, "pressure"); err != nil {
		return nil, err
	}
	if err := check(p.MolarMass, KilogramPerMole, "molar mass"); err != nil {
		return nil, err
	}
	return unit.Div(unit.Mul(p.Pressure, p.MolarMass), unit.Mul(GasConstant, p.Temperature)), nil
}
