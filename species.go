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

// GasSpecies is a chemical species carried by the gas phase, present
// both in the bulk channel and inside the washcoat pores.
type GasSpecies struct {
	Name string

	// Km is the film mass transfer coefficient between the bulk
	// channel and the washcoat [cm/min].
	Km float64

	// Diff is the effective diffusivity in the washcoat [cm²/min].
	// It is informational unless a washcoat diffusion model is active.
	Diff float64

	// MolarMass [g/mol], used for property estimation.
	MolarMass float64
}

// SurfaceSpecies is an adsorbed species bound to catalytic sites,
// tracked in units of mol per liter of washcoat.
type SurfaceSpecies struct {
	Name string
}

// Site is a type of catalytic site. The free-site concentration is not an
// independent unknown: it is closed algebraically by the site balance
// Smax = S + Σ occupancy·q over the surface species that occupy it.
type Site struct {
	Name string

	// Density is the total site concentration Smax [mol/L washcoat].
	Density float64

	// Occupancy maps surface species names to the number of sites of
	// this type that one molecule of the species occupies.
	Occupancy map[string]float64

	occIdx []int     // surface species indices, filled by BuildConstraints
	occN   []float64 // occupancy numbers matching occIdx
}

// AddGasSpecies declares gas-phase species by name.
func (m *Monolith) AddGasSpecies(names ...string) *Monolith {
	for _, n := range names {
		m.gasIndex[n] = len(m.gas)
		m.gas = append(m.gas, &GasSpecies{Name: n})
	}
	return m
}

// AddSurfaceSpecies declares adsorbed surface species by name.
func (m *Monolith) AddSurfaceSpecies(names ...string) *Monolith {
	for _, n := range names {
		m.qIndex[n] = len(m.surf)
		m.surf = append(m.surf, &SurfaceSpecies{Name: n})
	}
	return m
}

// AddSites declares catalytic site types.
func (m *Monolith) AddSites(sites ...Site) *Monolith {
	for i := range sites {
		s := sites[i]
		m.sIndex[s.Name] = len(m.sites)
		m.sites = append(m.sites, &s)
	}
	return m
}

// SetSiteDensity sets the total concentration Smax [mol/L washcoat] for
// a previously added site.
func (m *Monolith) SetSiteDensity(site string, smax float64) *Monolith {
	if i, ok := m.sIndex[site]; ok {
		m.sites[i].Density = smax
	}
	return m
}

// SetSiteBalance sets which surface species occupy a site and how many
// sites each occupies.
func (m *Monolith) SetSiteBalance(site string, occupancy map[string]float64) *Monolith {
	if i, ok := m.sIndex[site]; ok {
		m.sites[i].Occupancy = occupancy
	}
	return m
}

// GasSpecies returns the named gas species, or nil if it was not
// declared.
func (m *Monolith) GasSpecies(name string) *GasSpecies {
	if i, ok := m.gasIndex[name]; ok {
		return m.gas[i]
	}
	return nil
}

// GasSpeciesNames returns the names of the declared gas species in
// declaration order.
func (m *Monolith) GasSpeciesNames() []string {
	names := make([]string, len(m.gas))
	for i, g := range m.gas {
		names[i] = g.Name
	}
	return names
}

// SurfaceSpeciesNames returns the names of the declared surface species.
func (m *Monolith) SurfaceSpeciesNames() []string {
	names := make([]string, len(m.surf))
	for i, s := range m.surf {
		names[i] = s.Name
	}
	return names
}

// updateSites closes the site balances for c, clipping at zero when the
// coverages transiently overshoot during a Newton iteration.
func (m *Monolith) updateSites(c *Cell) {
	for i, s := range m.sites {
		free := s.Density
		for j, qi := range s.occIdx {
			free -= s.occN[j] * c.Q[qi]
		}
		if free < 0 {
			free = 0
		}
		c.S[i] = free
	}
}
