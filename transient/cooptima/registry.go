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

package cooptima

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Blend describes one fuel blend tested in the Co-Optima campaign.
type Blend struct {
	// Name is the blend's display name.
	Name string `toml:"name"`

	// Patterns are the blend identifiers as they appear in log file
	// names, for example "50pctToluene50pctNheptane".
	Patterns []string `toml:"patterns"`

	// O2Pct is the baseline O2 percentage fed with the blend at
	// stoichiometric conditions.
	O2Pct float64 `toml:"o2pct"`

	// Aliases are additional identifiers that map to this blend, for
	// spellings that changed between campaigns.
	Aliases []string `toml:"aliases"`
}

// Registry maps the blend identifiers embedded in log file names to
// blend descriptions.
type Registry struct {
	Blends []Blend `toml:"blend"`
}

// LoadRegistry decodes a TOML blend registry. The expected layout is a
// list of [[blend]] tables:
//
//	[[blend]]
//	name = "50/50 toluene/n-heptane"
//	patterns = ["50pctToluene50pctNheptane"]
//	o2pct = 0.685
func LoadRegistry(r io.Reader) (*Registry, error) {
	reg := new(Registry)
	if _, err := toml.DecodeReader(r, reg); err != nil {
		return nil, fmt.Errorf("cooptima: decoding blend registry: %v", err)
	}
	for i, b := range reg.Blends {
		if b.Name == "" {
			return nil, fmt.Errorf("cooptima: blend %d in the registry has no name", i)
		}
		if len(b.Patterns) == 0 {
			return nil, fmt.Errorf("cooptima: blend %s has no file-name patterns", b.Name)
		}
	}
	return reg, nil
}

// LoadRegistryFile loads a TOML blend registry from a file.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cooptima: %v", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// Find returns the blend whose patterns or aliases include the given
// file-name identifier, or nil when the identifier is unknown.
func (r *Registry) Find(pattern string) *Blend {
	for i := range r.Blends {
		b := &r.Blends[i]
		for _, p := range b.Patterns {
			if p == pattern {
				return b
			}
		}
		for _, a := range b.Aliases {
			if a == pattern {
				return b
			}
		}
	}
	return nil
}

// DefaultRegistry returns the registry of the blends tested in the
// Co-Optima light-off campaigns, with the baseline O2 percentages fed
// at lambda 0.999.
func DefaultRegistry() *Registry {
	return &Registry{Blends: []Blend{
		{Name: "50/50 toluene/n-heptane", Patterns: []string{"50pctToluene50pctNheptane"}, O2Pct: 0.685},
		{Name: "25/75 toluene/n-heptane", Patterns: []string{"25pctToluene75pctNheptane"}, O2Pct: 0.708},
		{Name: "10/90 toluene/n-heptane", Patterns: []string{"10pctToluene90pctNheptane"}, O2Pct: 0.724},
		{Name: "5/95 toluene/n-heptane", Patterns: []string{"5pctToluene95pctNheptane"}, O2Pct: 0.729},
		{Name: "BOB baseline", Patterns: []string{"BobBOB"}, O2Pct: 0.706},
		{Name: "BOB E-10%", Patterns: []string{"EtOH10pctBobBOB"}, O2Pct: 0.706},
		{Name: "BOB E-20%", Patterns: []string{"EtOH20pctBobBOB"}, O2Pct: 0.707},
		{Name: "BOB E-30%", Patterns: []string{"EtOH30pctBobBOB"}, O2Pct: 0.707},
		{Name: "BOB 10% diisobutylene", Patterns: []string{"Diiso10pctBobBOB"}, O2Pct: 0.706},
		{Name: "BOB 20% diisobutylene", Patterns: []string{"Diiso20pctBobBOB"}, O2Pct: 0.707},
		{Name: "BOB 30% diisobutylene", Patterns: []string{"Diiso30pctBobBOB"}, O2Pct: 0.708},
		{Name: "BOB 10% isobutanol", Patterns: []string{"iBuOH10pctBobBOB"}, O2Pct: 0.706},
		{Name: "BOB 20% isobutanol", Patterns: []string{"iBuOH20pctBobBOB"}, O2Pct: 0.707},
		{Name: "BOB 30% isobutanol", Patterns: []string{"iBuOH30pctBobBOB"}, O2Pct: 0.708},
		{Name: "50/50 isooctane/n-heptane", Patterns: []string{"50pctisooctane50pctNheptane"}, O2Pct: 0.734},
		{Name: "50/50 isooctane/toluene", Patterns: []string{"50pctisooctane50pcttoluene"}, O2Pct: 0.684},
		{Name: "30/70 diisobutylene/isooctane", Patterns: []string{"30pctDiiso70pctIsooctane"}, O2Pct: 0.726},
		{Name: "30/70 diisobutylene/n-heptane", Patterns: []string{"30pctDiiso70pctNheptane"}, O2Pct: 0.728},
		{Name: "30/70 diisobutylene/toluene", Patterns: []string{"30pctDiiso70pcttoluene"}, O2Pct: 0.665},
		{Name: "30/70 ethanol/isooctane", Patterns: []string{"30pctEtOH70pctIsooctane"}, O2Pct: 0.728},
		{Name: "30/70 ethanol/n-heptane", Patterns: []string{"30pctEtOH70pctNheptane"}, O2Pct: 0.730},
		{Name: "30/70 ethanol/toluene", Patterns: []string{"30pctEtOH70pcttoluene"}, O2Pct: 0.661},
		{Name: "isooctane/n-heptane/1-hexene", Patterns: []string{"IsooctaneNheptane1hexene", "IsooctaneNheptane"}, O2Pct: 0.733},
	}}
}
