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

package gasprops

import (
	"fmt"

	"github.com/ctessum/unit"
)

// Constructors for quantities recorded in the units laboratory
// instruments report. Each accepts the unit symbols a light-off rig
// commonly logs and returns the SI quantity.

func unsupported(quantity, symbol string) error {
	return fmt.Errorf("gasprops: unsupported %s unit %q", quantity, symbol)
}

// Length returns a length given in "m", "cm", or "mm".
func Length(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "m":
		return unit.New(v, unit.Meter), nil
	case "cm":
		return unit.New(v*1e-2, unit.Meter), nil
	case "mm":
		return unit.New(v*1e-3, unit.Meter), nil
	}
	return nil, unsupported("length", symbol)
}

// Time returns a duration given in "hr", "min", or "s".
func Time(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "hr":
		return unit.New(v*3600, unit.Second), nil
	case "min":
		return unit.New(v*60, unit.Second), nil
	case "s":
		return unit.New(v, unit.Second), nil
	}
	return nil, unsupported("time", symbol)
}

// Mass returns a mass given in "kg", "g", or "mg".
func Mass(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "kg":
		return unit.New(v, unit.Kilogram), nil
	case "g":
		return unit.New(v*1e-3, unit.Kilogram), nil
	case "mg":
		return unit.New(v*1e-6, unit.Kilogram), nil
	}
	return nil, unsupported("mass", symbol)
}

// Energy returns an energy given in "kJ", "J", or "mJ".
func Energy(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "kJ":
		return unit.New(v*1e3, unit.Joule), nil
	case "J":
		return unit.New(v, unit.Joule), nil
	case "mJ":
		return unit.New(v*1e-3, unit.Joule), nil
	}
	return nil, unsupported("energy", symbol)
}

// Pressure returns a pressure given in "kPa", "Pa", or "mPa".
func Pressure(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "kPa":
		return unit.New(v*1e3, unit.Pascal), nil
	case "Pa":
		return unit.New(v, unit.Pascal), nil
	case "mPa":
		return unit.New(v*1e-3, unit.Pascal), nil
	}
	return nil, unsupported("pressure", symbol)
}

// Volume returns a volume given in "m3", "L", "cm3", "mL", or "mm3".
func Volume(v float64, symbol string) (*unit.Unit, error) {
	switch symbol {
	case "m3":
		return unit.New(v, unit.Meter3), nil
	case "L":
		return unit.New(v*1e-3, unit.Meter3), nil
	case "cm3", "mL":
		return unit.New(v*1e-6, unit.Meter3), nil
	case "mm3":
		return unit.New(v*1e-9, unit.Meter3), nil
	}
	return nil, unsupported("volume", symbol)
}
