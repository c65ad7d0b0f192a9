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

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotBreakthroughVsData draws the simulated outlet series of each data
// species together with the observed points and saves the plot to path.
// The image format is inferred from the file extension.
func PlotBreakthroughVsData(path string, m *Monolith, data ...*LightOffData) error {
	p := plot.New()
	p.Title.Text = "Breakthrough"
	p.X.Label.Text = "time (min)"
	p.Y.Label.Text = "outlet concentration (ppm)"
	for k, d := range data {
		times, model, err := m.Breakthrough(d.Species)
		if err != nil {
			return err
		}
		xys := make(plotter.XYs, len(times))
		for i := range times {
			xys[i].X, xys[i].Y = times[i], model[i]
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(k)
		obs := make(plotter.XYs, len(d.Times))
		for i := range d.Times {
			obs[i].X, obs[i].Y = d.Times[i], d.Values[i]
		}
		s, err := plotter.NewScatter(obs)
		if err != nil {
			return err
		}
		s.Color = plotutil.Color(k)
		s.Radius = 1.5
		s.Shape = draw.CircleGlyph{}
		p.Add(l, s)
		p.Legend.Add(d.Species, l)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotAtTimes draws axial profiles of one state variable at the recorded
// time points nearest each requested time and saves the plot to path.
func PlotAtTimes(path string, m *Monolith, varName string, times ...float64) error {
	iv, err := m.varIndex(varName)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = varName
	p.X.Label.Text = "z (cm)"
	p.Y.Label.Text = varName
	for k, t := range times {
		ti := nearestIndex(m.times, t)
		xys := make(plotter.XYs, len(m.cells))
		for i, c := range m.cells {
			xys[i].X = c.Z
			xys[i].Y = m.resultAt(ti, i, iv)
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(k)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("t=%g min", m.times[ti]), l)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotAtLocations draws time series of one state variable at the nodes
// nearest each requested axial position and saves the plot to path.
func PlotAtLocations(path string, m *Monolith, varName string, zs ...float64) error {
	iv, err := m.varIndex(varName)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = varName
	p.X.Label.Text = "time (min)"
	p.Y.Label.Text = varName
	positions := make([]float64, len(m.cells))
	for i, c := range m.cells {
		positions[i] = c.Z
	}
	for k, z := range zs {
		i := nearestIndex(positions, z)
		xys := make(plotter.XYs, len(m.times))
		for ti := range m.times {
			xys[ti].X = m.times[ti]
			xys[ti].Y = m.resultAt(ti, i, iv)
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(k)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("z=%g cm", positions[i]), l)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// nearestIndex returns the index of the xs entry closest to x.
func nearestIndex(xs []float64, x float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range xs {
		if d := math.Abs(v - x); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
