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
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/coelectrolyzer/cats/transient"
)

// plotConversion draws one conversion column against the inlet
// temperature over the temperature-ramp frame and saves the plot to
// path. The ramp is the second time frame of a campaign log; a log
// with a single frame is drawn whole.
func plotConversion(td *transient.TransientData, col, path string) error {
	conv, err := td.Column(col)
	if err != nil {
		return err
	}
	temps, err := td.Column(tcInCol)
	if err != nil {
		return err
	}
	start, end := 0, td.Rows()
	if td.NumFrames() > 1 {
		start, end = td.FrameRows(1)
	}

	xys := make(plotter.XYs, 0, end-start)
	for i := start; i < end; i++ {
		xys = append(xys, plotter.XY{X: temps[i], Y: conv[i]})
	}
	pl := plot.New()
	pl.Title.Text = col
	pl.X.Label.Text = tcInCol
	pl.Y.Label.Text = col
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Color = plotutil.Color(0)
	pl.Add(l)
	return pl.Save(6*vg.Inch, 4*vg.Inch, path)
}
