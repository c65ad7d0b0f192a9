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

package catsutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coelectrolyzer/cats"
	"github.com/spf13/cobra"
)

// RunFit adjusts the rate parameters of the model defined in ModelFile
// until its breakthrough curves match the measured light-off series in
// DataFile, then writes a fit report to OutputFile.
//
// FitSeries maps gas species names to the data columns holding their
// measured outlet concentrations [ppm].
//
// TempCols maps thermocouple data columns to their axial positions
// [cm]. When it is empty the temperature model from the model file is
// used instead of measured temperatures.
//
// FixedReactions lists reactions held at their model-file parameters.
//
// The solver temporal grid follows the measured sample times, thinned
// to at most MaxPoints rows when MaxPoints is positive.
//
// BoundFactor, when positive, bounds every free parameter within the
// given fraction of its starting value.
func RunFit(CobraCommand *cobra.Command, LogFile, OutputFile, ModelFile, DataFile string,
	FitSeries, TempCols map[string]string, FixedReactions []string,
	Overrides SolverOverrides, MaxPoints, MaxEvals int, BoundFactor float64, Plots bool) error {

	startTime := time.Now()

	// Start a function to receive and print log messages.
	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("cats: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	msgLog := make(chan string)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		for msg := range msgLog {
			log.Println(msg)
		}
		wg.Done()
	}()

	defer func() { // Wait for the logging to finish.
		close(msgLog)
		wg.Wait()
		logfile.Close()
	}()

	if len(FitSeries) == 0 {
		return fmt.Errorf("cats: there are no breakthrough series specified for fitting. " +
			"Please fill in the fitseries configuration and try again")
	}

	log.Println("Reading light-off data...")
	exp, err := cats.ReadLightOffData(DataFile)
	if err != nil {
		return err
	}

	log.Println("Reading model definition...")
	cfg, err := readModelConfig(ModelFile)
	if err != nil {
		return err
	}
	Overrides.apply(cfg)

	// The solver temporal grid follows the measured sample times.
	selector := cats.AllPoints()
	if MaxPoints > 0 {
		selector = cats.MaxPoints(MaxPoints)
	}
	sampled := exp.Times()
	idx := selector(sampled)
	times := make([]float64, len(idx))
	for i, j := range idx {
		times[i] = sampled[j]
	}
	m, err := cfg.BuildForTimes(times)
	if err != nil {
		return err
	}

	if len(TempCols) > 0 {
		cols, positions, err := temperatureStations(TempCols)
		if err != nil {
			return err
		}
		if err := m.SetTemperatureFromData(exp, cols, positions); err != nil {
			return err
		}
	}

	data := make([]*cats.LightOffData, 0, len(FitSeries))
	for _, species := range sortedKeys(FitSeries) {
		d, err := exp.Series(species, FitSeries[species])
		if err != nil {
			return err
		}
		data = append(data, d)
	}

	p, err := cats.NewFitProblem(m, data...)
	if err != nil {
		return err
	}
	p.MsgLog = msgLog
	if MaxEvals > 0 {
		p.MaxEvaluations = MaxEvals
	}
	if err := p.FixReactions(FixedReactions...); err != nil {
		return err
	}
	if BoundFactor > 0 {
		fixed := make(map[string]bool)
		for _, name := range FixedReactions {
			fixed[name] = true
		}
		for _, rxn := range m.Reactions() {
			if fixed[rxn.Name()] {
				continue
			}
			for _, param := range rxn.ParamNames() {
				if err := p.SetParamFactorBounds(rxn.Name(), param, BoundFactor); err != nil {
					return err
				}
			}
		}
	}

	log.Println("Fitting rate parameters...")
	rep, err := p.Fit()
	if err != nil {
		return err
	}

	f, err := os.Create(OutputFile)
	if err != nil {
		return fmt.Errorf("cats: problem creating fit report: %v", err)
	}
	cats.PrintFitReport(f, rep)
	cats.PrintKineticParameterInfo(f, m)
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Wrote fit report to %s", OutputFile)

	if Plots {
		plotFile := strings.TrimSuffix(OutputFile, filepath.Ext(OutputFile)) + ".png"
		if err := cats.PlotBreakthroughVsData(plotFile, m, data...); err != nil {
			return err
		}
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f minutes", elapsedTime.Minutes())

	return nil
}

// temperatureStations orders thermocouple columns by their axial
// position. The map values hold the positions [cm] as strings.
func temperatureStations(tempCols map[string]string) ([]string, []float64, error) {
	type station struct {
		col string
		z   float64
	}
	stations := make([]station, 0, len(tempCols))
	for col, zs := range tempCols {
		z, err := strconv.ParseFloat(zs, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("cats: position %q of temperature column %s: %v", zs, col, err)
		}
		stations = append(stations, station{col, z})
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].z < stations[j].z })
	cols := make([]string, len(stations))
	positions := make([]float64, len(stations))
	for i, s := range stations {
		cols[i] = s.col
		positions[i] = s.z
	}
	return cols, positions, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
