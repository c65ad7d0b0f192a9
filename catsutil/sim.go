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
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/coelectrolyzer/cats"
	"github.com/spf13/cobra"
)

// Run builds the monolith reactor defined in ModelFile, marches it
// across its temporal domain, and writes the output variables to
// OutputFile.
//
// CobraCommand is the cobra.Command instance where Run is called from.
//
// LogFile is the path to the desired logfile location.
//
// OutputVariables maps output names to expressions of the state
// variables. If it is empty, every state variable is written as-is.
//
// Overrides replaces [solver] settings from the model file with values
// given on the command line.
//
// If Plots is true, outlet breakthrough curves are drawn next to the
// output file, along with axial profiles at the recorded time step
// indices listed in PlotSteps.
//
// addInit, addRun, and addCleanup are manipulators appended to the
// model's initialization, run, and cleanup pipelines.
func Run(CobraCommand *cobra.Command, LogFile, OutputFile string, OutputVariables map[string]string,
	ModelFile string, Overrides SolverOverrides, Plots bool, PlotSteps []int,
	addInit, addRun, addCleanup []cats.DomainManipulator) error {

	startTime := time.Now()

	// Start a function to receive and print log messages.
	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("cats: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	cLog := make(chan *cats.SimulationStatus)
	cLogTick := time.Tick(2 * time.Second)
	msgLog := make(chan string)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		for msg := range cLog {
			select {
			case <-cLogTick:
				log.Println(msg)
			default:
				runtime.Gosched()
			}
		}
		wg.Done()
	}()
	go func() {
		for msg := range msgLog {
			log.Println(msg)
		}
		wg.Done()
	}()

	defer func() { // Wait for the logging to finish.
		close(cLog)
		close(msgLog)
		wg.Wait()
		logfile.Close()
	}()

	log.Println("Reading model definition...")
	m, err := ReadModelFile(ModelFile, Overrides)
	if err != nil {
		return err
	}

	if len(OutputVariables) == 0 {
		OutputVariables = make(map[string]string)
		for _, name := range m.VarNames() {
			OutputVariables[name] = name
		}
	}
	o, err := cats.NewOutputter(OutputFile, OutputVariables, nil)
	if err != nil {
		return err
	}

	m.InitFuncs = append([]cats.DomainManipulator{
		o.CheckOutputVars(),
		cats.ApplyInitialConditions(),
		cats.InitializeAutoScaling(),
		cats.InitializeSimulator(msgLog),
		cats.FinalizeAutoScaling(),
		cats.RecordState(),
	}, addInit...)
	m.RunFuncs = append([]cats.DomainManipulator{
		cats.Calculations(cats.StepStart()),
		cats.SolveTimestep(msgLog),
		cats.Calculations(cats.ClipNegatives()),
		cats.RecordState(),
		cats.Log(cLog),
	}, addRun...)
	m.CleanupFuncs = append([]cats.DomainManipulator{
		o.Output(),
	}, addCleanup...)

	log.Println("Initializing model...")
	if err = m.Init(); err != nil {
		return fmt.Errorf("cats: problem initializing model: %v", err)
	}
	log.Println(m.String())

	if err = m.Run(); err != nil {
		return fmt.Errorf("cats: problem running simulation: %v", err)
	}

	if err = m.Cleanup(); err != nil {
		return fmt.Errorf("cats: problem shutting down model: %v", err)
	}

	if Plots {
		if err := writeSimPlots(OutputFile, m, PlotSteps); err != nil {
			return err
		}
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f minutes", elapsedTime.Minutes())

	return nil
}

// writeSimPlots draws the outlet history of every gas species and, when
// recorded step indices are given, axial profiles at those steps. The
// plot files are named after the output file.
func writeSimPlots(outputFile string, m *cats.Monolith, plotSteps []int) error {
	base := strings.TrimSuffix(outputFile, filepath.Ext(outputFile))
	cells := m.Cells()
	outlet := cells[len(cells)-1].Z
	for _, name := range m.GasSpeciesNames() {
		if err := cats.PlotAtLocations(plotName(base, name, "outlet"), m, name, outlet); err != nil {
			return err
		}
	}
	if len(plotSteps) == 0 {
		return nil
	}
	times := m.Times()
	ts := make([]float64, 0, len(plotSteps))
	for _, i := range plotSteps {
		if i < 0 || i >= len(times) {
			return fmt.Errorf("cats: plot step %d is outside the %d recorded steps", i, len(times))
		}
		ts = append(ts, times[i])
	}
	for _, name := range m.GasSpeciesNames() {
		if err := cats.PlotAtTimes(plotName(base, name, "profile"), m, name, ts...); err != nil {
			return err
		}
	}
	return nil
}

func plotName(base, species, kind string) string {
	return fmt.Sprintf("%s_%s_%s.png", base, species, kind)
}
