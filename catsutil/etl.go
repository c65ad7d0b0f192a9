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
	"strings"
	"time"

	"github.com/coelectrolyzer/cats/transient"
	"github.com/coelectrolyzer/cats/transient/cooptima"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RunETL processes a single transient instrument log: analyzer channels
// recording the same quantity on different ranges are merged, the given
// column math operations are applied, rows are averaged down, and the
// processed table is written to OutFile.
//
// Each entry of Ops has the form "name=expression", where the
// expression may reference existing columns in brackets.
//
// Retain lists the columns kept in the processed file; the time column
// is always kept. An empty Retain keeps every column.
func RunETL(CobraCommand *cobra.Command, LogFile, DataFile, OutFile string,
	Retain, Ops []string, RowCompress int) error {

	startTime := time.Now()

	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("cats: problem creating log file: %v", err)
	}
	defer logfile.Close()
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)

	log.Println("Reading instrument log...")
	td, err := transient.ReadFile(DataFile)
	if err != nil {
		return err
	}
	td.CompressColumns()
	for _, op := range Ops {
		name, expr, err := splitOp(op)
		if err != nil {
			return err
		}
		if err := td.MathOperation(name, expr); err != nil {
			return err
		}
	}
	if len(Retain) > 0 {
		td.RetainOnlyColumns(Retain...)
	}
	if RowCompress > 1 {
		td.CompressRows(RowCompress)
	}
	if err := td.PrintAllToFile(OutFile); err != nil {
		return err
	}
	log.Printf("Wrote %d rows and %d columns to %s", td.Rows(), len(td.Columns), OutFile)

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f minutes", elapsedTime.Minutes())

	return nil
}

// splitOp splits a column math operation given as "name=expression".
func splitOp(op string) (name, expr string, err error) {
	i := strings.Index(op, "=")
	if i < 0 {
		return "", "", fmt.Errorf(`cats: math operation %q is not in the form "name=expression"`, op)
	}
	name = strings.TrimSpace(op[:i])
	expr = strings.TrimSpace(op[i+1:])
	if name == "" || expr == "" {
		return "", "", fmt.Errorf(`cats: math operation %q is not in the form "name=expression"`, op)
	}
	return name, expr, nil
}

// RunCooptima processes every instrument log in a Co-Optima fuel-blend
// campaign directory, writing the processed tables and
// conversion-temperature summaries under OutDir.
//
// RegistryFile is the path to a TOML fuel-blend registry; if it is
// empty the built-in registry is used.
func RunCooptima(CobraCommand *cobra.Command, LogFile, Dir, OutDir, RegistryFile string,
	RowCompress int, Plots bool) error {

	startTime := time.Now()

	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("cats: problem creating log file: %v", err)
	}
	defer logfile.Close()
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	logger := logrus.New()
	logger.Out = mw

	registry := cooptima.DefaultRegistry()
	if RegistryFile != "" {
		registry, err = cooptima.LoadRegistryFile(RegistryFile)
		if err != nil {
			return err
		}
	}

	p := cooptima.NewProcessor(registry)
	p.Log = logger
	if RowCompress > 0 {
		p.RowCompression = RowCompress
	}
	p.Plots = Plots

	if err := p.ProcessDirectory(Dir, OutDir); err != nil {
		return err
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f minutes", elapsedTime.Minutes())

	return nil
}
