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

// Package cooptima processes the transient light-off logs collected in
// the Co-Optima fuel-blend campaigns. Each catalyst run is paired with
// the bypass run that established its baseline inlet concentrations,
// analyzer channels are merged and calibrated, species conversions are
// computed against the bypass, and per-run and blend-averaged tables
// are written for later kinetic analysis.
package cooptima

import (
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coelectrolyzer/cats/transient"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// Column names shared by all campaign logs. Analyzer channels appear
// under their merged names, such as "CO (500,10000)", after the
// full-scale ranges are compressed.
const (
	timeCol  = "Elapsed Time (min)"
	thcCol   = "FID THC (ppm C1)"
	coCol    = "CO (500,10000)"
	noCol    = "NO (350,3000)"
	no2Col   = "NO2 (150)"
	noxCol   = "NOx (ppm)"
	h2Col    = "H2 (ppm)"
	o2Col    = "O2%"
	tcInCol  = "TC top sample in (C)"
	tcMidCol = "TC top sample mid 2 (C)"
	tcOutCol = "TC top sample out (C)"
	pInCol   = "P tup in (bar)"
	pOutCol  = "P top out (bar)"

	thcConvCol = "THC Conversion %"
	coConvCol  = "CO Conversion %"
	noxConvCol = "NOx Conversion %"
	avgTempCol = "Avg Internal Temp (C)"
)

// bypassSuffix marks a column holding the per-frame bypass average of
// the same-named run column.
const bypassSuffix = "[bypass]"

// fullScaleTHC is the full-scale reading of the FID total-hydrocarbon
// analyzer in ppm C1; run and bypass THC series are rescaled so the
// bypass reads full scale.
const fullScaleTHC = 3000

// h2Calibration converts the bypass-normalized AI 2 mass-spectrometer
// channel to an H2 concentration in ppm.
const h2Calibration = 1670

// rampMarker is the file-name segment identifying the standard 5 C/min
// temperature ramp. Blend identifiers that precede it are a single
// segment; otherwise the identifier spans two segments.
const rampMarker = "5Cramp"

// defaultRetain lists the columns kept after analyzer channels are
// merged. Channels a campaign did not record are skipped.
var defaultRetain = []string{
	timeCol,
	"N2O (100,200,300)", noCol, no2Col, "H2O% (20)", "CO2% (20)",
	"Formaldehyde (70)", "Acetaldehyde (1000)", "Acetylene (1000)",
	"Ethylene (100,3000)", "Toluene (1000)", "Isobutylene (500)",
	"Propylene (200,1000)", "Isopentane (500)",
	"AI 2", "AI 2)", "AI 31", "AI 43", "AI 57", "AI 71", "AI 84", "AI 91",
	"AI (#3)", "AI (#4)",
	thcCol,
	tcInCol, tcMidCol, tcOutCol,
	pInCol, pOutCol,
	"NH3 (300,3000)", coCol, "Ethanol (1000,10000)", "CH4 (250,3000)",
}

// Processor pairs and processes the runs of a Co-Optima campaign
// directory.
type Processor struct {
	// Registry maps blend identifiers in file names to blend
	// descriptions and baseline O2 percentages.
	Registry *Registry

	// Log receives progress and warning messages.
	Log logrus.FieldLogger

	// Retain lists the columns kept after analyzer-channel merging.
	Retain []string

	// RowCompression is the number of consecutive rows averaged
	// together before processed tables are written.
	RowCompression int

	// Plots controls whether conversion light-off curves are drawn
	// next to the processed tables.
	Plots bool
}

// NewProcessor returns a Processor with the standard campaign settings.
func NewProcessor(registry *Registry) *Processor {
	return &Processor{
		Registry:       registry,
		Log:            logrus.StandardLogger(),
		Retain:         append([]string{}, defaultRetain...),
		RowCompression: 10,
		Plots:          true,
	}
}

// runFile identifies one catalyst run log discovered in a campaign
// directory.
type runFile struct {
	path  string // full path of the log
	base  string // file name without the extension
	date  string // recording date, the first file-name segment
	num   string // run number, the last file-name segment
	blend string // blend identifier from the file name
}

// parseRunName splits a log file name of the form
//
//	20190131-CPTMA-MalibuTWC-SGDI-30k-50pctToluene50pctNheptane-5Cramp-lambda0_999-1
//
// into its parts. The blend identifier is the sixth segment, joined
// with the seventh when the seventh is not the ramp marker. The date
// comes first and the run number last.
func parseRunName(base string) (*runFile, error) {
	parts := strings.Split(base, "-")
	if len(parts) < 7 {
		return nil, fmt.Errorf("cooptima: file name %q has %d segments, want at least 7", base, len(parts))
	}
	blend := parts[5]
	if parts[6] != rampMarker {
		blend += parts[6]
	}
	return &runFile{
		base:  base,
		date:  parts[0],
		num:   parts[len(parts)-1],
		blend: blend,
	}, nil
}

// isBypass reports whether the file name names a bypass log, marked by
// a "bp" segment before the run number.
func isBypass(base string) bool {
	parts := strings.Split(base, "-")
	return len(parts) >= 2 && parts[len(parts)-2] == "bp"
}

// bypassBase returns the name of the bypass log belonging to a run,
// formed by inserting the bypass marker before the run number.
func (r *runFile) bypassBase() string {
	i := strings.LastIndex(r.base, "-")
	return r.base[:i] + "-bp" + r.base[i:]
}

// outDir returns the directory that receives this run's outputs under
// root, named after the blend identifier, the recording date, and the
// run number.
func (r *runFile) outDir(root string) string {
	return filepath.Join(root, r.blend+"-output", r.date+"_run"+r.num)
}

// ProcessDirectory processes every catalyst run log found in dir and
// writes the results under outDir. Logs are recognized by the ".dat",
// ".txt" and ".xlsx" extensions; a file whose name carries the bypass
// marker is treated as the baseline for the same-named run. Runs of the
// same blend are averaged into a combined series written next to the
// per-run tables.
//
// A run without a matching bypass log is skipped with a warning. A run
// whose blend identifier is not in the registry is processed with an
// unknown O2 baseline and excluded from the blend averages.
func (p *Processor) ProcessDirectory(dir, outDir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cooptima: %v", err)
	}
	bypasses := make(map[string]string)
	var runs []*runFile
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(fi.Name()))
		if ext != ".dat" && ext != ".txt" && ext != ".xlsx" {
			continue
		}
		base := strings.TrimSuffix(fi.Name(), filepath.Ext(fi.Name()))
		if isBypass(base) {
			bypasses[base] = filepath.Join(dir, fi.Name())
			continue
		}
		r, err := parseRunName(base)
		if err != nil {
			p.Log.WithFields(logrus.Fields{"file": fi.Name()}).Warnf("cooptima: skipping unrecognized file: %v", err)
			continue
		}
		r.path = filepath.Join(dir, fi.Name())
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].base < runs[j].base })

	// Repeat runs of one blend are collected for averaging.
	groups := make(map[string][]*transient.TransientData)
	groupRuns := make(map[string]*runFile)
	var order []string

	for _, r := range runs {
		bypassPath, ok := bypasses[r.bypassBase()]
		if !ok {
			p.Log.WithFields(logrus.Fields{
				"run":    r.base,
				"bypass": r.bypassBase(),
			}).Warn("cooptima: no bypass log; skipping run")
			continue
		}
		blend := p.Registry.Find(r.blend)
		if blend == nil {
			p.Log.WithFields(logrus.Fields{
				"run":     r.base,
				"blend":   "unknown",
				"pattern": r.blend,
			}).Warn("cooptima: blend not in registry; processing with unknown O2 baseline")
		}
		p.Log.WithFields(logrus.Fields{"run": r.base}).Info("cooptima: processing run")

		td, err := p.processPair(r.path, bypassPath, blend)
		if err != nil {
			return err
		}
		if err := p.writeRun(td, r.outDir(outDir), r.base, blend != nil); err != nil {
			return err
		}
		if blend != nil {
			if _, ok := groups[r.blend]; !ok {
				order = append(order, r.blend)
				groupRuns[r.blend] = r
			}
			groups[r.blend] = append(groups[r.blend], td)
		}
	}

	for _, key := range order {
		avg, err := averageRuns(groups[key])
		if err != nil {
			return err
		}
		r := groupRuns[key]
		dir := filepath.Join(outDir, r.blend+"-output", r.date+"_avg")
		if err := p.writeRun(avg, dir, r.base+"-Avg", true); err != nil {
			return err
		}
	}
	return nil
}

// processPair reads one catalyst run and its bypass log and carries out
// the campaign processing steps: analyzer-channel merging, bypass
// baseline columns, mass-spec and FID calibration, the blend O2
// baseline, species conversions, and the internal temperature average.
// The returned table holds the full-resolution series; rows are
// compressed only when the table is written.
func (p *Processor) processPair(runPath, bypassPath string, blend *Blend) (*transient.TransientData, error) {
	run, err := transient.ReadFile(runPath)
	if err != nil {
		return nil, err
	}
	bypass, err := transient.ReadFile(bypassPath)
	if err != nil {
		return nil, err
	}

	for _, td := range []*transient.TransientData{bypass, run} {
		// The CO and ethanol analyzers log their widest range as a
		// percentage; rebuild the ppm channels so the ranges merge.
		if td.HasColumn("CO% (1)") {
			if err := td.MathOperation("CO (10000)", "[CO% (1)] * 10000"); err != nil {
				return nil, err
			}
			td.DeleteColumns("CO% (1)")
		}
		if td.HasColumn("Ethanol% (1)") {
			if err := td.MathOperation("Ethanol (10000)", "[Ethanol% (1)] * 10000"); err != nil {
				return nil, err
			}
			td.DeleteColumns("Ethanol% (1)")
		}
		td.CompressColumns()
		td.RetainOnlyColumns(p.Retain...)
		td.RemoveNegatives(td.Columns...)
	}

	// Broadcast the bypass average of every analyzer column over the
	// run's time frames as the baseline inlet value.
	nFrames := run.NumFrames()
	skip := map[string]bool{
		timeCol: true, tcInCol: true, tcMidCol: true, tcOutCol: true,
		pInCol: true, pOutCol: true,
	}
	for _, name := range append([]string{}, bypass.Columns...) {
		if skip[name] {
			continue
		}
		mean, err := bypass.Average(name)
		if err != nil {
			return nil, err
		}
		if err := run.AppendColumnByFrame(name+bypassSuffix, broadcast(mean, nFrames)); err != nil {
			return nil, err
		}
	}

	// Mass-spectrometer channels are recorded in arbitrary intensity
	// units; normalize them by the bypass intensity. AI 2 follows H2
	// and carries a ppm calibration.
	for _, name := range append([]string{}, run.Columns...) {
		if !strings.HasPrefix(name, "AI ") || strings.Contains(name, bypassSuffix) {
			continue
		}
		if name == "AI 2" || name == "AI 2)" {
			if err := run.MathOperation(name, ref(name)+" / "+ref(name+bypassSuffix)); err != nil {
				return nil, err
			}
			if err := run.MathOperation(h2Col, fmt.Sprintf("%s * %d", ref(name), h2Calibration)); err != nil {
				return nil, err
			}
			if err := run.AppendColumnByFrame(h2Col+bypassSuffix, broadcast(h2Calibration, nFrames)); err != nil {
				return nil, err
			}
			continue
		}
		min, err := run.Minimum(name)
		if err != nil {
			return nil, err
		}
		subtractConstant(run, name+bypassSuffix, min)
		subtractConstant(run, name, min)
		if err := run.MathOperation(name, ref(name)+" / "+ref(name+bypassSuffix)); err != nil {
			return nil, err
		}
	}

	// Rescale the FID total-hydrocarbon channel so the bypass reads
	// full scale.
	for _, name := range []string{thcCol, thcCol + bypassSuffix} {
		expr := fmt.Sprintf("%s / %s * %d", ref(name), ref(thcCol+bypassSuffix), fullScaleTHC)
		if err := run.MathOperation(name, expr); err != nil {
			return nil, err
		}
	}

	// The O2 feed is not logged; it comes from the blend registry.
	o2 := math.NaN()
	if blend != nil {
		o2 = blend.O2Pct
	}
	if err := run.AppendColumnByFrame(o2Col, broadcast(o2, nFrames)); err != nil {
		return nil, err
	}

	// Species conversions against the bypass baseline.
	if err := run.MathOperation(noxCol, ref(noCol)+" + "+ref(no2Col)); err != nil {
		return nil, err
	}
	if err := run.MathOperation(noxCol+bypassSuffix, ref(noCol+bypassSuffix)+" + "+ref(no2Col+bypassSuffix)); err != nil {
		return nil, err
	}
	conversions := []struct{ out, in string }{
		{thcConvCol, thcCol},
		{coConvCol, coCol},
		{noxConvCol, noxCol},
	}
	for _, c := range conversions {
		expr := fmt.Sprintf("(%s - %s) / %s * 100", ref(c.in+bypassSuffix), ref(c.in), ref(c.in+bypassSuffix))
		if err := run.MathOperation(c.out, expr); err != nil {
			return nil, err
		}
	}

	// The catalyst zones have equal lengths, so the internal
	// temperature is a simple average of the mid and outlet
	// thermocouples.
	if err := run.MathOperation(avgTempCol, "("+ref(tcOutCol)+" + "+ref(tcMidCol)+") / 2"); err != nil {
		return nil, err
	}
	return run, nil
}

// writeRun writes one processed run: the conversion plots and the
// approximate rate table at full resolution, the conversion-temperature
// summary when the blend is known, and the row-compressed processed
// table.
func (p *Processor) writeRun(td *transient.TransientData, dir, base string, summarize bool) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("cooptima: %v", err)
	}
	if p.Plots {
		plots := []struct{ col, name string }{
			{thcConvCol, "THC_Conv"},
			{coConvCol, "CO_Conv"},
			{noxConvCol, "NOx_Conv"},
		}
		for _, pl := range plots {
			if err := plotConversion(td, pl.col, filepath.Join(dir, base+"--"+pl.name+".png")); err != nil {
				return err
			}
		}
	}
	rm, err := td.CreateRateMap()
	if err != nil {
		return err
	}
	if err := rm.PrintAllToFile(filepath.Join(dir, "ApproximateRateData.dat")); err != nil {
		return err
	}
	if summarize {
		if err := writeConversionTemperatures(td, dir); err != nil {
			return err
		}
	}
	out := td.Copy()
	out.CompressRows(p.RowCompression)
	return out.PrintAllToFile(filepath.Join(dir, base+"-processed.dat"))
}

// averageRuns combines repeat runs of one blend into their mean,
// aligned on row index. When a repeat run is shorter than the first,
// its last row extends to the end, since all runs end on the same
// held temperature.
func averageRuns(runs []*transient.TransientData) (*transient.TransientData, error) {
	avg := runs[0].Copy()
	for _, name := range avg.Columns {
		col := avg.Data[name]
		for _, r := range runs[1:] {
			other, err := r.Column(name)
			if err != nil {
				return nil, err
			}
			if len(other) == 0 {
				return nil, fmt.Errorf("cooptima: %s: column %q has no rows", r.Name, name)
			}
			for j := range col {
				if j < len(other) {
					col[j] += other[j]
				} else {
					col[j] += other[len(other)-1]
				}
			}
		}
		for j := range col {
			col[j] /= float64(len(runs))
		}
	}
	return avg, nil
}

// TnRecord holds the inlet temperatures at which each tracked species
// reaches n percent conversion.
type TnRecord struct {
	Percent int     `csv:"T-n"`
	THC     float64 `csv:"THC Conversion %"`
	CO      float64 `csv:"CO Conversion %"`
	NOx     float64 `csv:"NOx Conversion %"`
}

// tnSpan is the half-width of the conversion band accepted around each
// T-n target percentage.
const tnSpan = 2

// tnMissing is recorded when no sample's conversion falls inside a T-n
// band.
const tnMissing = 100

// ConversionTemperatures summarizes the light-off behavior of one
// processed run: for n = 10 to 90 percent, the mean inlet temperature
// over the samples whose conversion lies within n +/- 2 percent, for
// each of the THC, CO, and NOx conversions.
func ConversionTemperatures(td *transient.TransientData) ([]TnRecord, error) {
	temps, err := td.Column(tcInCol)
	if err != nil {
		return nil, err
	}
	cols := []string{thcConvCol, coConvCol, noxConvCol}
	var records []TnRecord
	for n := 10; n <= 90; n += 10 {
		rec := TnRecord{Percent: n}
		out := []*float64{&rec.THC, &rec.CO, &rec.NOx}
		for k, name := range cols {
			conv, err := td.Column(name)
			if err != nil {
				return nil, err
			}
			sum, count := 0.0, 0
			for i, v := range conv {
				if v >= float64(n-tnSpan) && v <= float64(n+tnSpan) {
					sum += temps[i]
					count++
				}
			}
			if count == 0 {
				*out[k] = tnMissing
			} else {
				*out[k] = sum / float64(count)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeConversionTemperatures writes the T-n summary of a processed run
// to ConversionTemperatures.dat, and a CSV twin for spreadsheet import.
func writeConversionTemperatures(td *transient.TransientData, dir string) error {
	records, err := ConversionTemperatures(td)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "ConversionTemperatures.dat"))
	if err != nil {
		return fmt.Errorf("cooptima: %v", err)
	}
	defer f.Close()
	fmt.Fprintf(f, "T-n\t%s\t%s\t%s\n", thcConvCol, coConvCol, noxConvCol)
	for _, r := range records {
		fmt.Fprintf(f, "%d\t%g\t%g\t%g\n", r.Percent, r.THC, r.CO, r.NOx)
	}

	c, err := os.Create(filepath.Join(dir, "ConversionTemperatures.csv"))
	if err != nil {
		return fmt.Errorf("cooptima: %v", err)
	}
	defer c.Close()
	if err := gocsv.MarshalFile(&records, c); err != nil {
		return fmt.Errorf("cooptima: writing T-n table: %v", err)
	}
	return nil
}

// ref wraps a column name in the bracket syntax of math-operation
// expressions.
func ref(name string) string { return "[" + name + "]" }

// broadcast returns n copies of v, one per time frame.
func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// subtractConstant shifts every observation of the named column by -c.
func subtractConstant(td *transient.TransientData, name string, c float64) {
	col := td.Data[name]
	for i := range col {
		col[i] -= c
	}
}
