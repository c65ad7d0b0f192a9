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
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const lightOffData = `Elapsed Time (min)	NH3 (300,3000)	TC in (K)	TC out (K)
0	0	523.15	523.15
5	0	523.15	523.15
10	15	523.15	523.15
15	60	523.15	523.15
20	120	523.15	523.15
25	180	523.15	523.15
30	200	523.15	523.15
35	40	523.15	523.15
40	5	523.15	523.15
`

func TestFitCmd(t *testing.T) {
	dir, err := ioutil.TempDir("", "catsutilfit")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	dataFile := filepath.Join(dir, "lightoff.dat")
	if err := ioutil.WriteFile(dataFile, []byte(lightOffData), 0644); err != nil {
		t.Fatal(err)
	}
	report := filepath.Join(dir, "report.txt")

	Cfg.Set("config", "")
	Cfg.Set("model", "testdata/ammonia.toml")
	Cfg.Set("data", dataFile)
	Cfg.Set("out", report)
	Cfg.Set("logfile", "")
	Cfg.Set("plots", false)
	Cfg.Set("method", "")
	Cfg.Set("nodes", 3)
	Cfg.Set("colpoints", 0)
	Cfg.Set("restarts", 0)
	Cfg.Set("maxpoints", 6)
	Cfg.Set("maxevals", 8)
	Cfg.Set("boundfactor", 0.2)
	Cfg.Set("fitseries", map[string]string{"NH3": "NH3 (300,3000)"})
	Cfg.Set("tempcols", map[string]string{"TC in (K)": "0", "TC out (K)": "5"})
	Cfg.Set("fixed", []string{})
	Root.SetArgs([]string{"fit"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	b, err := ioutil.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	if !strings.Contains(got, "objective:") {
		t.Errorf("report is missing the objective line:\n%s", got)
	}
	if !strings.Contains(got, "r1") {
		t.Errorf("report is missing the r1 parameters:\n%s", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "report.log")); err != nil {
		t.Errorf("log file was not written: %v", err)
	}
}

func TestFitCmdNoSeries(t *testing.T) {
	dir, err := ioutil.TempDir("", "catsutilfit")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	dataFile := filepath.Join(dir, "lightoff.dat")
	if err := ioutil.WriteFile(dataFile, []byte(lightOffData), 0644); err != nil {
		t.Fatal(err)
	}

	Cfg.Set("config", "")
	Cfg.Set("model", "testdata/ammonia.toml")
	Cfg.Set("data", dataFile)
	Cfg.Set("out", filepath.Join(dir, "report.txt"))
	Cfg.Set("logfile", "")
	Cfg.Set("fitseries", map[string]string{})
	Root.SetArgs([]string{"fit"})
	err = Root.Execute()
	if err == nil {
		t.Fatal("expected an error when no fit series are configured")
	}
	if !strings.Contains(err.Error(), "no breakthrough series") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFitCmdMissingData(t *testing.T) {
	dir, err := ioutil.TempDir("", "catsutilfit")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	Cfg.Set("config", "")
	Cfg.Set("out", filepath.Join(dir, "report.txt"))
	Cfg.Set("data", filepath.Join(dir, "nonexistent.dat"))
	Root.SetArgs([]string{"fit"})
	err = Root.Execute()
	if err == nil {
		t.Fatal("expected an error for a missing data file")
	}
	if !strings.Contains(err.Error(), "data file doesn't exist") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTemperatureStations(t *testing.T) {
	cols, positions, err := temperatureStations(map[string]string{
		"TC out (K)": "5",
		"TC in (K)":  "0",
		"TC mid (K)": "2.5",
	})
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"TC in (K)", "TC mid (K)", "TC out (K)"}
	wantZ := []float64{0, 2.5, 5}
	for i := range wantCols {
		if cols[i] != wantCols[i] || positions[i] != wantZ[i] {
			t.Errorf("station %d: got %s at %g, want %s at %g",
				i, cols[i], positions[i], wantCols[i], wantZ[i])
		}
	}

	if _, _, err := temperatureStations(map[string]string{"TC in (K)": "inlet"}); err == nil {
		t.Error("expected an error for a non-numeric position")
	}
}
