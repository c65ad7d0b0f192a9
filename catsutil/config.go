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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/coelectrolyzer/cats"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// GetStringMapString returns the configuration value for varName as a
// map, decoding it from JSON if it was given as a string.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output location (for example: --out output.csv)`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("cats: the out directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkDataFile makes sure that the data file is specified and exists,
// and expands any environment variables.
func checkDataFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify a data file (for example: --data lightoff.dat)`)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("cats: the data file doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// ReadModelFile builds the monolith model defined in the TOML file at
// path. Nonzero overrides replace the corresponding [solver] settings
// from the file before the model is built.
func ReadModelFile(path string, o SolverOverrides) (*cats.Monolith, error) {
	cfg, err := readModelConfig(path)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	return cfg.Build()
}

// SolverOverrides holds command-line overrides for the [solver] table
// of a model definition. Zero values keep the file's settings.
type SolverOverrides struct {
	Method      string
	TimeSteps   int
	Nodes       int
	ColPoints   int
	MaxRestarts int
}

func (o SolverOverrides) apply(cfg *cats.ModelConfig) {
	if o.Method != "" {
		cfg.Solver.Method = o.Method
	}
	if o.TimeSteps > 0 {
		cfg.Solver.TimeSteps = o.TimeSteps
	}
	if o.Nodes > 0 {
		cfg.Solver.Nodes = o.Nodes
	}
	if o.ColPoints > 0 {
		cfg.Solver.ColPoints = o.ColPoints
	}
	if o.MaxRestarts > 0 {
		cfg.Solver.MaxRestarts = o.MaxRestarts
	}
}

func readModelConfig(path string) (*cats.ModelConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cats: problem opening model definition: %v", err)
	}
	defer f.Close()
	var cfg cats.ModelConfig
	if _, err := toml.DecodeReader(f, &cfg); err != nil {
		return nil, fmt.Errorf("cats: decoding model definition %s: %v", path, err)
	}
	return &cfg, nil
}
