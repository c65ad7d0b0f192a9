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

// Package catsutil holds utility functions for the CATS command-line
// interface: loading reactor model definitions from TOML files and
// orchestrating simulation, fitting, and data-processing runs.
package catsutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/coelectrolyzer/cats"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds the global configuration data.
var Cfg *viper.Viper

func init() {
	// Options are the configuration options available to CATS.
	options := []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "model",
			usage: `
              model is the path to the TOML file defining the monolith
              reactor to be simulated or fitted.`,
			defaultVal: "${GOPATH}/src/github.com/coelectrolyzer/cats/catsutil/testdata/ammonia.toml",
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags()},
		},
		{
			name: "data",
			usage: `
              data is the path to a tab-delimited transient data file: the
              light-off experiment to fit against (fit) or the instrument
              log to process (etl).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fitCmd.Flags(), etlCmd.Flags()},
		},
		{
			name: "out",
			usage: `
              out is the path where results will be written: the CSV output
              file (sim), the fit report (fit), the processed data file
              (etl), or the output directory (cooptima).`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags(),
				etlCmd.Flags(), cooptimaCmd.Flags()},
		},
		{
			name: "logfile",
			usage: `
              logfile is the path where the log will be written. The
              default is the same as the out path but with a '.log'
              extension.`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags(),
				etlCmd.Flags(), cooptimaCmd.Flags()},
		},
		{
			name: "plots",
			usage: `
              plots specifies whether plot files should be drawn next to
              the output files.`,
			shorthand:  "p",
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags(), cooptimaCmd.Flags()},
		},
		{
			name: "method",
			usage: `
              method overrides the axial discretization given in the model
              file: 'fd' for finite differences or 'ocfe' for orthogonal
              collocation on finite elements.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags()},
		},
		{
			name: "nodes",
			usage: `
              nodes overrides the number of axial mesh nodes ('fd') or
              finite elements ('ocfe') given in the model file.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags()},
		},
		{
			name: "colpoints",
			usage: `
              colpoints overrides the number of interior collocation
              points per element given in the model file. It is ignored
              when the method is 'fd'.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags()},
		},
		{
			name: "timesteps",
			usage: `
              timesteps overrides the number of time steps taken across
              the temporal domain given in the model file.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{simCmd.Flags()},
		},
		{
			name: "restarts",
			usage: `
              restarts overrides the cap on substepping restarts the
              solver may attempt per time step.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{simCmd.Flags(), fitCmd.Flags()},
		},
		{
			name: "outputvars",
			usage: `
              outputvars specifies the simulation results to be written to
              the output file, in the form '{"name":"expression"}'. If
              empty, every state variable is written as-is.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{simCmd.Flags()},
		},
		{
			name: "plotsteps",
			usage: `
              plotsteps lists recorded time step indices at which axial
              profile plots are drawn.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{simCmd.Flags()},
		},
		{
			name: "fitseries",
			usage: `
              fitseries maps gas species names to the data columns holding
              their measured outlet concentrations [ppm], in the form
              '{"species":"column"}'.`,
			defaultVal: map[string]string{"NH3": "NH3 (300,3000)"},
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "tempcols",
			usage: `
              tempcols maps thermocouple data columns to their axial
              positions [cm], in the form '{"column":"position"}'. If
              empty, the temperature model from the model file is used.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "fixed",
			usage: `
              fixed lists reactions whose parameters are held at their
              model-file values during fitting.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "boundfactor",
			usage: `
              boundfactor bounds every free parameter within the given
              fraction of its starting value (for example 0.2 allows ±20%).
              Zero keeps the default bounds.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "maxevals",
			usage: `
              maxevals caps the number of objective evaluations during
              fitting.`,
			defaultVal: 500,
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "maxpoints",
			usage: `
              maxpoints thins the measured sample times to at most the
              given number of solver time points. Zero keeps every sample.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{fitCmd.Flags()},
		},
		{
			name: "dir",
			usage: `
              dir is the directory holding the Co-Optima campaign logs to
              process.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cooptimaCmd.Flags()},
		},
		{
			name: "registry",
			usage: `
              registry is the path to a TOML fuel-blend registry. If empty,
              the built-in registry is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cooptimaCmd.Flags()},
		},
		{
			name: "rowcompress",
			usage: `
              rowcompress averages every given number of data rows into
              one. Values below 2 keep every row.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{etlCmd.Flags(), cooptimaCmd.Flags()},
		},
		{
			name: "retain",
			usage: `
              retain lists the data columns to keep in the processed file.
              The time column is always kept. If empty, all columns are
              kept.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{etlCmd.Flags()},
		},
		{
			name: "ops",
			usage: `
              ops lists column math operations to apply, each in the form
              'name=expression' where the expression may reference columns
              in brackets (for example 'NOx=[NO]+[NO2]').`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{etlCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CATS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(simCmd)
	Root.AddCommand(fitCmd)
	Root.AddCommand(etlCmd)
	Root.AddCommand(cooptimaCmd)
}

// solverOverrides collects the command-line discretization and solver
// settings. Unset flags leave the model file's settings in effect.
func solverOverrides() SolverOverrides {
	return SolverOverrides{
		Method:      Cfg.GetString("method"),
		TimeSteps:   Cfg.GetInt("timesteps"),
		Nodes:       Cfg.GetInt("nodes"),
		ColPoints:   Cfg.GetInt("colpoints"),
		MaxRestarts: Cfg.GetInt("restarts"),
	}
}

// SetConfig reads the given configuration file into Cfg. It does
// nothing if path is empty.
func SetConfig(path string) error {
	if path == "" {
		return nil
	}
	Cfg.SetConfigFile(path)
	if err := Cfg.ReadInConfig(); err != nil {
		return fmt.Errorf("cats: problem reading configuration file: %v", err)
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cats",
	Short: "A monolith catalytic converter model.",
	Long: `CATS is a transient model of gas transport and surface reaction in
monolith catalytic converters. It simulates breakthrough behavior, fits
kinetic parameters to experimental light-off data, and processes the raw
instrument logs such experiments produce.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CATS_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return SetConfig(Cfg.GetString("config"))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of CATS.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CATS v%s\n", cats.Version)
	},
	DisableAutoGenTag: true,
}

// simCmd is a command that runs a reactor simulation.
var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a reactor simulation.",
	Long: `sim builds the monolith reactor defined in the model file, marches it
across the temporal domain, and writes the requested output variables to
a CSV file. If plots are enabled, outlet breakthrough curves and axial
profiles are drawn next to the output file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("out"))
		if err != nil {
			return err
		}
		plotSteps, err := cast.ToIntSliceE(Cfg.Get("plotsteps"))
		if err != nil {
			return fmt.Errorf("cats: reading sim 'plotsteps': %v", err)
		}
		return Run(
			cmd,
			checkLogFile(Cfg.GetString("logfile"), outputFile),
			outputFile,
			GetStringMapString("outputvars", Cfg),
			os.ExpandEnv(Cfg.GetString("model")),
			solverOverrides(),
			Cfg.GetBool("plots"),
			plotSteps,
			nil, nil, nil)
	},
	DisableAutoGenTag: true,
}

// fitCmd is a command that fits kinetic parameters to light-off data.
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit kinetic parameters to light-off data.",
	Long: `fit adjusts the rate parameters of the reactions defined in the model
file until the simulated breakthrough curves match the measured series
named by the fitseries configuration, then writes a report comparing the
fitted model against the data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("out"))
		if err != nil {
			return err
		}
		dataFile, err := checkDataFile(Cfg.GetString("data"))
		if err != nil {
			return err
		}
		return RunFit(
			cmd,
			checkLogFile(Cfg.GetString("logfile"), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("model")),
			dataFile,
			GetStringMapString("fitseries", Cfg),
			GetStringMapString("tempcols", Cfg),
			Cfg.GetStringSlice("fixed"),
			solverOverrides(),
			Cfg.GetInt("maxpoints"),
			Cfg.GetInt("maxevals"),
			Cfg.GetFloat64("boundfactor"),
			Cfg.GetBool("plots"))
	},
	DisableAutoGenTag: true,
}

// etlCmd is a command that processes a single transient instrument log.
var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Process a transient instrument log.",
	Long: `etl reads a raw transient instrument log, merges analyzer channels
that record the same quantity on different ranges, applies the given
column math operations, averages rows down, and writes the processed
table to the output file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("out"))
		if err != nil {
			return err
		}
		dataFile, err := checkDataFile(Cfg.GetString("data"))
		if err != nil {
			return err
		}
		return RunETL(
			cmd,
			checkLogFile(Cfg.GetString("logfile"), outputFile),
			dataFile,
			outputFile,
			Cfg.GetStringSlice("retain"),
			Cfg.GetStringSlice("ops"),
			Cfg.GetInt("rowcompress"))
	},
	DisableAutoGenTag: true,
}

// cooptimaCmd is a command that processes a Co-Optima campaign directory.
var cooptimaCmd = &cobra.Command{
	Use:   "cooptima",
	Short: "Process a Co-Optima campaign directory.",
	Long: `cooptima processes every instrument log in a Co-Optima fuel-blend
campaign directory: run logs are paired with their bypass runs, repeat
runs of the same blend are averaged, and the processed tables are
written under the output directory together with conversion-temperature
summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("out"))
		if err != nil {
			return err
		}
		return RunCooptima(
			cmd,
			checkLogFile(Cfg.GetString("logfile"), outputFile),
			os.ExpandEnv(Cfg.GetString("dir")),
			outputFile,
			os.ExpandEnv(Cfg.GetString("registry")),
			Cfg.GetInt("rowcompress"),
			Cfg.GetBool("plots"))
	},
	DisableAutoGenTag: true,
}
