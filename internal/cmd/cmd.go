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

// Package cmd wraps the CATS commands for interactive use, framing each
// run with a welcome and completion message.
package cmd

import (
	"fmt"

	"github.com/coelectrolyzer/cats"
	"github.com/coelectrolyzer/cats/catsutil"
	"github.com/spf13/cobra"
)

const year = "2021"

// Root is the main command.
var Root = catsutil.Root

func init() {
	Root.PersistentPreRunE = func(*cobra.Command, []string) error {
		return Startup(catsutil.Cfg.GetString("config"))
	}
	Root.PersistentPostRun = func(*cobra.Command, []string) {
		completedMessage()
	}
}

// Startup prints the welcome banner and reads the configuration file,
// if one was given.
func Startup(configFile string) error {
	fmt.Println(`
	------------------------------------------------
	                    Welcome!
	  (C)atalytic (A)fter-(T)reatment (S)imulator
	                Version ` + cats.Version + `
	                Copyright ` + year + `
	               the CATS Authors
	------------------------------------------------`)
	return catsutil.SetConfig(configFile)
}

func completedMessage() {
	fmt.Println(`
	------------------------------------
	           CATS Completed!
	------------------------------------`)
}
