// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/antgroup/coedit/pkg/version"
	"github.com/sirupsen/logrus"
)

type App struct {
	Globals
	HTTPD HTTPD `cmd:"httpd" help:"start coedit-serve httpd server"`
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("coedit-serve"),
		kong.Description("Coedit - A collaborative note server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	if app.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if err := ctx.Run(&app.Globals); err != nil {
		os.Exit(1)
	}
}
