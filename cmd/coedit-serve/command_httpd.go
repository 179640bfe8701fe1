// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"

	"github.com/antgroup/coedit/pkg/serve/httpserver"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type HTTPD struct {
	Config string `short:"c" name:"config" help:"Location of server config file" default:"~/config/coedit-serve-httpd.toml" type:"path"`
}

func (c *HTTPD) Run(globals *Globals) error {
	sc, err := httpserver.NewServerConfig(c.Config, globals.ExpandEnv)
	if err != nil {
		logrus.Errorf("coedit-serve httpd load server config error: %v", err)
		return err
	}
	srv, err := httpserver.NewServer(sc)
	if err != nil {
		logrus.Errorf("coedit-serve httpd new httpd server error: %v", err)
		return err
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("coedit-serve httpd listen server error: %v", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		return listenSignal(ctx, srv)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Infof("coedit-serve httpd exited")
	return nil
}
