// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux || freebsd || netbsd || openbsd || dragonfly

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// listenSignal drains the server on the usual termination signals. It
// returns without shutdown when the context dies first, which means the
// server already failed on its own.
func listenSignal(ctx context.Context, srv Shutdowner) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(quit)
	select {
	case sig := <-quit:
		logrus.Infof("coedit-serve receive signal: %v, exiting ...", sig)
		newCtx, cancelCtx := context.WithTimeout(context.Background(), time.Minute)
		defer cancelCtx()
		return srv.Shutdown(newCtx)
	case <-ctx.Done():
		return nil
	}
}
