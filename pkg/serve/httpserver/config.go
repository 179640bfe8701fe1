// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/antgroup/coedit/pkg/serve"
	"github.com/antgroup/coedit/pkg/version"
)

const (
	DefaultReadTimeout  = 10 * time.Minute
	DefaultWriteTimeout = 10 * time.Minute
	DefaultIdleTimeout  = 5 * time.Minute
)

type ServerConfig struct {
	Listen        string         `toml:"listen"`
	IdleTimeout   serve.Duration `toml:"idle_timeout,omitempty"`
	ReadTimeout   serve.Duration `toml:"read_timeout,omitempty"`
	WriteTimeout  serve.Duration `toml:"write_timeout,omitempty"`
	BannerVersion string         `toml:"banner_version,omitempty"`
	Cache         *serve.Cache   `toml:"cache,omitempty"`
}

func NewServerConfig(file string, expandEnv bool) (*ServerConfig, error) {
	r, err := serve.NewExpandReader(file, expandEnv)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	sc := &ServerConfig{
		Listen: "127.0.0.1:3000",
		IdleTimeout: serve.Duration{
			Duration: DefaultIdleTimeout,
		},
		ReadTimeout: serve.Duration{
			Duration: DefaultReadTimeout,
		},
		WriteTimeout: serve.Duration{
			Duration: DefaultWriteTimeout,
		},
		BannerVersion: version.GetServerVersion(),
	}
	if _, err = toml.NewDecoder(r).Decode(sc); err != nil {
		return nil, err
	}
	if sc.Cache == nil {
		sc.Cache = &serve.Cache{
			NumCounters: 1000000,
			MaxCost:     64, // MiB of decoded note content
			BufferItems: 64,
		}
	}
	return sc, nil
}
