// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package notedb

import (
	"fmt"

	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/dgraph-io/ristretto/v2"
)

// Cache memoizes decoded blob contents across every room in the process.
// Keys are content addressed, so one room's entries are valid for all.
type Cache struct {
	c *ristretto.Cache[string, string]
}

func NewCache(numCounters, maxCost, bufferItems int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: numCounters,
		MaxCost:     maxCost << 20,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("unable initialize content cache, error: %w", err)
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(oid plumbing.Hash) (string, bool) {
	return c.c.Get(oid.String())
}

func (c *Cache) Set(oid plumbing.Hash, content string) {
	c.c.Set(oid.String(), content, int64(len(content))+1)
}

func (c *Cache) Close() {
	c.c.Close()
}
