// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object models the content-addressed objects of a note history:
// blobs hold raw text, a tree maps exactly one filename to its blob, and a
// commit snapshots a tree with a parent link.
//
// Object identity is the SHA-1 of the canonical serialization. Blobs hash
// as their raw UTF-8 bytes; trees and commits hash as compact JSON with
// fields in declared order. The byte layout is an interop contract: peers
// resolve each other's hashes, so Encode must stay stable.
package object

import (
	"encoding/json"
	"fmt"

	"github.com/antgroup/coedit/modules/plumbing"
)

// Filename is the single tree entry name every note history uses.
const Filename = "note.txt"

// Blob is raw note content.
type Blob struct {
	Content string
}

func (b *Blob) Encode() []byte {
	return []byte(b.Content)
}

func (b *Blob) Hash() plumbing.Hash {
	return plumbing.HashBytes(b.Encode())
}

// Tree maps a filename to its blob. Exactly one entry.
type Tree struct {
	Filename string
	Blob     plumbing.Hash
}

func (t *Tree) Encode() ([]byte, error) {
	return json.Marshal(map[string]plumbing.Hash{t.Filename: t.Blob})
}

func (t *Tree) Hash() (plumbing.Hash, error) {
	b, err := t.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.HashBytes(b), nil
}

func DecodeTree(data []byte) (*Tree, error) {
	var m map[string]plumbing.Hash
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("object: tree must have exactly one entry, got %d", len(m))
	}
	t := &Tree{}
	for name, oid := range m {
		t.Filename = name
		t.Blob = oid
	}
	return t, nil
}

// Commit is a snapshot with a parent link. Field order pins the canonical
// JSON layout; do not reorder.
type Commit struct {
	Tree      plumbing.Hash  `json:"tree"`
	Parent    *plumbing.Hash `json:"parent"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"`
}

func (c *Commit) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func (c *Commit) Hash() (plumbing.Hash, error) {
	b, err := c.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.HashBytes(b), nil
}

func DecodeCommit(data []byte) (*Commit, error) {
	c := &Commit{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
