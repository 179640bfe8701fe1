// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package notedb is the in-memory content-addressed history of a note: a
// linear commit chain over single-file trees and zstd-compressed blobs.
//
// The store only grows. Every hash ever committed stays resolvable because
// the merge protocol looks up arbitrary historical base contents. Objects
// are immutable once inserted; a put at an existing key is a no-op.
//
// A DB is not internally synchronized: the owning room serializes all
// mutation. The decode cache is shared between rooms and safe for
// concurrent use.
package notedb

import (
	"time"

	"github.com/antgroup/coedit/modules/object"
	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type kind int8

const (
	kindBlob kind = iota
	kindTree
	kindCommit
)

type entry struct {
	kind kind
	data []byte // blobs are zstd compressed, trees and commits are raw JSON
}

type DB struct {
	objects map[plumbing.Hash]entry
	head    plumbing.Hash
	hasHead bool
	cache   *Cache
}

// NewDB returns an empty history. cache may be nil; it is shared between
// histories since keys are content addressed.
func NewDB(cache *Cache) *DB {
	return &DB{
		objects: make(map[plumbing.Hash]entry),
		cache:   cache,
	}
}

func (d *DB) put(oid plumbing.Hash, e entry) {
	if _, ok := d.objects[oid]; ok {
		return
	}
	d.objects[oid] = e
}

// Commit stores content as a new commit on top of HEAD and advances HEAD.
func (d *DB) Commit(content, message string) (plumbing.Hash, error) {
	blob := &object.Blob{Content: content}
	blobOID := blob.Hash()
	d.put(blobOID, entry{kind: kindBlob, data: zstdEncoder.EncodeAll(blob.Encode(), nil)})

	tree := &object.Tree{Filename: object.Filename, Blob: blobOID}
	treeData, err := tree.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	treeOID := plumbing.HashBytes(treeData)
	d.put(treeOID, entry{kind: kindTree, data: treeData})

	commit := &object.Commit{
		Tree:      treeOID,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
	if d.hasHead {
		parent := d.head
		commit.Parent = &parent
	}
	commitData, err := commit.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commitOID := plumbing.HashBytes(commitData)
	d.put(commitOID, entry{kind: kindCommit, data: commitData})
	d.head = commitOID
	d.hasHead = true
	return commitOID, nil
}

// Head returns the current authoritative commit hash, if any.
func (d *DB) Head() (plumbing.Hash, bool) {
	return d.head, d.hasHead
}

func (d *DB) commitAt(oid plumbing.Hash) (*object.Commit, error) {
	e, ok := d.objects[oid]
	if !ok || e.kind != kindCommit {
		return nil, plumbing.NoSuchObject(oid)
	}
	return object.DecodeCommit(e.data)
}

func (d *DB) treeAt(oid plumbing.Hash) (*object.Tree, error) {
	e, ok := d.objects[oid]
	if !ok || e.kind != kindTree {
		return nil, plumbing.NoSuchObject(oid)
	}
	return object.DecodeTree(e.data)
}

func (d *DB) blobAt(oid plumbing.Hash) (string, error) {
	if d.cache != nil {
		if content, ok := d.cache.Get(oid); ok {
			return content, nil
		}
	}
	e, ok := d.objects[oid]
	if !ok || e.kind != kindBlob {
		return "", plumbing.NoSuchObject(oid)
	}
	raw, err := zstdDecoder.DecodeAll(e.data, nil)
	if err != nil {
		return "", err
	}
	content := string(raw)
	if d.cache != nil {
		d.cache.Set(oid, content)
	}
	return content, nil
}

// ContentAt resolves commit → tree → blob and returns the note content at
// the given commit. Any missing link reports NoSuchObject.
func (d *DB) ContentAt(oid plumbing.Hash) (string, error) {
	commit, err := d.commitAt(oid)
	if err != nil {
		return "", err
	}
	tree, err := d.treeAt(commit.Tree)
	if err != nil {
		return "", err
	}
	return d.blobAt(tree.Blob)
}

// Walk visits the commit chain from HEAD to the root, newest first.
func (d *DB) Walk(fn func(oid plumbing.Hash, c *object.Commit) error) error {
	if !d.hasHead {
		return nil
	}
	oid := d.head
	for {
		c, err := d.commitAt(oid)
		if err != nil {
			return err
		}
		if err := fn(oid, c); err != nil {
			return err
		}
		if c.Parent == nil {
			return nil
		}
		oid = *c.Parent
	}
}

// Len reports the number of stored objects.
func (d *DB) Len() int {
	return len(d.objects)
}
