// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package client implements the editor side of the sync protocol: a
// three-buffer state machine that keeps local optimistic edits alive while
// remote updates stream in.
//
// The buffers are synchronized (the content at the last server hash),
// in-flight (operations sent but not yet acknowledged) and pending
// (operations authored on top of the in-flight prediction). All three
// settle back into synchronized as acks and updates arrive, at which point
// every peer renders the same text.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/antgroup/coedit/modules/chardiff"
	"github.com/antgroup/coedit/modules/ot"
	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/sirupsen/logrus"
)

// DebounceDelay is the quiet time after the last keystroke before local
// edits are diffed and shipped.
const DebounceDelay = 500 * time.Millisecond

// Transport ships a sync request to the server.
type Transport interface {
	SendSync(baseHash plumbing.Hash, operations []ot.Op) error
}

// Options configures a Client.
type Options struct {
	NoteID    string
	Transport Transport
	// Render is called whenever the visible text changed under the user,
	// with the new text and the best-effort cursor offset. May be nil.
	Render func(text string, cursor int)
	// Debounce overrides DebounceDelay, mainly for tests.
	Debounce time.Duration
}

type Client struct {
	mu        sync.Mutex
	noteID    string
	transport Transport
	render    func(string, int)
	delay     time.Duration

	latestHash   plumbing.Hash
	synchronized string
	inFlight     []ot.Op
	pending      []ot.Op

	editorText string
	cursor     int
	debounce   *time.Timer
}

func New(opts *Options) *Client {
	delay := opts.Debounce
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &Client{
		noteID:    opts.NoteID,
		transport: opts.Transport,
		render:    opts.Render,
		delay:     delay,
	}
}

// Reset installs a fresh server snapshot and discards all local state.
// Used on connect, reconnect and conflict recovery.
func (c *Client) Reset(latestHash plumbing.Hash, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounce()
	c.latestHash = latestHash
	c.synchronized = content
	c.inFlight = nil
	c.pending = nil
	c.editorText = content
	c.cursor = 0
	c.doRender()
}

// SetText records the current editor text and (re)arms the debounce timer;
// the diff is computed after the user goes quiet.
func (c *Client) SetText(text string, cursor int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editorText = text
	c.cursor = cursor
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.delay, c.Flush)
}

// Flush diffs the editor text against the predicted state and either sends
// the operations or queues them behind the in-flight request.
func (c *Client) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounce()

	predicted, err := c.predictedLocked()
	if err != nil {
		logrus.Errorf("client %s: OT failed predicting local state: %v", c.noteID, err)
		return
	}
	entries, err := chardiff.Diff(context.Background(), predicted, c.editorText)
	if err != nil || len(entries) == 0 {
		return
	}
	ops := ot.Coalesce(ot.FromDiff(entries))
	if c.inFlight != nil {
		c.pending = append(c.pending, ops...)
		return
	}
	c.inFlight = ops
	if err := c.transport.SendSync(c.latestHash, ops); err != nil {
		logrus.Errorf("client %s: send sync: %v", c.noteID, err)
	}
}

// HandleAck promotes the in-flight operations into synchronized content
// and drains the pending buffer into a fresh sync request.
func (c *Client) HandleAck(newHash plumbing.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	synchronized, err := ot.Apply(c.synchronized, c.inFlight)
	if err != nil {
		return err
	}
	c.synchronized = synchronized
	c.latestHash = newHash
	c.inFlight = nil
	if len(c.pending) == 0 {
		return nil
	}
	c.inFlight = c.pending
	c.pending = nil
	return c.transport.SendSync(c.latestHash, c.inFlight)
}

// HandleUpdate integrates a remote commit: synchronized content moves
// forward, local buffers are rebased over it, and the editor re-renders.
func (c *Client) HandleUpdate(latestHash plumbing.Hash, operations []ot.Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	synchronized, err := ot.Apply(c.synchronized, operations)
	if err != nil {
		return err
	}
	c.synchronized = synchronized
	if c.inFlight != nil {
		c.inFlight = ot.Transform(c.inFlight, operations)
	}
	if c.pending != nil {
		c.pending = ot.Transform(c.pending, operations)
	}
	c.latestHash = latestHash

	text, err := c.predictedLocked()
	if err != nil {
		return err
	}
	c.editorText = text
	c.cursor = ot.TransformIndex(operations, c.cursor)
	c.doRender()
	return nil
}

// HandleConflict discards all local state. The caller refetches the
// initial content and calls Reset.
func (c *Client) HandleConflict(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logrus.Errorf("client %s: conflict: %s", c.noteID, message)
	c.stopDebounce()
	c.inFlight = nil
	c.pending = nil
}

// Text returns the rendered editor text: synchronized content with the
// in-flight and pending operations replayed on top.
func (c *Client) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, err := c.predictedLocked()
	if err != nil {
		return c.editorText
	}
	return text
}

// LatestHash returns the last server hash this client synchronized to.
func (c *Client) LatestHash() plumbing.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestHash
}

// Synchronized returns the content the client believes the server holds at
// LatestHash.
func (c *Client) Synchronized() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synchronized
}

// Idle reports whether no local edits are waiting on the wire.
func (c *Client) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight == nil && len(c.pending) == 0
}

func (c *Client) predictedLocked() (string, error) {
	text, err := ot.Apply(c.synchronized, c.inFlight)
	if err != nil {
		return "", err
	}
	return ot.Apply(text, c.pending)
}

func (c *Client) stopDebounce() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Client) doRender() {
	if c.render != nil {
		c.render(c.editorText, c.cursor)
	}
}
