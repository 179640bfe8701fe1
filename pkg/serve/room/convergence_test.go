// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/antgroup/coedit/modules/ot"
	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/antgroup/coedit/pkg/client"
	"github.com/antgroup/coedit/pkg/serve/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The harness wires real clients to a real room through in-memory queues
// and pumps them to quiescence, so full editing sessions run
// deterministically in-process.

type syncRequest struct {
	peer *peer
	base plumbing.Hash
	ops  []ot.Op
}

type harness struct {
	t     *testing.T
	rm    *Room
	syncs []syncRequest
	peers []*peer
}

type peer struct {
	h     *harness
	id    string
	c     *client.Client
	inbox []*protocol.Frame
}

func (p *peer) ID() string {
	return p.id
}

func (p *peer) Send(frame *protocol.Frame) bool {
	p.inbox = append(p.inbox, frame)
	return true
}

func (p *peer) SendSync(baseHash plumbing.Hash, operations []ot.Op) error {
	p.h.syncs = append(p.h.syncs, syncRequest{peer: p, base: baseHash, ops: operations})
	return nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rm, err := newRoom("converge", nil)
	require.NoError(t, err)
	return &harness{t: t, rm: rm}
}

func (h *harness) join(id string) *peer {
	p := &peer{h: h, id: id}
	p.c = client.New(&client.Options{NoteID: "converge", Transport: p, Debounce: time.Hour})
	head, content, err := h.rm.Latest()
	require.NoError(h.t, err)
	p.c.Reset(head, content)
	h.rm.Join(p)
	h.peers = append(h.peers, p)
	return p
}

func (h *harness) deliver(p *peer, frame *protocol.Frame) {
	switch frame.Type {
	case protocol.TypeAck:
		var payload protocol.AckPayload
		require.NoError(h.t, json.Unmarshal(frame.Payload, &payload))
		require.NoError(h.t, p.c.HandleAck(payload.NewHash))
	case protocol.TypeUpdate:
		var payload protocol.UpdatePayload
		require.NoError(h.t, json.Unmarshal(frame.Payload, &payload))
		require.NoError(h.t, p.c.HandleUpdate(payload.LatestHash, payload.Operations))
	case protocol.TypeUserCount:
	default:
		h.t.Fatalf("peer %s: unexpected frame %s", p.id, frame.Type)
	}
}

// pump alternates handling queued syncs and delivering queued frames until
// nothing is in motion.
func (h *harness) pump() {
	for {
		progress := false
		if len(h.syncs) > 0 {
			req := h.syncs[0]
			h.syncs = h.syncs[1:]
			h.rm.HandleSync(context.Background(), req.peer, req.base, req.ops)
			progress = true
		}
		for _, p := range h.peers {
			for len(p.inbox) > 0 {
				frame := p.inbox[0]
				p.inbox = p.inbox[1:]
				h.deliver(p, frame)
				progress = true
			}
		}
		if !progress {
			return
		}
	}
}

func (h *harness) serverContent() string {
	_, content, err := h.rm.Latest()
	require.NoError(h.t, err)
	return content
}

func TestConvergenceSequentialEdits(t *testing.T) {
	h := newHarness(t)
	a := h.join("a")
	b := h.join("b")

	a.c.SetText("hello", 5)
	a.c.Flush()
	h.pump()

	assert.Equal(t, "hello", h.serverContent())
	assert.Equal(t, "hello", a.c.Text())
	assert.Equal(t, "hello", b.c.Text())

	b.c.SetText("hello world", 11)
	b.c.Flush()
	h.pump()

	assert.Equal(t, "hello world", h.serverContent())
	assert.Equal(t, a.c.Text(), b.c.Text())
	assert.True(t, a.c.Idle())
	assert.True(t, b.c.Idle())
}

func TestConvergenceConcurrentInserts(t *testing.T) {
	h := newHarness(t)
	a := h.join("a")
	b := h.join("b")

	a.c.SetText("ab", 2)
	a.c.Flush()
	h.pump()

	// Both type against the same snapshot before either sync lands.
	a.c.SetText("aXb", 2)
	a.c.Flush()
	b.c.SetText("aYb", 2)
	b.c.Flush()
	h.pump()

	assert.Equal(t, a.c.Text(), b.c.Text())
	assert.Equal(t, h.serverContent(), a.c.Text())
	assert.Contains(t, a.c.Text(), "X")
	assert.Contains(t, a.c.Text(), "Y")
	assert.True(t, a.c.Idle())
	assert.True(t, b.c.Idle())
}

func TestConvergenceDuplicateDelete(t *testing.T) {
	h := newHarness(t)
	a := h.join("a")
	b := h.join("b")

	a.c.SetText("ab", 2)
	a.c.Flush()
	h.pump()

	// Both delete the same character concurrently; it must go exactly once.
	a.c.SetText("b", 1)
	a.c.Flush()
	b.c.SetText("b", 1)
	b.c.Flush()
	h.pump()

	assert.Equal(t, "b", h.serverContent())
	assert.Equal(t, "b", a.c.Text())
	assert.Equal(t, "b", b.c.Text())
}

func TestConvergenceInterleavedTyping(t *testing.T) {
	h := newHarness(t)
	a := h.join("a")
	b := h.join("b")

	// Several rounds of racing edits, pumping in between, must always land
	// every peer on the server's content.
	steps := []struct {
		aText string
		bText string
	}{
		{"alpha", "beta"},
		{"alpha one", "beta two"},
		{"alpha one three", "beta two four"},
	}
	for _, step := range steps {
		aBase := a.c.Text()
		bBase := b.c.Text()
		a.c.SetText(aBase+" "+step.aText, 0)
		b.c.SetText(bBase+" "+step.bText, 0)
		a.c.Flush()
		b.c.Flush()
		h.pump()

		require.Equal(t, h.serverContent(), a.c.Text())
		require.Equal(t, h.serverContent(), b.c.Text())
	}
	assert.True(t, a.c.Idle())
	assert.True(t, b.c.Idle())
}
