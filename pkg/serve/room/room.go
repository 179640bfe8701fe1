// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package room holds the per-note server state: the commit history, the
// connected sessions, and the serialized merge protocol over both.
//
// A room is a single-writer actor in mutex form: every sync, join and
// leave for one note runs under the room lock for its full duration, so
// concurrent merges can never race on HEAD. Rooms for different notes are
// independent.
package room

import (
	"context"
	"sync"

	"github.com/antgroup/coedit/modules/chardiff"
	"github.com/antgroup/coedit/modules/ot"
	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/antgroup/coedit/pkg/notedb"
	"github.com/antgroup/coedit/pkg/serve/protocol"
	"github.com/sirupsen/logrus"
)

// Sender is the outbound half of one client session. Send must not block
// the room: implementations enqueue and report false when the session is
// going away, in which case the room gives up on it rather than skip
// frames (a session that missed an update can never converge again).
type Sender interface {
	ID() string
	Send(frame *protocol.Frame) bool
}

type Room struct {
	id    string
	mu    sync.Mutex
	db    *notedb.DB
	conns map[string]Sender
}

func newRoom(id string, cache *notedb.Cache) (*Room, error) {
	db := notedb.NewDB(cache)
	if _, err := db.Commit("", "Initial empty commit"); err != nil {
		return nil, err
	}
	return &Room{
		id:    id,
		db:    db,
		conns: make(map[string]Sender),
	}, nil
}

// Latest returns the authoritative hash and content for the initial fetch.
func (r *Room) Latest() (plumbing.Hash, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	head, _ := r.db.Head()
	content, err := r.db.ContentAt(head)
	return head, content, err
}

func (r *Room) Join(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[s.ID()] = s
	logrus.Infof("room %s: session %s joined, %d online", r.id, s.ID(), len(r.conns))
	r.broadcast(nil, protocol.NewUserCount(len(r.conns)))
}

// leave removes the session and reports whether the room is now empty.
func (r *Room) leave(s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, s.ID())
	logrus.Infof("room %s: session %s left, %d online", r.id, s.ID(), len(r.conns))
	if len(r.conns) == 0 {
		return true
	}
	r.broadcast(nil, protocol.NewUserCount(len(r.conns)))
	return false
}

// broadcast fans a frame out to every session except the one given.
func (r *Room) broadcast(except Sender, frame *protocol.Frame) {
	for id, s := range r.conns {
		if except != nil && id == except.ID() {
			continue
		}
		if !s.Send(frame) {
			logrus.Errorf("room %s: session %s cannot keep up, dropping", r.id, id)
		}
	}
}

// HandleSync processes one sync request: fast-forward when the client's
// base is HEAD, three-way merge otherwise.
func (r *Room) HandleSync(ctx context.Context, from Sender, base plumbing.Hash, operations []ot.Op) {
	r.mu.Lock()
	defer r.mu.Unlock()

	baseContent, err := r.db.ContentAt(base)
	if err != nil {
		logrus.Debugf("room %s: sync from %s against unknown base %s", r.id, from.ID(), base)
		from.Send(protocol.NewError("Base hash not found. Please reload."))
		return
	}
	head, _ := r.db.Head()

	if base == head {
		r.fastForward(from, baseContent, operations)
		return
	}
	r.merge(ctx, from, base, baseContent, head, operations)
}

func (r *Room) fastForward(from Sender, baseContent string, operations []ot.Op) {
	clientContent, err := ot.Apply(baseContent, operations)
	if err != nil {
		logrus.Errorf("room %s: fast-forward apply failed: %v", r.id, err)
		from.Send(protocol.NewConflict(err.Error()))
		return
	}
	newHash, err := r.db.Commit(clientContent, "Update from client")
	if err != nil {
		from.Send(protocol.NewConflict(err.Error()))
		return
	}
	logrus.Debugf("room %s: fast-forward to %s", r.id, newHash)
	from.Send(protocol.NewAck(newHash))
	// The originator's operations apply cleanly on every peer whose
	// synchronized state was the previous HEAD.
	r.broadcast(from, protocol.NewUpdate(newHash, operations))
}

func (r *Room) merge(ctx context.Context, from Sender, base plumbing.Hash, baseContent string, head plumbing.Hash, operations []ot.Op) {
	serverContent, err := r.db.ContentAt(head)
	if err != nil {
		from.Send(protocol.NewConflict(err.Error()))
		return
	}
	merged, err := r.merge3(ctx, baseContent, serverContent, operations)
	if err != nil {
		logrus.Errorf("room %s: merge of %s onto %s failed: %v", r.id, base, head, err)
		from.Send(protocol.NewConflict(err.Error()))
		return
	}
	newHash, err := r.db.Commit(merged, "Merged update from client")
	if err != nil {
		from.Send(protocol.NewConflict(err.Error()))
		return
	}
	logrus.Debugf("room %s: merged %s onto %s as %s", r.id, base, head, newHash)
	from.Send(protocol.NewAck(newHash))

	// Peers tracked serverContent, not baseContent, so only the delta
	// against server state applies cleanly on their side.
	broadcastOps, err := diffOps(ctx, serverContent, merged)
	if err != nil {
		logrus.Errorf("room %s: broadcast diff failed: %v", r.id, err)
		return
	}
	if len(broadcastOps) == 0 {
		return
	}
	r.broadcast(from, protocol.NewUpdate(newHash, broadcastOps))
}

// merge3 reconciles the client's operations against concurrent server
// history sharing the same base.
func (r *Room) merge3(ctx context.Context, baseContent, serverContent string, operations []ot.Op) (string, error) {
	clientContent, err := ot.Apply(baseContent, operations)
	if err != nil {
		return "", err
	}
	serverOps, err := diffOps(ctx, baseContent, serverContent)
	if err != nil {
		return "", err
	}
	clientOps, err := diffOps(ctx, baseContent, clientContent)
	if err != nil {
		return "", err
	}
	rebased := ot.Transform(clientOps, serverOps)
	return ot.Apply(serverContent, rebased)
}

func diffOps(ctx context.Context, a, b string) ([]ot.Op, error) {
	entries, err := chardiff.Diff(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return ot.Coalesce(ot.FromDiff(entries)), nil
}

// UserCount reports the number of connected sessions.
func (r *Room) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
