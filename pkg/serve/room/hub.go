// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"sync"

	"github.com/antgroup/coedit/pkg/notedb"
	"github.com/sirupsen/logrus"
)

// Hub owns every live room, keyed by note ID, plus the process-wide
// content cache they share.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
	cache *notedb.Cache
}

func NewHub(cache *notedb.Cache) *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
		cache: cache,
	}
}

// Room returns the room for a note ID, creating it with an initial empty
// commit on first reference.
func (h *Hub) Room(id string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r, nil
	}
	r, err := newRoom(id, h.cache)
	if err != nil {
		return nil, err
	}
	h.rooms[id] = r
	logrus.Infof("room %s: created", id)
	return r, nil
}

// Leave detaches a session from its room and tears the room down when the
// last session is gone. History dies with the room; the next reference
// starts over from an empty note.
func (h *Hub) Leave(r *Room, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.leave(s) {
		delete(h.rooms, r.id)
		logrus.Infof("room %s: destroyed", r.id)
	}
}

// Len reports the number of live rooms.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
