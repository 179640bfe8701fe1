// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antgroup/coedit/modules/ot"
	"github.com/antgroup/coedit/modules/plumbing"
	"github.com/antgroup/coedit/pkg/client"
	"github.com/antgroup/coedit/pkg/serve/protocol"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const reconnectDelay = 2 * time.Second

// session owns the connection lifecycle for one note: initial fetch, the
// WebSocket frame loop and reconnect with backoff. Local editing is
// disabled while offline.
type session struct {
	server string
	noteID string
	c      *client.Client

	mu     sync.Mutex
	ws     *websocket.Conn
	online atomic.Bool
	closed atomic.Bool
}

func newSession(server, noteID string, render func(text string, cursor int)) *session {
	s := &session{
		server: strings.TrimSuffix(server, "/"),
		noteID: noteID,
	}
	s.c = client.New(&client.Options{
		NoteID:    noteID,
		Transport: s,
		Render:    render,
	})
	return s
}

// SendSync implements client.Transport over the current socket.
func (s *session) SendSync(baseHash plumbing.Hash, operations []ot.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return fmt.Errorf("note %s: offline", s.noteID)
	}
	return s.ws.WriteJSON(protocol.NewSync(baseHash, operations))
}

func (s *session) Online() bool {
	return s.online.Load()
}

func (s *session) Close() {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws != nil {
		_ = s.ws.Close()
	}
}

type noteResponse struct {
	Status        string  `json:"status"`
	LatestHash    *string `json:"latest_hash"`
	LatestContent *string `json:"latest_content"`
}

func (s *session) fetchNote() (plumbing.Hash, string, error) {
	resp, err := http.Get(s.server + "/api/note/" + url.PathEscape(s.noteID))
	if err != nil {
		return plumbing.Hash{}, "", err
	}
	defer resp.Body.Close() // nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return plumbing.Hash{}, "", fmt.Errorf("fetch note: status %s", resp.Status)
	}
	var nr noteResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return plumbing.Hash{}, "", err
	}
	if nr.Status != "success" || nr.LatestHash == nil || nr.LatestContent == nil {
		return plumbing.Hash{}, "", fmt.Errorf("fetch note: bad response status %q", nr.Status)
	}
	hash, err := plumbing.NewHashEx(*nr.LatestHash)
	if err != nil {
		return plumbing.Hash{}, "", err
	}
	return hash, *nr.LatestContent, nil
}

func (s *session) wsEndpoint() (string, error) {
	u, err := url.Parse(s.server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/note/" + url.PathEscape(s.noteID)
	return u.String(), nil
}

func (s *session) connect() error {
	hash, content, err := s.fetchNote()
	if err != nil {
		return err
	}
	endpoint, err := s.wsEndpoint()
	if err != nil {
		return err
	}
	ws, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	s.c.Reset(hash, content)
	s.online.Store(true)
	return nil
}

func (s *session) disconnect() {
	s.online.Store(false)
	s.mu.Lock()
	if s.ws != nil {
		_ = s.ws.Close()
		s.ws = nil
	}
	s.mu.Unlock()
}

// run keeps the session alive until Close: connect, pump frames, and on any
// socket error back off and start over from a fresh snapshot.
func (s *session) run(notify func(format string, a ...any)) {
	for !s.closed.Load() {
		if err := s.connect(); err != nil {
			notify("connect: %v, retrying in %v", err, reconnectDelay)
			time.Sleep(reconnectDelay)
			continue
		}
		notify("connected to %s", s.server)
		s.readLoop(notify)
		s.disconnect()
		if s.closed.Load() {
			return
		}
		notify("connection lost, editing disabled, reconnecting ...")
		time.Sleep(reconnectDelay)
	}
}

func (s *session) readLoop(notify func(format string, a ...any)) {
	for {
		s.mu.Lock()
		ws := s.ws
		s.mu.Unlock()
		if ws == nil {
			return
		}
		var frame protocol.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			logrus.Debugf("note %s: read: %v", s.noteID, err)
			return
		}
		if err := s.dispatch(&frame, notify); err != nil {
			notify("session error: %v", err)
			return
		}
	}
}

func (s *session) dispatch(frame *protocol.Frame, notify func(format string, a ...any)) error {
	switch frame.Type {
	case protocol.TypeAck:
		var payload protocol.AckPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		return s.c.HandleAck(payload.NewHash)
	case protocol.TypeUpdate:
		var payload protocol.UpdatePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		return s.c.HandleUpdate(payload.LatestHash, payload.Operations)
	case protocol.TypeConflict:
		var payload protocol.MessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		s.c.HandleConflict(payload.Message)
		notify("conflict: %s, reloading note", payload.Message)
		hash, content, err := s.fetchNote()
		if err != nil {
			return err
		}
		s.c.Reset(hash, content)
		return nil
	case protocol.TypeError:
		var payload protocol.MessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		notify("server: %s", payload.Message)
		return nil
	case protocol.TypeUserCount:
		var payload protocol.UserCountPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		notify("%d editor(s) online", payload.Count)
		return nil
	default:
		// Unknown frames are ignored so old clients survive new servers.
		return nil
	}
}
