// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/antgroup/coedit/pkg/serve/protocol"
	"github.com/antgroup/coedit/pkg/serve/room"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsReadLimit    = 4 << 20
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second

	// Outbound frames buffered per session before the server decides the
	// peer cannot keep up. Frames are never skipped for a live session: a
	// session that missed one update could never converge again, so the
	// session is closed instead and the client reconnects.
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsSession struct {
	id   string
	ws   *websocket.Conn
	send chan *protocol.Frame
	done chan struct{}
	once sync.Once
}

func newWsSession(ws *websocket.Conn) *wsSession {
	return &wsSession{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan *protocol.Frame, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *wsSession) ID() string {
	return c.id
}

// Send enqueues a frame for the write pump. Reports false when the session
// is going away.
func (c *wsSession) Send(frame *protocol.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.shutdown()
		return false
	}
}

func (c *wsSession) shutdown() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *wsSession) readPump(rm *room.Room, r *http.Request) {
	defer c.shutdown()
	c.ws.SetReadLimit(wsReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		var frame protocol.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.Debugf("session %s: read: %v", c.id, err)
			}
			return
		}
		// Anything that is not a sync is silently dropped.
		if frame.Type != protocol.TypeSync {
			continue
		}
		var payload protocol.SyncPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			continue
		}
		rm.HandleSync(r.Context(), c, payload.BaseHash, payload.Operations)
	}
}

func (c *wsSession) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.ws.WriteJSON(frame); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// ServeWS upgrades a note session and pumps frames between the socket and
// the room until either side goes away.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rm, err := s.hub.Room(id)
	if err != nil {
		JSON(w, http.StatusInternalServerError, &noteResponse{Status: "error"})
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("note %s: upgrade: %v", id, err)
		return
	}
	sess := newWsSession(ws)
	rm.Join(sess)
	go sess.writePump()
	sess.readPump(rm, r)
	s.hub.Leave(rm, sess)
}
