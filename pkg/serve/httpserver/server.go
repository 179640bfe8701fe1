// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package httpserver is the transport shell of the note server: a REST
// endpoint for the initial fetch and a WebSocket endpoint per note for the
// sync protocol. Everything protocol-relevant lives in pkg/serve/room;
// this package only moves frames.
package httpserver

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/antgroup/coedit/pkg/notedb"
	"github.com/antgroup/coedit/pkg/serve/room"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	*ServerConfig
	srv        *http.Server
	r          *mux.Router
	hub        *room.Hub
	cache      *notedb.Cache
	serverName string
}

func (s *Server) initialize() error {
	r := mux.NewRouter()
	r.HandleFunc("/api/note/{id}", s.GetNote).Methods("GET")
	r.HandleFunc("/ws/note/{id}", s.ServeWS).Methods("GET")
	r.PathPrefix("/").HandlerFunc(s.Preflight).Methods("OPTIONS")
	r.NotFoundHandler = http.HandlerFunc(s.NotFound)
	s.r = r
	s.srv.Handler = s
	return nil
}

func NewServer(sc *ServerConfig) (*Server, error) {
	cache, err := notedb.NewCache(sc.Cache.NumCounters, sc.Cache.MaxCost, sc.Cache.BufferItems)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		ServerConfig: sc,
		srv: &http.Server{
			Addr:         sc.Listen,
			ReadTimeout:  sc.ReadTimeout.Duration,
			IdleTimeout:  sc.IdleTimeout.Duration,
			WriteTimeout: sc.WriteTimeout.Duration,
		},
		hub:        room.NewHub(cache),
		cache:      cache,
		serverName: sc.BannerVersion,
	}
	if err := srv.initialize(); err != nil {
		cache.Close()
		return nil, err
	}
	return srv, nil
}

func (s *Server) ListenAndServe() error {
	logrus.Infof("coedit-serve httpd listen on %s", s.Listen)
	return s.srv.ListenAndServe()
}

func logResponse(hw *ResponseWriter, r *http.Request, spent time.Duration) {
	if statusCode := hw.StatusCode(); statusCode >= http.StatusBadRequest {
		logrus.Errorf("[%s] %s %s status: %d written: %d spent: %v", hw.RemoteAddr(), r.Method, r.RequestURI, statusCode, hw.Written(), spent)
		return
	}
	logrus.Infof("[%s] %s %s status: %d written: %d spent: %v", hw.RemoteAddr(), r.Method, r.RequestURI, hw.StatusCode(), hw.Written(), spent)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// remove multiple slash and ./..
	if r.URL != nil {
		r.URL.Path = path.Clean(r.URL.Path)
	}
	w.Header().Set("Server", s.serverName)
	now := time.Now()
	hw := NewResponseWriter(w, r)
	s.r.ServeHTTP(hw, r)
	logResponse(hw, r, time.Since(now))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("shutdown http server %v", err)
	}
	s.cache.Close()
	return err
}

type noteResponse struct {
	Status        string  `json:"status"`
	LatestHash    *string `json:"latest_hash"`
	LatestContent *string `json:"latest_content"`
}

// GetNote serves the initial fetch. First access to a note ID creates its
// room with an initial empty commit.
func (s *Server) GetNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rm, err := s.hub.Room(id)
	if err != nil {
		JSON(w, http.StatusInternalServerError, &noteResponse{Status: "error"})
		return
	}
	head, content, err := rm.Latest()
	if err != nil {
		JSON(w, http.StatusInternalServerError, &noteResponse{Status: "error"})
		return
	}
	hash := head.String()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	JSON(w, http.StatusOK, &noteResponse{Status: "success", LatestHash: &hash, LatestContent: &content})
}

func (s *Server) Preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "404 page not found", http.StatusNotFound)
}
