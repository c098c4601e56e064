/*
 * Copyright 2024 The Wireflow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server is the debug sidecar: a small HTTP surface for inspecting
// deployed flows, injecting messages and streaming event-bus traffic over a
// websocket. It observes the engine; it never participates in routing.
package server

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/wireflow/wireflow"
	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/json"
)

const maxInjectBody = 1 << 20

// Server exposes the debug endpoints for one engine.
type Server struct {
	Addr     string
	Upgrader websocket.Upgrader

	engine *wireflow.Engine
	server *http.Server
	router *httprouter.Router
	logger types.Logger
	mu     sync.Mutex
}

// New creates a debug sidecar for the given engine.
func New(addr string, engine *wireflow.Engine) *Server {
	s := &Server{
		Addr:   addr,
		engine: engine,
		logger: types.NewLogger(engine.Config().Logger),
	}
	s.router = httprouter.New()
	s.router.Handle(http.MethodGet, "/flows/:id", s.getFlow)
	s.router.Handle(http.MethodPost, "/flows/:id/inject/:nodeId", s.inject)
	s.router.Handle(http.MethodGet, "/events", s.events)
	return s
}

// Start serves until Stop is called. Blocking.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{Addr: s.Addr, Handler: s.router}
	server := s.server
	s.mu.Unlock()
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the listener down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// getFlow returns a deployed flow's definition.
func (s *Server) getFlow(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	flow, ok := s.engine.Get(params.ByName("id"))
	if !ok {
		http.Error(w, "flow not found", http.StatusNotFound)
		return
	}
	body, err := json.Marshal(flow.Definition())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// inject delivers the request body to one node. The body is either a full
// message record ({"payload": ..., "topic": ...}) or a bare payload value.
func (s *Server) inject(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInjectBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg := types.NewMessage(nil)
	var record struct {
		Payload interface{} `json:"payload"`
		Topic   string      `json:"topic"`
	}
	if err := json.Unmarshal(body, &record); err == nil && (record.Payload != nil || record.Topic != "") {
		msg.Payload = record.Payload
		msg.Topic = record.Topic
	} else {
		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "body is not valid JSON", http.StatusBadRequest)
			return
		}
		msg.Payload = payload
	}
	if !s.engine.Deliver(params.ByName("id"), params.ByName("nodeId"), msg) {
		http.Error(w, "flow or node not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// events upgrades to a websocket and streams every bus event of the flow
// named by the flowId query parameter.
func (s *Server) events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flowId := r.URL.Query().Get("flowId")
	flow, ok := s.engine.Get(flowId)
	if !ok {
		http.Error(w, "flow not found", http.StatusNotFound)
		return
	}
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var writeMu sync.Mutex
	unsubscribe := flow.Bus().Subscribe(types.EventSubscription{
		Handler: func(event types.FlowEvent) {
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Printf("debug websocket write: %s", err)
			}
		},
	})

	// reads only to observe the close
	go func() {
		defer unsubscribe()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
