package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/samhoang/modhub/internal/events"
)

// broadcast relays bus events to every websocket client. A client whose
// buffer is full is disconnected.
func (s *Server) broadcast(sub <-chan events.Event) {
	defer s.broadcastWG.Done()

	for evt := range sub {
		var slowClients []*websocket.Conn
		s.clientsMu.RLock()
		for conn, ch := range s.clients {
			select {
			case ch <- evt:
			default:
				slowClients = append(slowClients, conn)
			}
		}
		s.clientsMu.RUnlock()

		if len(slowClients) > 0 {
			s.clientsMu.Lock()
			for _, conn := range slowClients {
				delete(s.clients, conn)
			}
			s.clientsMu.Unlock()
			for _, conn := range slowClients {
				s.logger.Warn("dropping slow event client", "remote", conn.RemoteAddr())
				if err := conn.Close(); err != nil {
					s.logger.Debug("ws client close failed", "err", err)
				}
			}
		}
	}
}

// clientCount reports the number of connected websocket clients
func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer ws.Close()
	s.logger.Debug("ws connected", "remote", r.RemoteAddr)

	clientCh := make(chan events.Event, clientBuffer)
	s.clientsMu.Lock()
	s.clients[ws] = clientCh
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, ws)
		s.clientsMu.Unlock()
	}()

	// drain control frames so a client close is noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt := <-clientCh:
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Error("event marshal failed", "err", err)
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
