// Package blockserver exposes an objvfs.ObjectStore over a WebSocket
// connection. The server side wraps a local store behind an
// http.Handler; the client side dials a server and is itself an
// ObjectStore, so a remote store plugs into objvfs.New unchanged.
//
// The protocol is one JSON request per message with a JSON response in
// reply. Object payloads ride in the standard base64 encoding that
// encoding/json applies to byte slices.
package blockserver

import (
	"net/http"

	"github.com/gorilla/websocket"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/objvfs"
	"github.com/FocuswithJustin/memvfs/internal/logging"
)

// Operation names accepted by the server.
const (
	opGet    = "get"
	opPut    = "put"
	opDelete = "delete"
	opList   = "list"
)

// request is one client command.
type request struct {
	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// response answers one request.
type response struct {
	OK       bool                `json:"ok"`
	NotFound bool                `json:"not_found,omitempty"`
	Error    string              `json:"error,omitempty"`
	Data     []byte              `json:"data,omitempty"`
	Objects  []objvfs.ObjectInfo `json:"objects,omitempty"`
}

// Server serves an ObjectStore to WebSocket clients.
type Server struct {
	store    objvfs.ObjectStore
	upgrader websocket.Upgrader
}

// NewServer wraps store.
func NewServer(store objvfs.ObjectStore) *Server {
	return &Server{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP upgrades the connection and answers requests until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}
		if err := conn.WriteJSON(s.handle(req)); err != nil {
			logging.Error("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handle(req request) response {
	switch req.Op {
	case opGet:
		data, err := s.store.Get(req.Key)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return response{NotFound: true}
			}
			return response{Error: err.Error()}
		}
		logging.StoreEvent(opGet, req.Key, "size", len(data))
		return response{OK: true, Data: data}

	case opPut:
		if err := s.store.Put(req.Key, req.Data); err != nil {
			return response{Error: err.Error()}
		}
		logging.StoreEvent(opPut, req.Key, "size", len(req.Data))
		return response{OK: true}

	case opDelete:
		if err := s.store.Delete(req.Key); err != nil {
			return response{Error: err.Error()}
		}
		logging.StoreEvent(opDelete, req.Key)
		return response{OK: true}

	case opList:
		infos, err := s.store.List(req.Prefix)
		if err != nil {
			return response{Error: err.Error()}
		}
		return response{OK: true, Objects: infos}

	default:
		return response{Error: "unknown operation: " + req.Op}
	}
}
