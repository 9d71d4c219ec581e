package blockserver

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/objvfs"
)

// Client is a remote ObjectStore speaking the blockserver protocol.
// Requests on one connection are serialized; open one client per
// concurrent worker.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ objvfs.ObjectStore = (*Client)(nil)

// Dial connects to a server at url (ws:// or wss://).
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, "dial %s", url)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) roundTrip(req request) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(req); err != nil {
		return response{}, apperrors.Wrapf(err, "send %s", req.Op)
	}
	var resp response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return response{}, apperrors.Wrapf(err, "receive %s", req.Op)
	}
	if resp.Error != "" {
		return response{}, errors.New(resp.Error)
	}
	return resp, nil
}

// Get fetches one object.
func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.roundTrip(request{Op: opGet, Key: key})
	if err != nil {
		return nil, err
	}
	if resp.NotFound {
		return nil, apperrors.NewNotFound("object", key)
	}
	return resp.Data, nil
}

// Put stores one object.
func (c *Client) Put(key string, data []byte) error {
	_, err := c.roundTrip(request{Op: opPut, Key: key, Data: data})
	return err
}

// Delete removes one object.
func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(request{Op: opDelete, Key: key})
	return err
}

// List returns the objects under prefix.
func (c *Client) List(prefix string) ([]objvfs.ObjectInfo, error) {
	resp, err := c.roundTrip(request{Op: opList, Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return resp.Objects, nil
}
