package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

// Conn is one realtime connection to a room. Receive blocks until a frame
// arrives or the connection ends.
type Conn interface {
	Receive() ([]byte, error)
	Send(data []byte) error
	Close() error
}

// Dialer opens a Conn to a fully built room URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials rooms over golang.org/x/net/websocket.
type WebsocketDialer struct {
	Origin string
}

var _ Dialer = WebsocketDialer{}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = "http://localhost/"
	}
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, errors.Wrap(err, "websocket config")
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial")
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn

	sendMu sync.Mutex
}

func (c *wsConn) Receive() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return websocket.Message.Send(c.ws, string(data))
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
