package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reliwire-dev/reliwire/pkg/processor"
)

// Conn is a WebSocket transport around a gorilla connection. Writes are
// serialized with a mutex so the engine and application goroutines may
// send concurrently; reads happen on the single Run loop.
type Conn struct {
	ws  *websocket.Conn
	log processor.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// ConnOption customizes a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger used for read/write errors.
func WithLogger(l processor.Logger) ConnOption {
	return func(c *Conn) { c.log = l }
}

// WithReadTimeout bounds how long Run waits for the next message.
// Zero disables the deadline; the engine's heartbeat detects dead
// connections either way.
func WithReadTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.readTimeout = d }
}

// WithWriteTimeout bounds each Send.
func WithWriteTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.writeTimeout = d }
}

// Dial connects to a WebSocket endpoint and wraps the connection.
func Dial(ctx context.Context, url string, opts ...ConnOption) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewConn(ws, opts...), nil
}

// NewConn wraps an established gorilla connection, for example one
// produced by an Upgrader on the server side.
func NewConn(ws *websocket.Conn, opts ...ConnOption) *Conn {
	c := &Conn{
		ws:           ws,
		log:          processor.NopLogger(),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads messages until the connection dies and feeds them to r.
// It blocks, notifies r of closure on exit, and is the only reader of
// the underlying connection.
func (c *Conn) Run(r Receiver) {
	defer r.HandleTransportClosed()

	for {
		if c.readTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Error("read error", "err", err)
			}
			return
		}
		r.HandleRaw(msg)
	}
}

// Send writes one text message.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame on a best-effort basis and tears the
// connection down. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

var _ processor.Transport = (*Conn)(nil)
