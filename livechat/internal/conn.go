package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
)

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 1 << 20

// DecodeError reports a frame that arrived intact but could not be decoded.
// The connection is still usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode frame: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Conn wraps websocket.Conn with timeouts and a JSON codec.
type Conn struct {
	ws           *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Dial opens a websocket to url with the given handshake header.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, *http.Response, error) {
	ws, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, resp, err
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws}, resp, nil
}

func NewConn(ws *websocket.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// SetTimeouts sets per-call read and write deadlines. Zero disables them.
func (c *Conn) SetTimeouts(read, write time.Duration) {
	c.readTimeout = read
	c.writeTimeout = write
}

func (c *Conn) Read(ctx context.Context, v any) error {
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return err
	}
	if typ != websocket.MessageText {
		return &DecodeError{Err: fmt.Errorf("unexpected frame type %v", typ)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func (c *Conn) Write(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	return c.ws.Close(code, reason)
}
