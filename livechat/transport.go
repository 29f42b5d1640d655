package livechat

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/vovakirdan/livechat-sdk-go/livechat/internal"
)

// Handshake is the identity sent when the socket is opened.
type Handshake struct {
	URL      string
	Token    string
	UserID   string
	UserName string
}

// Transport opens sockets. The default transport speaks JSON frames over a
// websocket.
type Transport interface {
	Dial(ctx context.Context, hs Handshake) (Socket, error)
}

// Socket is one open connection. ReadFrame blocks until a frame arrives or
// the socket fails; WriteFrame may be called concurrently with ReadFrame.
type Socket interface {
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, f Frame) error
	Close(reason string) error
}

// DisconnectReasoner lets a Socket's read error carry an explicit reason.
type DisconnectReasoner interface {
	DisconnectReason() string
}

type websocketTransport struct {
	cfg *Config
}

func (t websocketTransport) Dial(ctx context.Context, hs Handshake) (Socket, error) {
	u, err := url.Parse(hs.URL)
	if err != nil {
		return nil, WrapError(ErrorInvalidConfig, "invalid URL", err)
	}
	q := u.Query()
	q.Set("userId", hs.UserID)
	q.Set("userName", hs.UserName)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if hs.Token != "" {
		header.Set("Authorization", "Bearer "+hs.Token)
	}
	conn, resp, err := internal.Dial(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, WrapError(ErrorUnauthorized, "handshake rejected", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, WrapError(ErrorTimeout, "handshake timed out", err)
		}
		return nil, WrapError(ErrorConnection, "dial failed", err)
	}
	conn.SetTimeouts(t.cfg.ReadTimeout, t.cfg.WriteTimeout)
	return websocketSocket{conn: conn}, nil
}

type websocketSocket struct {
	conn *internal.Conn
}

func (s websocketSocket) ReadFrame(ctx context.Context) (Frame, error) {
	var f Frame
	err := s.conn.Read(ctx, &f)
	return f, err
}

func (s websocketSocket) WriteFrame(ctx context.Context, f Frame) error {
	return s.conn.Write(ctx, f)
}

func (s websocketSocket) Close(reason string) error {
	return s.conn.Close(websocket.StatusNormalClosure, reason)
}

func isDecodeError(err error) bool {
	var de *internal.DecodeError
	return errors.As(err, &de)
}

// disconnectReason maps a read error to one of the Reason* constants.
func disconnectReason(err error) string {
	var r DisconnectReasoner
	if errors.As(err, &r) {
		return r.DisconnectReason()
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return ReasonServerDisconnect
	case -1:
	default:
		return ReasonTransportError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonPingTimeout
	}
	return ReasonTransportClose
}
