package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Subprotocol is the websocket subprotocol registered for MQTT.
	Subprotocol = "mqtt"

	handshakeTimeout = 30 * time.Second
)

type wsConn struct {
	completion

	ws  *websocket.Conn
	log log.FieldLogger

	writeMu   sync.Mutex
	readOnce  sync.Once
	closeOnce sync.Once
}

// DialWebSocket opens a secure websocket to host:port negotiating the "mqtt"
// subprotocol. MQTT frames are carried in binary messages.
func DialWebSocket(
	ctx context.Context,
	host string,
	port int,
	cfg *Config,
) (Connection, error) {
	u := url.URL{
		Scheme: "wss",
		Host:   address(host, port),
		Path:   cfg.path(),
	}
	dialer := &websocket.Dialer{
		NetDialContext:   cfg.dialer().DialContext,
		TLSClientConfig:  cfg.tlsConfig(host),
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket: failed to dial %s: %w (HTTP %d)",
				u.String(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket: failed to dial %s: %w", u.String(), err)
	}
	if ws.Subprotocol() != Subprotocol {
		_ = ws.Close()
		return nil, fmt.Errorf(
			"websocket: server did not accept subprotocol %q", Subprotocol,
		)
	}
	logger := cfg.logger().WithField("remote", u.String())
	logger.Debug("websocket: connection established")
	return newWSConn(ws, logger), nil
}

func newWSConn(ws *websocket.Conn, logger log.FieldLogger) *wsConn {
	return &wsConn{
		completion: completion{done: make(chan struct{})},
		ws:         ws,
		log:        logger,
	}
}

func (c *wsConn) Write(ctx context.Context, b []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return 0, ErrClosed
	default:
	}
	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) OnRead(handler func([]byte)) {
	c.readOnce.Do(func() {
		go c.readRoutine(handler)
	})
}

func (c *wsConn) readRoutine(handler func([]byte)) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				c.log.Debug("websocket: stream ended")
				c.finish(nil)
			} else {
				c.log.Warnf("websocket: read error: %s", err)
				c.finish(err)
			}
			_ = c.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			c.log.Warnf("websocket: discarding non-binary message (type %d)",
				msgType)
			continue
		}
		handler(data)
	}
}

func (c *wsConn) Close() (err error) {
	c.closeOnce.Do(func() {
		err = c.ws.Close()
		c.finish(nil)
	})
	return err
}
