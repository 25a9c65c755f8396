package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type tlsConn struct {
	completion

	conn net.Conn
	log  log.FieldLogger

	writeMu   sync.Mutex
	readOnce  sync.Once
	closeOnce sync.Once
}

// DialTLS opens a TLS socket to host:port.
func DialTLS(
	ctx context.Context,
	host string,
	port int,
	cfg *Config,
) (Connection, error) {
	addr := address(host, port)
	raw, err := cfg.dialer().DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tls: failed to dial %s: %w", addr, err)
	}
	conn := tls.Client(raw, cfg.tlsConfig(host))
	if err = conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tls: failed to handshake: %w", err)
	}
	logger := cfg.logger().WithField("remote", addr)
	logger.Debug("tls: connection established")
	return newTLSConn(conn, logger), nil
}

func newTLSConn(conn net.Conn, logger log.FieldLogger) *tlsConn {
	return &tlsConn{
		completion: completion{done: make(chan struct{})},
		conn:       conn,
		log:        logger,
	}
}

func (c *tlsConn) Write(ctx context.Context, b []byte) (int, error) {
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
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	return c.conn.Write(b)
}

func (c *tlsConn) OnRead(handler func([]byte)) {
	c.readOnce.Do(func() {
		go c.readRoutine(handler)
	})
}

func (c *tlsConn) readRoutine(handler func([]byte)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			handler(buf[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			c.log.Debug("tls: stream ended")
			c.finish(nil)
		} else {
			c.log.Warnf("tls: read error: %s", err)
			c.finish(err)
		}
		_ = c.Close()
		return
	}
}

func (c *tlsConn) Close() (err error) {
	c.closeOnce.Do(func() {
		// Bound the close_notify write.
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		err = c.conn.Close()
		c.finish(nil)
	})
	return err
}
