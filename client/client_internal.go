package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/packets"
	"github.com/alfrunes/mqttie/v5/transport"
)

// connection returns the current transport, dialing a new one if there is
// none.
func (c *Client) connection(ctx context.Context) (transport.Connection, error) {
	c.mu.Lock()
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	cfg := c.transportConfig
	if cfg == nil {
		cfg = &transport.Config{Logger: c.log}
	}
	conn, err := c.registry.Dial(ctx, c.scheme, c.hostname, c.port, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s://%s:%d: %w",
			c.scheme, c.hostname, c.port, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost the race against a concurrent Connect.
		existing := c.conn
		c.mu.Unlock()
		_ = conn.Close()
		return existing, nil
	}
	c.conn = conn
	c.receivedDisconnect = false
	c.mu.Unlock()

	c.log.Infof("transport established to %s://%s:%d",
		c.scheme, c.hostname, c.port)
	conn.OnRead(c.newReader(conn))
	go c.watch(conn)
	return conn, nil
}

// newReader returns the inbound handler for conn. Partial frames are kept
// until the rest of the frame arrives.
func (c *Client) newReader(conn transport.Connection) func([]byte) {
	var (
		buf    []byte
		failed bool
	)
	return func(b []byte) {
		if failed {
			return
		}
		c.metrics.bytesReceived(len(b))
		buf = append(buf, b...)
		for len(buf) > 0 {
			pkt, n, err := packets.Decode(buf)
			if errors.Is(err, mqtt.ErrNeedMoreBytes) {
				break
			} else if err != nil {
				c.log.Errorf("failed to decode packet, "+
					"closing connection: %s", err)
				failed = true
				buf = nil
				_ = conn.Close()
				return
			}
			buf = buf[n:]
			c.dispatch(conn, pkt)
		}
		if len(buf) == 0 {
			buf = nil
		} else {
			// Detach the leftover from the consumed region.
			buf = append([]byte(nil), buf...)
		}
	}
}

func (c *Client) dispatch(conn transport.Connection, pkt packets.Packet) {
	c.metrics.packetReceived(pkt.Type())
	if c.onPacket != nil {
		c.onPacket(pkt)
	}
	switch p := pkt.(type) {
	case *packets.ConnAck:
		c.handleConnAck(conn, p)

	case *packets.SubAck:
		c.handleSubAck(conn, p)

	case *packets.Publish:
		if c.onMessage != nil {
			c.onMessage(Message{
				Topic:       p.Topic,
				Payload:     p.Payload,
				UTF8:        p.IsUTF8(),
				ContentType: p.ContentType,
				Retain:      p.Retain,
			})
		}

	case *packets.PingResp:

	case *packets.Disconnect:
		c.handleDisconnect(conn, p)

	default:
		c.log.Warnf("discarding unexpected packet: %s", pkt.Type())
	}
}

func (c *Client) handleConnAck(conn transport.Connection, p *packets.ConnAck) {
	c.mu.Lock()
	pending := c.pendingConnect
	if pending == nil || pending.conn != conn {
		c.mu.Unlock()
		c.log.Warn("discarding CONNACK: no connect request pending")
		return
	}
	c.pendingConnect = nil
	if p.Reason.Failed() {
		c.mu.Unlock()
		c.log.Errorf("connect request rejected: %s", p.Reason.Error())
		c.transition(eventReject)
		pending.resolve(p.Reason)
		return
	}
	c.connAck = p
	if p.AssignedClientIdentifier != "" {
		c.clientID = p.AssignedClientIdentifier
	}
	if p.ServerKeepAlive != nil {
		c.keepAlive = time.Duration(*p.ServerKeepAlive) * time.Second
	}
	c.startKeepAlive()
	c.mu.Unlock()

	c.transition(eventConnAck)
	pending.resolve(nil)
}

func (c *Client) handleSubAck(conn transport.Connection, p *packets.SubAck) {
	c.mu.Lock()
	pending, ok := c.pendingSubscribes[p.PacketIdentifier]
	if !ok || pending.conn != conn {
		c.mu.Unlock()
		c.log.Warnf("discarding SUBACK: packet id %d not pending",
			p.PacketIdentifier)
		return
	}
	delete(c.pendingSubscribes, p.PacketIdentifier)
	c.packetIDs.release(p.PacketIdentifier)
	c.mu.Unlock()

	if reason, failed := p.Failed(); failed {
		pending.resolve(&SubscribeError{
			TopicFilter: pending.topicFilter,
			Reason:      reason,
		})
		return
	}
	pending.resolve(nil)
}

func (c *Client) handleDisconnect(
	conn transport.Connection,
	p *packets.Disconnect,
) {
	c.mu.Lock()
	if c.conn == conn {
		c.receivedDisconnect = true
	}
	c.mu.Unlock()
	c.log.Warnf("server disconnected: %s", p.Reason.Error())
	_ = conn.Close()
}

// watch waits for conn to end and releases everything bound to it.
func (c *Client) watch(conn transport.Connection) {
	<-conn.Done()
	err := conn.Err()

	var (
		current   bool
		connect   *pendingRequest
		subscribe []*pendingRequest
	)
	c.mu.Lock()
	if c.conn == conn {
		current = true
		c.conn = nil
		c.stopKeepAlive()
	}
	if c.pendingConnect != nil && c.pendingConnect.conn == conn {
		connect = c.pendingConnect
		c.pendingConnect = nil
	}
	for id, pending := range c.pendingSubscribes {
		if pending.conn == conn {
			subscribe = append(subscribe, pending)
			delete(c.pendingSubscribes, id)
			c.packetIDs.release(id)
		}
	}
	c.mu.Unlock()

	closeErr := mqtt.ErrConnectionClosed
	if err != nil {
		c.log.Errorf("connection lost: %s", err)
		closeErr = fmt.Errorf("%w: %s", mqtt.ErrConnectionClosed, err)
	} else {
		c.log.Info("connection closed")
	}
	if current {
		c.transition(eventClose)
	}
	if connect != nil {
		connect.resolve(closeErr)
	}
	for _, pending := range subscribe {
		pending.resolve(closeErr)
	}
	if current && c.onLost != nil {
		c.onLost(err)
	}
}

// dropPendingConnect clears pending if it is still the outstanding connect
// request.
func (c *Client) dropPendingConnect(pending *pendingRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingConnect != pending {
		return false
	}
	c.pendingConnect = nil
	return true
}

// startKeepAlive (re)arms the keep alive routine. c.mu must be held.
func (c *Client) startKeepAlive() {
	c.stopKeepAlive()
	if c.keepAlive <= 0 {
		return
	}
	stop := make(chan struct{})
	c.keepAliveStop = stop
	go c.keepAliveRoutine(c.keepAlive, stop)
}

// stopKeepAlive stops the keep alive routine. c.mu must be held.
func (c *Client) stopKeepAlive() {
	if c.keepAliveStop != nil {
		close(c.keepAliveStop)
		c.keepAliveStop = nil
	}
}

func (c *Client) keepAliveRoutine(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := c.send(ctx, &packets.PingReq{})
			cancel()
			if errors.Is(err, mqtt.ErrNotConnected) ||
				errors.Is(err, mqtt.ErrReceivedDisconnect) {
				return
			} else if err != nil {
				c.log.Warnf("failed to send keep alive: %s", err)
			}
		}
	}
}

// send writes pkt to the current transport, waiting for the rate limiter if
// one is configured.
func (c *Client) send(ctx context.Context, pkt packets.Packet) error {
	b, err := pkt.MarshalBinary()
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	disconnected := c.receivedDisconnect
	conn := c.conn
	c.mu.Unlock()
	if disconnected {
		return mqtt.ErrReceivedDisconnect
	} else if conn == nil {
		return mqtt.ErrNotConnected
	}
	if c.limiter != nil {
		if err = c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	c.log.Debugf("sending %s: % X", pkt.Type(), b)
	n, err := conn.Write(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", pkt.Type(), err)
	}
	c.metrics.packetSent(pkt.Type(), n)
	return nil
}
