package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/packets"
	"github.com/alfrunes/mqttie/v5/transport"
	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	maxKeepAlive = ^uint16(0)

	// DefaultKeepAlive is the keep alive requested if none is given.
	DefaultKeepAlive = 10 * time.Second
)

var (
	ErrConnectPending = fmt.Errorf("a connect request is already pending")
)

// SubscribeError is returned by Subscribe when the server refuses the
// subscription.
type SubscribeError struct {
	TopicFilter string
	Reason      mqtt.Reason
}

func (err *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %q: %s", err.TopicFilter, err.Reason.Error())
}

func (err *SubscribeError) Unwrap() error {
	return err.Reason
}

// Message is an application message received from the server.
type Message struct {
	Topic   string
	Payload []byte
	// UTF8 is true if the sender marked the payload as UTF-8 encoded
	// character data.
	UTF8        bool
	ContentType string
	Retain      bool
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// Client is an MQTT v5 session with a single server. The transport is
// created on Connect and dropped when the stream ends or on Disconnect; the
// same Client can connect again afterwards.
//
// A Client expects a single logical caller: Connect, Subscribe, Publish and
// Disconnect may be called from any goroutine and do not race, but the
// order in which concurrent calls reach the wire is unspecified.
type Client struct {
	hostname string
	port     int
	scheme   string

	registry        *transport.Registry
	transportConfig *transport.Config
	log             log.FieldLogger
	metrics         *Metrics
	onMessage       func(Message)
	onPacket        func(packets.Packet)
	onLost          func(error)

	state *fsm.FSM

	// mu guards the fields below.
	mu                 sync.Mutex
	conn               transport.Connection
	clientID           string
	keepAlive          time.Duration
	connAck            *packets.ConnAck
	receivedDisconnect bool
	pendingConnect     *pendingRequest
	pendingSubscribes  map[uint16]*pendingRequest
	packetIDs          *packetIDs
	keepAliveStop      chan struct{}

	// sendMu serializes writes to the transport.
	sendMu  sync.Mutex
	limiter *rate.Limiter
}

// NewClient initializes a new MQTT client for the server at hostname:port
// reached through the transport registered for scheme ("mqtts" or "wss"
// with the default registry). The user MUST call Connect before using the
// rest of the client API.
func NewClient(
	hostname string,
	port int,
	scheme string,
	options ...*ClientOptions,
) *Client {
	client := &Client{
		hostname: hostname,
		port:     port,
		scheme:   scheme,

		registry:  transport.DefaultRegistry(),
		log:       log.StandardLogger(),
		keepAlive: DefaultKeepAlive,

		pendingSubscribes: make(map[uint16]*pendingRequest),
		packetIDs:         newPacketIDs(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if opt.ClientID != nil {
			client.clientID = *opt.ClientID
		}
		if opt.MaxMessagesPerSecond != nil && *opt.MaxMessagesPerSecond > 0 {
			interval := time.Duration(
				float64(time.Second) / *opt.MaxMessagesPerSecond,
			)
			client.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
		if opt.Registry != nil {
			client.registry = opt.Registry
		}
		if opt.TransportConfig != nil {
			client.transportConfig = opt.TransportConfig
		}
		if opt.Logger != nil {
			client.log = opt.Logger
		}
		if opt.Metrics != nil {
			client.metrics = opt.Metrics
		}
		if opt.MessageHandler != nil {
			client.onMessage = opt.MessageHandler
		}
		if opt.PacketHandler != nil {
			client.onPacket = opt.PacketHandler
		}
		if opt.ConnectionLostHandler != nil {
			client.onLost = opt.ConnectionLostHandler
		}
	}
	client.state = newStateMachine(client.log, client.metrics)
	return client
}

// ClientID returns the client identifier, as assigned by the server if it
// did so.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// KeepAlive returns the keep alive interval, as negotiated with the server
// once connected.
func (c *Client) KeepAlive() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAlive
}

// ServerProperties returns the last CONNACK accepting the connection, or nil
// if the client never connected.
func (c *Client) ServerProperties() *packets.ConnAck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connAck
}

// Connect establishes the transport if there is none and sends a connect
// request. It blocks until the server acknowledges the request, the
// transport ends or ctx is done. A refusal from the server is returned as
// an mqtt.Reason.
func (c *Client) Connect(ctx context.Context, options ...*ConnectOptions) error {
	c.mu.Lock()
	if c.pendingConnect != nil {
		c.mu.Unlock()
		return ErrConnectPending
	}
	connect := &packets.Connect{
		ClientID:  c.clientID,
		KeepAlive: uint16(c.keepAlive / time.Second),
	}
	c.mu.Unlock()
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if opt.ClientID != nil {
			connect.ClientID = *opt.ClientID
		}
		if opt.KeepAlive != nil {
			connect.KeepAlive = *opt.KeepAlive
		}
		if opt.Username != nil {
			connect.Username = *opt.Username
		}
		if opt.Password != nil {
			connect.Password = *opt.Password
		}
	}

	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}
	pending := newPendingRequest(conn)
	c.mu.Lock()
	if c.pendingConnect != nil {
		c.mu.Unlock()
		return ErrConnectPending
	}
	c.pendingConnect = pending
	c.clientID = connect.ClientID
	c.keepAlive = time.Duration(connect.KeepAlive) * time.Second
	c.mu.Unlock()

	c.transition(eventConnect)
	if err = c.send(ctx, connect); err != nil {
		if c.dropPendingConnect(pending) {
			c.transition(eventReject)
		}
		return err
	}
	select {
	case err = <-pending.result:
		return err

	case <-ctx.Done():
		if c.dropPendingConnect(pending) {
			c.transition(eventReject)
		}
		return ctx.Err()
	}
}

// Disconnect sends a disconnect request and drops the transport; the server
// is expected to close the stream.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.send(ctx, &packets.Disconnect{
		Reason: mqtt.LookupReason(mqtt.Disconnect, packets.DisconnectNormal),
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = nil
	c.stopKeepAlive()
	pending := c.pendingConnect
	c.pendingConnect = nil
	c.mu.Unlock()

	c.transition(eventClose)
	if pending != nil {
		pending.resolve(mqtt.ErrConnectionClosed)
	}
	return nil
}

// Close closes the transport without notifying the server.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Publish sends an application message with QoS 0. It returns once the
// message is written to the transport.
func (c *Client) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
	options ...*PublishOptions,
) error {
	pub := &packets.Publish{
		QoS:     mqtt.QoS0,
		Topic:   topic,
		Payload: payload,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if opt.Retain != nil {
			pub.Retain = *opt.Retain
		}
		if opt.ContentType != nil {
			pub.ContentType = *opt.ContentType
		}
		if opt.UTF8 != nil {
			format := packets.PayloadFormatBytes
			if *opt.UTF8 {
				format = packets.PayloadFormatUTF8
			}
			pub.PayloadFormatIndicator = &format
		}
	}
	return c.send(ctx, pub)
}

// Subscribe subscribes to topicFilter and blocks until the server
// acknowledges the request, the transport ends or ctx is done. A refusal
// from the server is returned as a *SubscribeError.
//
// If ctx is done first, the packet identifier stays reserved until the
// acknowledgement arrives or the transport ends.
func (c *Client) Subscribe(ctx context.Context, topicFilter string) error {
	c.mu.Lock()
	if c.receivedDisconnect {
		c.mu.Unlock()
		return mqtt.ErrReceivedDisconnect
	} else if c.conn == nil {
		c.mu.Unlock()
		return mqtt.ErrNotConnected
	}
	packetID, err := c.packetIDs.acquire()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	pending := newPendingRequest(c.conn)
	pending.topicFilter = topicFilter
	c.pendingSubscribes[packetID] = pending
	c.mu.Unlock()

	err = c.send(ctx, &packets.Subscribe{
		PacketIdentifier: packetID,
		Subscriptions:    []packets.Subscription{{TopicFilter: topicFilter}},
	})
	if err != nil {
		c.mu.Lock()
		if c.pendingSubscribes[packetID] == pending {
			delete(c.pendingSubscribes, packetID)
			c.packetIDs.release(packetID)
		}
		c.mu.Unlock()
		return err
	}
	select {
	case err = <-pending.result:
		return err

	case <-ctx.Done():
		return ctx.Err()
	}
}
