package client

import (
	"time"

	"github.com/alfrunes/mqttie/v5/packets"
	"github.com/alfrunes/mqttie/v5/transport"
	log "github.com/sirupsen/logrus"
)

// ClientOptions holds configuration options to initialize a new Client.
type ClientOptions struct {
	// ClientID is the initial client identity communicated with the
	// server. It is overwritten by the identifier the server assigns.
	ClientID *string
	// MaxMessagesPerSecond caps the rate of outbound packets. Unlimited
	// if unset or not positive.
	MaxMessagesPerSecond *float64

	// Registry selects the transport by URL scheme. Defaults to
	// transport.DefaultRegistry().
	Registry *transport.Registry
	// TransportConfig is passed to the transport dialer.
	TransportConfig *transport.Config

	// Logger defaults to the logrus standard logger.
	Logger log.FieldLogger
	// Metrics records session statistics when set.
	Metrics *Metrics

	// MessageHandler is called for every application message received.
	MessageHandler func(Message)
	// PacketHandler is called for every packet received, before it is
	// processed by the client.
	PacketHandler func(packets.Packet)
	// ConnectionLostHandler is called when the transport of an established
	// session ends, with nil if the stream ended cleanly.
	ConnectionLostHandler func(error)
}

// NewClientOptions initializes a new empty client options struct.
func NewClientOptions() *ClientOptions {
	return new(ClientOptions)
}

// SetClientID sets the client id communicated with the server.
func (opts *ClientOptions) SetClientID(id string) {
	opts.ClientID = &id
}

// SetMaxMessagesPerSecond limits the outbound packet rate.
func (opts *ClientOptions) SetMaxMessagesPerSecond(limit float64) {
	opts.MaxMessagesPerSecond = &limit
}

func (opts *ClientOptions) SetRegistry(registry *transport.Registry) {
	opts.Registry = registry
}

func (opts *ClientOptions) SetTransportConfig(cfg *transport.Config) {
	opts.TransportConfig = cfg
}

func (opts *ClientOptions) SetLogger(logger log.FieldLogger) {
	opts.Logger = logger
}

func (opts *ClientOptions) SetMetrics(metrics *Metrics) {
	opts.Metrics = metrics
}

// SetMessageHandler sets the callback receiving application messages. The
// callback runs on the transport's read goroutine and must not block.
func (opts *ClientOptions) SetMessageHandler(handler func(Message)) {
	opts.MessageHandler = handler
}

// SetPacketHandler sets a diagnostic callback receiving every decoded
// packet. The callback runs on the transport's read goroutine and must not
// block.
func (opts *ClientOptions) SetPacketHandler(handler func(packets.Packet)) {
	opts.PacketHandler = handler
}

// SetConnectionLostHandler sets the callback notified when the transport
// ends without a call to Disconnect.
func (opts *ClientOptions) SetConnectionLostHandler(handler func(error)) {
	opts.ConnectionLostHandler = handler
}

// ConnectOptions holds configuration options for making a connect request.
type ConnectOptions struct {
	// ClientID overrides the client identity for this connection. An
	// empty identifier asks the server to assign one.
	ClientID *string
	// KeepAlive is the number of seconds between keep alive pings,
	// defaults to 10. The server may override it.
	KeepAlive *uint16

	// Username MQTT credentials. (Defaults to none)
	Username *string
	// Password MQTT credentials. The password is always transmitted,
	// empty if unset.
	Password *string
}

// NewConnectOptions initializes a new connect options struct.
func NewConnectOptions() *ConnectOptions {
	return &ConnectOptions{}
}

func (opts *ConnectOptions) SetClientID(id string) {
	opts.ClientID = &id
}

// SetKeepAlive sets the keep alive to the given duration.
// NOTE: If the duration is longer than the maximum 18:12:15 (hr:min:sec),
// the value will be truncated to this maximum.
func (opts *ConnectOptions) SetKeepAlive(duration time.Duration) {
	secs := int64(duration.Seconds())
	if secs > int64(maxKeepAlive) {
		secs = int64(maxKeepAlive)
	} else if secs < 0 {
		secs = 0
	}
	secsUint16 := uint16(secs)
	opts.KeepAlive = &secsUint16
}

// SetUsername sets the username credential.
func (opts *ConnectOptions) SetUsername(username string) {
	opts.Username = &username
}

// SetPassword sets the password credential.
func (opts *ConnectOptions) SetPassword(password string) {
	opts.Password = &password
}

// PublishOptions contains configuration options for making a publish request.
type PublishOptions struct {
	// Retain determines whether the server should retain the application
	// message to be delivered to future subscribers.
	Retain *bool
	// ContentType describes the payload, e.g. a MIME type.
	ContentType *string
	// UTF8 marks the payload as UTF-8 encoded character data.
	UTF8 *bool
}

// NewPublishOptions initializes a new blank publish options struct.
func NewPublishOptions() *PublishOptions {
	return &PublishOptions{}
}

// SetRetain sets the retain flag to the given value.
func (opts *PublishOptions) SetRetain(retain bool) {
	opts.Retain = &retain
}

func (opts *PublishOptions) SetContentType(contentType string) {
	opts.ContentType = &contentType
}

// SetUTF8 sets the payload format indicator.
func (opts *PublishOptions) SetUTF8(utf8 bool) {
	opts.UTF8 = &utf8
}
