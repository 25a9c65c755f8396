package packets

import (
	"fmt"
	"io"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

const (
	cmdConnect    uint8 = 0x10
	cmdConnAck    uint8 = 0x20
	cmdDisconnect uint8 = 0xE0

	// Flags
	connectFlagUsername       uint8 = 0x80
	connectFlagPassword       uint8 = 0x40
	connAckFlagSessionPresent uint8 = 0x01

	// DisconnectNormal is the reason code for a normal disconnection.
	DisconnectNormal uint8 = 0x00
)

// Connect contains a structural representation of a connect packet as sent
// by this client. The password flag is always set, so Password is always
// transmitted (possibly as an empty string); the username is only
// transmitted when non-empty.
type Connect struct {
	// ClientID stores the client identifier presented to the server. An
	// empty identifier asks the server to assign one, which is returned
	// in ConnAck.AssignedClientIdentifier.
	ClientID string
	// Username holds the optional username credential.
	Username string
	// Password stores the password credential.
	Password string
	// KeepAlive contains the duration in seconds for the client to remain
	// inactive before getting disconnected.
	KeepAlive uint16
}

// ConnAck is the server's response to a Connect. Optional properties are
// nil (or empty) when absent from the packet.
type ConnAck struct {
	Reason         mqtt.Reason
	SessionPresent bool

	SessionExpiryInterval            *uint32
	MaximumQoS                       *uint8
	RetainAvailable                  *bool
	MaximumPacketSize                *uint32
	TopicAliasMaximum                *uint16
	WildcardSubscriptionAvailable    *bool
	SubscriptionIdentifiersAvailable *bool
	SharedSubscriptionAvailable      *bool
	ServerKeepAlive                  *uint16
	AssignedClientIdentifier         string
}

// Disconnect notifies the peer that the connection is about to close.
type Disconnect struct {
	Reason mqtt.Reason
}

func (c *Connect) Type() mqtt.PacketType { return mqtt.Connect }

func (c *Connect) MarshalBinary() (b []byte, err error) {
	var body encoder
	// Variable header
	if err = body.writeUTF8(mqtt.ProtocolName); err != nil {
		return nil, err
	}
	body.WriteByte(uint8(mqtt.MQTTv5))
	flags := connectFlagPassword
	if c.Username != "" {
		flags |= connectFlagUsername
	}
	body.WriteByte(flags)
	body.writeUint16(c.KeepAlive)
	if err = body.writeProperties(nil); err != nil {
		return nil, err
	}

	// Payload
	if err = body.writeUTF8(c.ClientID); err != nil {
		return nil, fmt.Errorf("connect: client id: %w", err)
	}
	if c.Username != "" {
		if err = body.writeUTF8(c.Username); err != nil {
			return nil, fmt.Errorf("connect: username: %w", err)
		}
	}
	if err = body.writeUTF8(c.Password); err != nil {
		return nil, fmt.Errorf("connect: password: %w", err)
	}
	return marshalFrame(cmdConnect, body.Bytes())
}

// WriteTo marshals and writes the connect request to the stream w.
func (c *Connect) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, c)
}

func (c *ConnAck) Type() mqtt.PacketType { return mqtt.ConnAck }

// MarshalBinary serializes the ConnAck including all properties that are
// set. The client never sends a ConnAck; this is used for test fixtures and
// tooling.
func (c *ConnAck) MarshalBinary() (b []byte, err error) {
	var body, props encoder
	var flags uint8
	if c.SessionPresent {
		flags |= connAckFlagSessionPresent
	}
	body.WriteByte(flags)
	body.WriteByte(c.Reason.Code)

	if c.SessionExpiryInterval != nil {
		props.uint32Property(propSessionExpiry, *c.SessionExpiryInterval)
	}
	if c.MaximumQoS != nil {
		props.byteProperty(propMaximumQoS, *c.MaximumQoS)
	}
	if c.RetainAvailable != nil {
		props.boolProperty(propRetainAvailable, *c.RetainAvailable)
	}
	if c.MaximumPacketSize != nil {
		props.uint32Property(propMaxPacketSize, *c.MaximumPacketSize)
	}
	if c.TopicAliasMaximum != nil {
		props.uint16Property(propTopicAliasMax, *c.TopicAliasMaximum)
	}
	if c.WildcardSubscriptionAvailable != nil {
		props.boolProperty(
			propWildcardSubAvailable, *c.WildcardSubscriptionAvailable,
		)
	}
	if c.SubscriptionIdentifiersAvailable != nil {
		props.boolProperty(
			propSubIDAvailable, *c.SubscriptionIdentifiersAvailable,
		)
	}
	if c.SharedSubscriptionAvailable != nil {
		props.boolProperty(
			propSharedSubAvailable, *c.SharedSubscriptionAvailable,
		)
	}
	if c.ServerKeepAlive != nil {
		props.uint16Property(propServerKeepAlive, *c.ServerKeepAlive)
	}
	if c.AssignedClientIdentifier != "" {
		err = props.stringProperty(
			propAssignedClientID, c.AssignedClientIdentifier,
		)
		if err != nil {
			return nil, err
		}
	}
	if err = body.writeProperties(&props); err != nil {
		return nil, err
	}
	return marshalFrame(cmdConnAck, body.Bytes())
}

// WriteTo writes the marshaled ConnAck packet to the stream w.
func (c *ConnAck) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, c)
}

func (c *ConnAck) readProperty(id uint32, r *util.Reader) (err error) {
	switch id {
	case propSessionExpiry:
		var v uint32
		v, err = r.ReadUint32()
		c.SessionExpiryInterval = &v

	case propMaximumQoS:
		var v uint8
		v, err = r.ReadUint8()
		if err == nil && v > 1 {
			return fmt.Errorf("%w: connack: maximum QoS %d",
				mqtt.ErrMalformedPacket, v)
		}
		c.MaximumQoS = &v

	case propRetainAvailable:
		var v bool
		v, err = readBool(r)
		c.RetainAvailable = &v

	case propMaxPacketSize:
		var v uint32
		v, err = r.ReadUint32()
		c.MaximumPacketSize = &v

	case propTopicAliasMax:
		var v uint16
		v, err = r.ReadUint16()
		c.TopicAliasMaximum = &v

	case propWildcardSubAvailable:
		var v bool
		v, err = readBool(r)
		c.WildcardSubscriptionAvailable = &v

	case propSubIDAvailable:
		var v bool
		v, err = readBool(r)
		c.SubscriptionIdentifiersAvailable = &v

	case propSharedSubAvailable:
		var v bool
		v, err = readBool(r)
		c.SharedSubscriptionAvailable = &v

	case propServerKeepAlive:
		var v uint16
		v, err = r.ReadUint16()
		c.ServerKeepAlive = &v

	case propAssignedClientID:
		c.AssignedClientIdentifier, err = r.ReadUTF8()

	default:
		return unsupported(mqtt.ConnAck, id)
	}
	return err
}

func (c *ConnAck) decode(flags uint8, r *util.Reader) error {
	if err := checkFlags(mqtt.ConnAck, flags); err != nil {
		return err
	}
	ackFlags, err := r.ReadUint8()
	if err != nil {
		return err
	} else if ackFlags&^connAckFlagSessionPresent != 0 {
		return fmt.Errorf("%w: connack: illegal flags: %02X",
			mqtt.ErrMalformedPacket, ackFlags)
	}
	c.SessionPresent = ackFlags&connAckFlagSessionPresent > 0
	code, err := r.ReadUint8()
	if err != nil {
		return err
	}
	c.Reason = mqtt.LookupReason(mqtt.ConnAck, code)
	// NOTE: some servers omit the property length on an empty block.
	if r.Remaining() > 0 {
		if err = readProperties(r, c.readProperty); err != nil {
			return err
		}
	}
	return checkConsumed(mqtt.ConnAck, r)
}

func (d *Disconnect) Type() mqtt.PacketType { return mqtt.Disconnect }

// MarshalBinary serializes the disconnect request. Properties are never
// emitted.
func (d *Disconnect) MarshalBinary() (b []byte, err error) {
	return marshalFrame(cmdDisconnect, []byte{d.Reason.Code})
}

// WriteTo writes the marshaled Disconnect request to stream.
func (d *Disconnect) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, d)
}

func (d *Disconnect) decode(flags uint8, r *util.Reader) error {
	if err := checkFlags(mqtt.Disconnect, flags); err != nil {
		return err
	}
	code := DisconnectNormal
	if r.Remaining() > 0 {
		var err error
		code, err = r.ReadUint8()
		if err != nil {
			return err
		}
	}
	d.Reason = mqtt.LookupReason(mqtt.Disconnect, code)
	if r.Remaining() > 0 {
		err := readProperties(r, noProperties(mqtt.Disconnect))
		if err != nil {
			return err
		}
	}
	return checkConsumed(mqtt.Disconnect, r)
}
