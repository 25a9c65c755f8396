package mqtt

import (
	"fmt"
)

const (
	QoS0 QoS = 0
	QoS1 QoS = 1
	QoS2 QoS = 2

	// Version definitions
	MQTTv5 Version = 0x05

	// ProtocolName is the protocol name carried in the CONNECT variable
	// header.
	ProtocolName = "MQTT"

	// MaxVarint is the largest value representable by a variable byte
	// integer (4 bytes).
	MaxVarint uint32 = 268435455
	// MaxStringLength is the largest number of encoded bytes in a UTF-8
	// string.
	MaxStringLength = 0xFFFF
)

var (
	ErrPacketShort = fmt.Errorf("packet malformed: length too short")
	ErrPacketLong  = fmt.Errorf("packet malformed: length too long")

	ErrMalformedLength     = fmt.Errorf("packet malformed: variable byte integer exceeds 4 bytes")
	ErrMalformedPacket     = fmt.Errorf("packet malformed")
	ErrNeedMoreBytes       = fmt.Errorf("incomplete frame: need more bytes")
	ErrStringTooLong       = fmt.Errorf("UTF-8 string too long")
	ErrVarintTooLarge      = fmt.Errorf("value exceeds variable byte integer range")
	ErrUnsupportedProperty = fmt.Errorf("unsupported property")
	ErrUnexpectedPacket    = fmt.Errorf("unexpected packet type")
	ErrIllegalQoS          = fmt.Errorf("illegal QoS value (highest: 2)")

	ErrNotConnected       = fmt.Errorf("not connected")
	ErrReceivedDisconnect = fmt.Errorf("already disconnected: server sent DISCONNECT")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrPacketIDsExhausted = fmt.Errorf("ran out of packet identifiers")
)

type Version uint8

type QoS uint8

// Valid returns whether q is one of the three defined QoS levels.
func (q QoS) Valid() bool {
	return q <= QoS2
}

// PacketType is the control packet type carried in the upper nibble of the
// fixed header.
type PacketType uint8

const (
	Connect     PacketType = 1
	ConnAck     PacketType = 2
	Publish     PacketType = 3
	PubAck      PacketType = 4
	PubRec      PacketType = 5
	PubRel      PacketType = 6
	PubComp     PacketType = 7
	Subscribe   PacketType = 8
	SubAck      PacketType = 9
	Unsubscribe PacketType = 10
	UnsubAck    PacketType = 11
	PingReq     PacketType = 12
	PingResp    PacketType = 13
	Disconnect  PacketType = 14
	Auth        PacketType = 15
)

var packetTypeNames = [...]string{
	Connect:     "CONNECT",
	ConnAck:     "CONNACK",
	Publish:     "PUBLISH",
	PubAck:      "PUBACK",
	PubRec:      "PUBREC",
	PubRel:      "PUBREL",
	PubComp:     "PUBCOMP",
	Subscribe:   "SUBSCRIBE",
	SubAck:      "SUBACK",
	Unsubscribe: "UNSUBSCRIBE",
	UnsubAck:    "UNSUBACK",
	PingReq:     "PINGREQ",
	PingResp:    "PINGRESP",
	Disconnect:  "DISCONNECT",
	Auth:        "AUTH",
}

func (t PacketType) String() string {
	if t > 0 && int(t) < len(packetTypeNames) {
		return packetTypeNames[t]
	}
	return fmt.Sprintf("PacketType(%d)", uint8(t))
}
