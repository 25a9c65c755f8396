package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

// Packet is the common interface of all MQTT control packets handled by this
// package.
type Packet interface {
	// Type returns the control packet type.
	Type() mqtt.PacketType
	// WriteTo serializes the packet and writes it to the given writer
	// returning the number of bytes written.
	WriteTo(w io.Writer) (n int64, err error)
	// MarshalBinary serializes the packet to a binary buffer including the
	// fixed header.
	MarshalBinary() (b []byte, err error)
}

// Decode decodes the first control packet in b and returns it together with
// the number of bytes the frame occupies. If b does not yet hold a complete
// frame, Decode returns mqtt.ErrNeedMoreBytes; the caller should retry once
// more bytes are available. Any other error means the stream is malformed
// and cannot be resynchronized.
//
// Only packets a client expects from a server are accepted: CONNACK,
// PUBLISH, SUBACK, PINGRESP and DISCONNECT.
func Decode(b []byte) (pkt Packet, n int, err error) {
	if len(b) < 1 {
		return nil, 0, mqtt.ErrNeedMoreBytes
	}
	header := b[0]
	remLength, N, err := util.DecodeVarint(b[1:])
	if err != nil {
		return nil, 0, err
	}
	n = 1 + N + int(remLength)
	if len(b) < n {
		return nil, 0, mqtt.ErrNeedMoreBytes
	}
	r := util.NewReader(b[1+N : n])
	flags := header & 0x0F

	switch t := mqtt.PacketType(header >> 4); t {
	case mqtt.ConnAck:
		connAck := &ConnAck{}
		err = connAck.decode(flags, r)
		pkt = connAck

	case mqtt.Publish:
		pub := &Publish{}
		err = pub.decode(flags, r)
		pkt = pub

	case mqtt.SubAck:
		subAck := &SubAck{}
		err = subAck.decode(flags, r)
		pkt = subAck

	case mqtt.PingResp:
		pingResp := &PingResp{}
		err = pingResp.decode(flags, r)
		pkt = pingResp

	case mqtt.Disconnect:
		disconnect := &Disconnect{}
		err = disconnect.decode(flags, r)
		pkt = disconnect

	default:
		return nil, n, fmt.Errorf("%w: %s", mqtt.ErrUnexpectedPacket, t)
	}
	if err != nil {
		return nil, n, err
	}
	return pkt, n, nil
}

func writePacket(w io.Writer, pkt Packet) (n int64, err error) {
	b, err := pkt.MarshalBinary()
	if err != nil {
		return 0, err
	}
	N, err := w.Write(b)
	n = int64(N)
	return n, err
}

// marshalFrame prefixes body with the fixed header.
func marshalFrame(header uint8, body []byte) ([]byte, error) {
	if uint64(len(body)) > uint64(mqtt.MaxVarint) {
		return nil, mqtt.ErrPacketLong
	}
	remLength := uint32(len(body))
	b := make([]byte, 1+util.VarintLen(remLength)+len(body))
	b[0] = header
	i := 1 + util.PutVarint(b[1:], remLength)
	copy(b[i:], body)
	return b, nil
}

// checkFlags verifies the reserved fixed header flags of packets which
// mandate them to be zero.
func checkFlags(t mqtt.PacketType, flags uint8) error {
	if flags != 0 {
		return fmt.Errorf("%w: %s: illegal header flags 0x%X",
			mqtt.ErrMalformedPacket, t, flags)
	}
	return nil
}

// checkConsumed verifies that the packet body was consumed in full.
func checkConsumed(t mqtt.PacketType, r *util.Reader) error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %s: %d trailing bytes",
			mqtt.ErrPacketLong, t, r.Remaining())
	}
	return nil
}

// encoder accumulates a packet body.
type encoder struct {
	bytes.Buffer
}

func (e *encoder) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.Write(b[:])
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.Write(b[:])
}

func (e *encoder) writeVarint(v uint32) error {
	b, err := util.EncodeVarint(v)
	if err != nil {
		return err
	}
	e.Write(b)
	return nil
}

func (e *encoder) writeUTF8(s string) error {
	b, err := util.EncodeUTF8(s)
	if err != nil {
		return err
	}
	e.Write(b)
	return nil
}

// writeProperties writes the property block props prefixed by its length.
// A nil props writes an empty block.
func (e *encoder) writeProperties(props *encoder) error {
	if props == nil {
		return e.WriteByte(0)
	}
	if err := e.writeVarint(uint32(props.Len())); err != nil {
		return err
	}
	_, err := e.Write(props.Bytes())
	return err
}
