package packets

import (
	"fmt"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

// Property identifiers recognized by the decoder.
const (
	propPayloadFormat        uint32 = 0x01
	propContentType          uint32 = 0x03
	propSessionExpiry        uint32 = 0x11
	propAssignedClientID     uint32 = 0x12
	propServerKeepAlive      uint32 = 0x13
	propTopicAliasMax        uint32 = 0x22
	propMaximumQoS           uint32 = 0x24
	propRetainAvailable      uint32 = 0x25
	propMaxPacketSize        uint32 = 0x27
	propWildcardSubAvailable uint32 = 0x28
	propSubIDAvailable       uint32 = 0x29
	propSharedSubAvailable   uint32 = 0x2A
)

// readProperties reads a property block and calls fn for every property
// identifier. fn must consume the property value from r and reject
// identifiers it does not recognize.
func readProperties(
	r *util.Reader,
	fn func(id uint32, r *util.Reader) error,
) error {
	propLen, err := r.ReadVarint()
	if err != nil {
		return err
	}
	props, err := r.Sub(int(propLen))
	if err != nil {
		return err
	}
	for props.Remaining() > 0 {
		id, err := props.ReadVarint()
		if err != nil {
			return err
		}
		if err := fn(id, props); err != nil {
			return err
		}
	}
	return nil
}

// noProperties rejects every property; used for packets this client does not
// expect to carry any.
func noProperties(t mqtt.PacketType) func(uint32, *util.Reader) error {
	return func(id uint32, _ *util.Reader) error {
		return unsupported(t, id)
	}
}

func unsupported(t mqtt.PacketType, id uint32) error {
	return fmt.Errorf("%w: %s: property ID 0x%02X",
		mqtt.ErrUnsupportedProperty, t, id)
}

// readBool reads a single byte boolean which must be 0 or 1.
func readBool(r *util.Reader) (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	} else if b > 1 {
		return false, fmt.Errorf(
			"%w: illegal boolean value: %d", mqtt.ErrMalformedPacket, b,
		)
	}
	return b == 1, nil
}

func (e *encoder) byteProperty(id uint32, v uint8) {
	_ = e.writeVarint(id)
	e.WriteByte(v)
}

func (e *encoder) boolProperty(id uint32, v bool) {
	var b uint8
	if v {
		b = 1
	}
	e.byteProperty(id, b)
}

func (e *encoder) uint16Property(id uint32, v uint16) {
	_ = e.writeVarint(id)
	e.writeUint16(v)
}

func (e *encoder) uint32Property(id uint32, v uint32) {
	_ = e.writeVarint(id)
	e.writeUint32(v)
}

func (e *encoder) stringProperty(id uint32, v string) error {
	_ = e.writeVarint(id)
	return e.writeUTF8(v)
}
