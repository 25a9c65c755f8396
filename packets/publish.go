package packets

import (
	"fmt"
	"io"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

const (
	cmdPublish uint8 = 0x30

	// Flags
	PublishFlagDuplicate uint8 = 0x08
	PublishFlagRetain    uint8 = 0x01
	publishMaskQoS       uint8 = 0x06

	// Payload format indicators
	PayloadFormatBytes uint8 = 0
	PayloadFormatUTF8  uint8 = 1
)

// Publish carries an application message. PacketIdentifier must be zero for
// QoS 0 and non-zero for QoS 1 and 2.
type Publish struct {
	// Flags
	Duplicate bool
	QoS       mqtt.QoS
	Retain    bool

	// Variable header
	Topic            string
	PacketIdentifier uint16

	// Properties
	PayloadFormatIndicator *uint8
	ContentType            string

	Payload []byte
}

func (p *Publish) Type() mqtt.PacketType { return mqtt.Publish }

// IsUTF8 returns true if the payload format indicator marks the payload as
// UTF-8 encoded character data.
func (p *Publish) IsUTF8() bool {
	return p.PayloadFormatIndicator != nil &&
		*p.PayloadFormatIndicator == PayloadFormatUTF8
}

func (p *Publish) validate() error {
	if !p.QoS.Valid() {
		return mqtt.ErrIllegalQoS
	}
	if p.QoS == mqtt.QoS0 && p.PacketIdentifier != 0 {
		return fmt.Errorf(
			"%w: publish: QoS 0 must not carry a packet identifier",
			mqtt.ErrMalformedPacket,
		)
	} else if p.QoS > mqtt.QoS0 && p.PacketIdentifier == 0 {
		return fmt.Errorf(
			"%w: publish: QoS %d requires a packet identifier",
			mqtt.ErrMalformedPacket, p.QoS,
		)
	}
	if p.PayloadFormatIndicator != nil &&
		*p.PayloadFormatIndicator > PayloadFormatUTF8 {
		return fmt.Errorf("%w: publish: payload format indicator %d",
			mqtt.ErrMalformedPacket, *p.PayloadFormatIndicator)
	}
	return nil
}

func (p *Publish) MarshalBinary() (b []byte, err error) {
	if err = p.validate(); err != nil {
		return nil, err
	}
	fixedHeader := cmdPublish | uint8(p.QoS%4)<<1
	if p.Duplicate {
		fixedHeader |= PublishFlagDuplicate
	}
	if p.Retain {
		fixedHeader |= PublishFlagRetain
	}

	var body, props encoder
	// Variable header
	if err = body.writeUTF8(p.Topic); err != nil {
		return nil, fmt.Errorf("publish: topic: %w", err)
	}
	if p.QoS > mqtt.QoS0 {
		body.writeUint16(p.PacketIdentifier)
	}
	if p.PayloadFormatIndicator != nil {
		props.byteProperty(propPayloadFormat, *p.PayloadFormatIndicator)
	}
	if p.ContentType != "" {
		err = props.stringProperty(propContentType, p.ContentType)
		if err != nil {
			return nil, fmt.Errorf("publish: content type: %w", err)
		}
	}
	if err = body.writeProperties(&props); err != nil {
		return nil, err
	}

	// Payload
	body.Write(p.Payload)
	return marshalFrame(fixedHeader, body.Bytes())
}

func (p *Publish) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, p)
}

func (p *Publish) readProperty(id uint32, r *util.Reader) (err error) {
	switch id {
	case propPayloadFormat:
		var v uint8
		v, err = r.ReadUint8()
		if err == nil && v > PayloadFormatUTF8 {
			return fmt.Errorf("%w: publish: payload format indicator %d",
				mqtt.ErrMalformedPacket, v)
		}
		p.PayloadFormatIndicator = &v

	case propContentType:
		p.ContentType, err = r.ReadUTF8()

	default:
		return unsupported(mqtt.Publish, id)
	}
	return err
}

func (p *Publish) decode(flags uint8, r *util.Reader) (err error) {
	p.Duplicate = flags&PublishFlagDuplicate > 0
	p.Retain = flags&PublishFlagRetain > 0
	p.QoS = mqtt.QoS((flags & publishMaskQoS) >> 1)
	if !p.QoS.Valid() {
		return fmt.Errorf("%w: publish: %v", mqtt.ErrMalformedPacket,
			mqtt.ErrIllegalQoS)
	}

	if p.Topic, err = r.ReadUTF8(); err != nil {
		return err
	}
	if p.QoS > mqtt.QoS0 {
		if p.PacketIdentifier, err = r.ReadUint16(); err != nil {
			return err
		} else if p.PacketIdentifier == 0 {
			return fmt.Errorf("%w: publish: zero packet identifier",
				mqtt.ErrMalformedPacket)
		}
	}
	if err = readProperties(r, p.readProperty); err != nil {
		return err
	}
	payload, _ := r.ReadBytes(r.Remaining())
	// Detach from the read buffer which may be reused.
	p.Payload = append([]byte{}, payload...)
	return nil
}
