package packets

import (
	"fmt"
	"io"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/x/util"
)

const (
	cmdSubscribe uint8 = 0x80
	cmdSubAck    uint8 = 0x90

	// NOTE: the second nibble of the subscribe command is fixed to 0x2
	subscribeFlags uint8 = 0x02
)

// Subscription is a single topic filter in a Subscribe request. The
// subscription options are always sent as zero: QoS 0, no-local off,
// retain-as-published off and retained messages sent at subscribe time.
type Subscription struct {
	TopicFilter string
}

type Subscribe struct {
	PacketIdentifier uint16

	// Payload
	Subscriptions []Subscription
}

// SubAck answers a Subscribe with one reason per requested subscription.
type SubAck struct {
	PacketIdentifier uint16

	Reasons []mqtt.Reason
}

func (s *Subscribe) Type() mqtt.PacketType { return mqtt.Subscribe }

func (s *Subscribe) MarshalBinary() (b []byte, err error) {
	if s.PacketIdentifier == 0 {
		return nil, fmt.Errorf(
			"%w: subscribe: zero packet identifier",
			mqtt.ErrMalformedPacket,
		)
	} else if len(s.Subscriptions) == 0 {
		return nil, fmt.Errorf(
			"%w: subscribe: no subscriptions", mqtt.ErrMalformedPacket,
		)
	}
	var body encoder
	body.writeUint16(s.PacketIdentifier)
	if err = body.writeProperties(nil); err != nil {
		return nil, err
	}

	// Payload
	for _, sub := range s.Subscriptions {
		if err = body.writeUTF8(sub.TopicFilter); err != nil {
			return nil, fmt.Errorf("subscribe: topic filter: %w", err)
		}
		body.WriteByte(0)
	}
	return marshalFrame(cmdSubscribe|subscribeFlags, body.Bytes())
}

func (s *Subscribe) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, s)
}

func (s *SubAck) Type() mqtt.PacketType { return mqtt.SubAck }

// MarshalBinary serializes the SubAck; used for test fixtures and tooling.
func (s *SubAck) MarshalBinary() (b []byte, err error) {
	var body encoder
	body.writeUint16(s.PacketIdentifier)
	if err = body.writeProperties(nil); err != nil {
		return nil, err
	}
	for _, reason := range s.Reasons {
		body.WriteByte(reason.Code)
	}
	return marshalFrame(cmdSubAck, body.Bytes())
}

func (s *SubAck) WriteTo(w io.Writer) (n int64, err error) {
	return writePacket(w, s)
}

// Failed returns the first failing reason, if any.
func (s *SubAck) Failed() (mqtt.Reason, bool) {
	for _, reason := range s.Reasons {
		if reason.Failed() {
			return reason, true
		}
	}
	return mqtt.Reason{}, false
}

func (s *SubAck) decode(flags uint8, r *util.Reader) (err error) {
	if err = checkFlags(mqtt.SubAck, flags); err != nil {
		return err
	}
	if s.PacketIdentifier, err = r.ReadUint16(); err != nil {
		return err
	}
	err = readProperties(r, noProperties(mqtt.SubAck))
	if err != nil {
		return err
	} else if r.Remaining() == 0 {
		return fmt.Errorf("%w: suback: no reason codes", mqtt.ErrPacketShort)
	}
	codes, _ := r.ReadBytes(r.Remaining())
	s.Reasons = make([]mqtt.Reason, len(codes))
	for i, code := range codes {
		s.Reasons[i] = mqtt.LookupReason(mqtt.SubAck, code)
	}
	return checkConsumed(mqtt.SubAck, r)
}
