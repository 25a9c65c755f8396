package packets

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestPublishMarshal(t *testing.T) {
	testCases := []struct {
		Name string

		Publish  *Publish
		Expected []byte
		Error    error
	}{
		{
			Name: "QoS 0 with properties",

			Publish: &Publish{
				Topic:                  "a/b",
				PayloadFormatIndicator: uint8Ptr(PayloadFormatUTF8),
				ContentType:            "text/plain",
				Payload:                []byte("hi"),
			},
			Expected: concat(
				[]byte{0x30, 0x17, 0, 3, 'a', '/', 'b'},
				[]byte{0x0F, 0x01, 0x01, 0x03, 0, 10},
				[]byte("text/plain"),
				[]byte("hi"),
			),
		},
		{
			Name: "QoS 1 duplicate retained",

			Publish: &Publish{
				Duplicate:        true,
				Retain:           true,
				QoS:              mqtt.QoS1,
				Topic:            "t",
				PacketIdentifier: 7,
			},
			Expected: []byte{0x3B, 6, 0, 1, 't', 0, 7, 0},
		},
		{
			Name: "QoS 0 with packet identifier",

			Publish: &Publish{
				Topic:            "t",
				PacketIdentifier: 1,
			},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "QoS 2 without packet identifier",

			Publish: &Publish{
				Topic: "t",
				QoS:   mqtt.QoS2,
			},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Illegal QoS",

			Publish: &Publish{
				Topic:            "t",
				QoS:              3,
				PacketIdentifier: 1,
			},
			Error: mqtt.ErrIllegalQoS,
		},
		{
			Name: "Illegal payload format",

			Publish: &Publish{
				Topic:                  "t",
				PayloadFormatIndicator: uint8Ptr(2),
			},
			Error: mqtt.ErrMalformedPacket,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			b, err := testCase.Publish.MarshalBinary()
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.Expected, b)

			p, n, err := Decode(b)
			if assert.NoError(t, err) {
				assert.Equal(t, len(b), n)
				expected := *testCase.Publish
				if expected.Payload == nil {
					expected.Payload = []byte{}
				}
				assert.Equal(t, &expected, p)
			}
		})
	}
}

func TestPublishDecode(t *testing.T) {
	testCases := []struct {
		Name string

		Raw   []byte
		UTF8  bool
		Error error
	}{
		{
			Name: "Payload format absent",

			Raw: []byte{0x30, 5, 0, 1, 't', 0, 'x'},
		},
		{
			Name: "Payload format bytes",

			Raw: []byte{0x30, 7, 0, 1, 't', 2, 1, 0, 'x'},
		},
		{
			Name: "Payload format UTF-8",

			Raw:  []byte{0x30, 7, 0, 1, 't', 2, 1, 1, 'x'},
			UTF8: true,
		},
		{
			Name: "Payload format out of range",

			Raw:   []byte{0x30, 7, 0, 1, 't', 2, 1, 2, 'x'},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Message expiry interval is unsupported",

			Raw:   []byte{0x30, 10, 0, 1, 't', 5, 2, 0, 0, 0, 60, 'x'},
			Error: mqtt.ErrUnsupportedProperty,
		},
		{
			Name: "QoS 3",

			Raw:   []byte{0x36, 7, 0, 1, 't', 0, 1, 0, 'x'},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Zero packet identifier",

			Raw:   []byte{0x32, 7, 0, 1, 't', 0, 0, 0, 'x'},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Invalid UTF-8 topic",

			Raw:   []byte{0x30, 5, 0, 1, 0xFF, 0, 'x'},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Topic overruns frame",

			Raw:   []byte{0x30, 3, 0, 5, 't'},
			Error: mqtt.ErrPacketShort,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			p, _, err := Decode(testCase.Raw)
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				return
			}
			if assert.NoError(t, err) && assert.IsType(t, &Publish{}, p) {
				pub := p.(*Publish)
				assert.Equal(t, "t", pub.Topic)
				assert.Equal(t, []byte("x"), pub.Payload)
				assert.Equal(t, testCase.UTF8, pub.IsUTF8())
			}
		})
	}
}

func TestPublishPayloadDetached(t *testing.T) {
	raw := []byte{0x30, 5, 0, 1, 't', 0, 'x'}
	p, _, err := Decode(raw)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	raw[6] = 'y'
	assert.Equal(t, []byte("x"), p.(*Publish).Payload)
}

func TestSubscribeMarshal(t *testing.T) {
	testCases := []struct {
		Name string

		Subscribe *Subscribe
		Expected  []byte
		Error     error
	}{
		{
			Name: "Single topic filter",

			Subscribe: &Subscribe{
				PacketIdentifier: 1,
				Subscriptions:    []Subscription{{TopicFilter: "a/b"}},
			},
			Expected: []byte{0x82, 9, 0, 1, 0, 0, 3, 'a', '/', 'b', 0},
		},
		{
			Name: "Two topic filters",

			Subscribe: &Subscribe{
				PacketIdentifier: 0x0102,
				Subscriptions: []Subscription{
					{TopicFilter: "a"}, {TopicFilter: "#"},
				},
			},
			Expected: []byte{
				0x82, 11, 1, 2, 0,
				0, 1, 'a', 0,
				0, 1, '#', 0,
			},
		},
		{
			Name: "Zero packet identifier",

			Subscribe: &Subscribe{
				Subscriptions: []Subscription{{TopicFilter: "a/b"}},
			},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "No subscriptions",

			Subscribe: &Subscribe{PacketIdentifier: 1},
			Error:     mqtt.ErrMalformedPacket,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			n, err := testCase.Subscribe.WriteTo(buf)
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				assert.Zero(t, buf.Len())
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, int64(len(testCase.Expected)), n)
				assert.Equal(t, testCase.Expected, buf.Bytes())
			}
		})
	}
}

func TestSubAckDecode(t *testing.T) {
	testCases := []struct {
		Name string

		Raw      []byte
		Expected *SubAck
		Failed   bool
		Error    error
	}{
		{
			Name: "Granted",

			Raw: []byte{0x90, 4, 0, 5, 0, 0x00},
			Expected: &SubAck{
				PacketIdentifier: 5,
				Reasons: []mqtt.Reason{
					mqtt.LookupReason(mqtt.SubAck, 0x00),
				},
			},
		},
		{
			Name: "Second subscription refused",

			Raw: []byte{0x90, 5, 0, 5, 0, 0x00, 0x87},
			Expected: &SubAck{
				PacketIdentifier: 5,
				Reasons: []mqtt.Reason{
					mqtt.LookupReason(mqtt.SubAck, 0x00),
					mqtt.LookupReason(mqtt.SubAck, 0x87),
				},
			},
			Failed: true,
		},
		{
			Name: "No reason codes",

			Raw:   []byte{0x90, 3, 0, 5, 0},
			Error: mqtt.ErrPacketShort,
		},
		{
			Name: "Illegal header flags",

			Raw:   []byte{0x91, 4, 0, 5, 0, 0x00},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Reason string is unsupported",

			Raw:   []byte{0x90, 6, 0, 5, 2, 0x1F, 0, 0x00},
			Error: mqtt.ErrUnsupportedProperty,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			p, _, err := Decode(testCase.Raw)
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.Expected, p)
			reason, failed := p.(*SubAck).Failed()
			assert.Equal(t, testCase.Failed, failed)
			if failed {
				assert.Equal(t, uint8(0x87), reason.Code)
			}
		})
	}
}

func TestPing(t *testing.T) {
	b, err := (&PingReq{}).MarshalBinary()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0}, b)

	p, n, err := Decode([]byte{0xD0, 0})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, &PingResp{}, p)

	_, _, err = Decode([]byte{0xD0, 1, 0})
	assert.True(t, errors.Is(err, mqtt.ErrPacketLong), err)

	_, _, err = Decode([]byte{0xD1, 0})
	assert.True(t, errors.Is(err, mqtt.ErrMalformedPacket), err)
}

func TestDecodeFraming(t *testing.T) {
	connAck := []byte{0x20, 6, 0, 0, 3, 0x13, 0, 30}
	publish := concat(
		[]byte{0x30, 0x17, 0, 3, 'a', '/', 'b'},
		[]byte{0x0F, 0x01, 0x01, 0x03, 0, 10},
		[]byte("text/plain"),
		[]byte("hi"),
	)
	subAck := []byte{0x90, 4, 0, 5, 0, 0x00}

	for _, frame := range [][]byte{connAck, publish, subAck} {
		for i := 0; i < len(frame); i++ {
			_, n, err := Decode(frame[:i])
			assert.Equal(t, mqtt.ErrNeedMoreBytes, err, "prefix %d", i)
			assert.Zero(t, n)
		}
		stream := concat(frame, subAck)
		p, n, err := Decode(stream)
		assert.NoError(t, err)
		assert.NotNil(t, p)
		assert.Equal(t, len(frame), n)
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		Name string

		Raw   []byte
		Error error
	}{
		{
			Name: "Remaining length exceeds four bytes",

			Raw:   []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x01},
			Error: mqtt.ErrMalformedLength,
		},
		{
			Name: "Connect is not accepted by a client",

			Raw: []byte{
				0x10, 0x12,
				0, 4, 'M', 'Q', 'T', 'T', 5, 0x40, 0, 10, 0,
				0, 2, 'c', '1',
				0, 1, 'p',
			},
			Error: mqtt.ErrUnexpectedPacket,
		},
		{
			Name: "Reserved packet type",

			Raw:   []byte{0x00, 0},
			Error: mqtt.ErrUnexpectedPacket,
		},
		{
			Name: "Auth is not supported",

			Raw:   []byte{0xF0, 0},
			Error: mqtt.ErrUnexpectedPacket,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			p, _, err := Decode(testCase.Raw)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, testCase.Error), err)
		})
	}
}
