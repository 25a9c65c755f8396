package packets

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestConnectMarshal(t *testing.T) {
	testCases := []struct {
		Name string

		Connect  *Connect
		Expected []byte
		Error    error
	}{
		{
			Name: "Client id and password",

			Connect: &Connect{
				ClientID:  "c1",
				Password:  "p",
				KeepAlive: 10,
			},
			Expected: []byte{
				0x10, 0x12,
				0, 4, 'M', 'Q', 'T', 'T', 5, 0x40, 0, 10, 0,
				0, 2, 'c', '1',
				0, 1, 'p',
			},
		},
		{
			Name: "Username and empty client id",

			Connect: &Connect{
				Username:  "u",
				KeepAlive: 0x0102,
			},
			Expected: []byte{
				0x10, 0x12,
				0, 4, 'M', 'Q', 'T', 'T', 5, 0xC0, 1, 2, 0,
				0, 0,
				0, 1, 'u',
				0, 0,
			},
		},
		{
			Name: "Password too long",

			Connect: &Connect{
				ClientID: "c1",
				Password: strings.Repeat("a", mqtt.MaxStringLength+1),
			},
			Error: mqtt.ErrStringTooLong,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			b, err := testCase.Connect.MarshalBinary()
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, testCase.Expected, b)
			}

			buf := &bytes.Buffer{}
			n, err := testCase.Connect.WriteTo(buf)
			assert.NoError(t, err)
			assert.Equal(t, int64(len(testCase.Expected)), n)
			assert.Equal(t, testCase.Expected, buf.Bytes())

			_, err = testCase.Connect.WriteTo(
				brokenWriter{err: errBrokenPipe},
			)
			assert.EqualError(t, err, errBrokenPipe.Error())
		})
	}
}

func TestConnAckDecode(t *testing.T) {
	testCases := []struct {
		Name string

		Raw      []byte
		Expected *ConnAck
		Error    error
	}{
		{
			Name: "Success without properties",

			Raw: []byte{0x20, 3, 0, 0, 0},
			Expected: &ConnAck{
				Reason: mqtt.LookupReason(mqtt.ConnAck, 0),
			},
		},
		{
			Name: "Property length omitted",

			Raw: []byte{0x20, 2, 1, 0},
			Expected: &ConnAck{
				SessionPresent: true,
				Reason:         mqtt.LookupReason(mqtt.ConnAck, 0),
			},
		},
		{
			Name: "Not authorized",

			Raw: []byte{0x20, 3, 0, 0x87, 0},
			Expected: &ConnAck{
				Reason: mqtt.Reason{
					Code:        0x87,
					Name:        "Not authorized",
					Description: "The Client is not authorized to connect.",
				},
			},
		},
		{
			Name: "Server keep alive and assigned id",

			Raw: []byte{
				0x20, 12, 0, 0, 9,
				0x13, 0, 30,
				0x12, 0, 3, 'a', 'b', 'c',
			},
			Expected: &ConnAck{
				Reason:                   mqtt.LookupReason(mqtt.ConnAck, 0),
				ServerKeepAlive:          uint16Ptr(30),
				AssignedClientIdentifier: "abc",
			},
		},
		{
			Name: "Unknown reason code",

			Raw: []byte{0x20, 3, 0, 0x8B, 0},
			Expected: &ConnAck{
				Reason: mqtt.Reason{Code: 0x8B},
			},
		},
		{
			Name: "Illegal acknowledge flags",

			Raw:   []byte{0x20, 3, 0x02, 0, 0},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Illegal header flags",

			Raw:   []byte{0x21, 3, 0, 0, 0},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Unsupported property",

			Raw:   []byte{0x20, 6, 0, 0, 3, 0x1F, 0, 0},
			Error: mqtt.ErrUnsupportedProperty,
		},
		{
			Name: "Maximum QoS out of range",

			Raw:   []byte{0x20, 5, 0, 0, 2, 0x24, 2},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Boolean out of range",

			Raw:   []byte{0x20, 5, 0, 0, 2, 0x25, 3},
			Error: mqtt.ErrMalformedPacket,
		},
		{
			Name: "Property overruns block",

			Raw:   []byte{0x20, 5, 0, 0, 2, 0x13, 0},
			Error: mqtt.ErrPacketShort,
		},
		{
			Name: "Trailing bytes",

			Raw:   []byte{0x20, 4, 0, 0, 0, 0xFF},
			Error: mqtt.ErrPacketLong,
		},
		{
			Name: "Truncated body",

			Raw:   []byte{0x20, 1, 0},
			Error: mqtt.ErrPacketShort,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			p, n, err := Decode(testCase.Raw)
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				assert.Nil(t, p)
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, len(testCase.Raw), n)
				assert.Equal(t, testCase.Expected, p)
			}
		})
	}
}

func TestConnAckAllProperties(t *testing.T) {
	connAck := &ConnAck{
		Reason:                           mqtt.LookupReason(mqtt.ConnAck, 0),
		SessionPresent:                   true,
		SessionExpiryInterval:            uint32Ptr(3600),
		MaximumQoS:                       uint8Ptr(1),
		RetainAvailable:                  boolPtr(true),
		MaximumPacketSize:                uint32Ptr(1 << 20),
		TopicAliasMaximum:                uint16Ptr(8),
		WildcardSubscriptionAvailable:    boolPtr(false),
		SubscriptionIdentifiersAvailable: boolPtr(true),
		SharedSubscriptionAvailable:      boolPtr(false),
		ServerKeepAlive:                  uint16Ptr(120),
		AssignedClientIdentifier:         "auto-1234",
	}
	b, err := connAck.MarshalBinary()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	p, n, err := Decode(b)
	assert.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, connAck, p)
	assert.Equal(t, mqtt.ConnAck, p.Type())
}

func TestDisconnect(t *testing.T) {
	d := &Disconnect{}
	b, err := d.MarshalBinary()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 1, 0}, b)

	testCases := []struct {
		Name string

		Raw    []byte
		Reason mqtt.Reason
		Error  error
	}{
		{
			Name: "Empty body",

			Raw:    []byte{0xE0, 0},
			Reason: mqtt.LookupReason(mqtt.Disconnect, DisconnectNormal),
		},
		{
			Name: "Session taken over",

			Raw:    []byte{0xE0, 1, 0x8E},
			Reason: mqtt.LookupReason(mqtt.Disconnect, 0x8E),
		},
		{
			Name: "Empty property block",

			Raw:    []byte{0xE0, 2, 0x8B, 0},
			Reason: mqtt.LookupReason(mqtt.Disconnect, 0x8B),
		},
		{
			Name: "Unsupported property",

			Raw:   []byte{0xE0, 4, 0x8B, 2, 0x1F, 0},
			Error: mqtt.ErrUnsupportedProperty,
		},
		{
			Name: "Illegal header flags",

			Raw:   []byte{0xE2, 0},
			Error: mqtt.ErrMalformedPacket,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			p, _, err := Decode(testCase.Raw)
			if testCase.Error != nil {
				assert.True(t, errors.Is(err, testCase.Error), err)
				return
			}
			if assert.NoError(t, err) && assert.IsType(t, d, p) {
				assert.Equal(t, testCase.Reason, p.(*Disconnect).Reason)
			}
		})
	}
}
