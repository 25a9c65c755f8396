package mqtt

import (
	"fmt"
)

// Reason describes a reason code received in an acknowledgement or
// disconnect packet. Codes below 0x80 indicate success, codes from 0x80 and
// up indicate failure. Name and Description are empty for codes the client
// does not know.
type Reason struct {
	Code        uint8
	Name        string
	Description string
}

// Failed returns true if the reason code signals a failure.
func (r Reason) Failed() bool {
	return r.Code >= 0x80
}

func (r Reason) Error() string {
	if r.Name == "" {
		return fmt.Sprintf("reason code 0x%02X", r.Code)
	}
	if r.Description == "" {
		return fmt.Sprintf("%s (0x%02X)", r.Name, r.Code)
	}
	return fmt.Sprintf("%s (0x%02X): %s", r.Name, r.Code, r.Description)
}

type reasonText struct {
	name        string
	description string
}

var connAckReasons = map[uint8]reasonText{
	0x00: {"Success", "The Connection is accepted."},
	0x80: {"Unspecified error", "The Server does not wish to reveal the reason for the failure."},
	0x81: {"Malformed Packet", "Data within the CONNECT packet could not be correctly parsed."},
	0x82: {"Protocol Error", "Data in the CONNECT packet does not conform to the specification."},
	0x83: {"Implementation specific error", "The CONNECT is valid but is not accepted by this Server."},
	0x84: {"Unsupported Protocol Version", "The Server does not support the requested protocol version."},
	0x85: {"Client Identifier not valid", "The Client Identifier is valid but not allowed by this Server."},
	0x86: {"Bad User Name or Password", "The Server does not accept the User Name or Password."},
	0x87: {"Not authorized", "The Client is not authorized to connect."},
	0x88: {"Server unavailable", "The MQTT Server is not available."},
	0x89: {"Server busy", "The Server is busy. Try again later."},
	0x8A: {"Banned", "This Client has been banned by administrative action."},
	0x8C: {"Bad authentication method", "The authentication method is not supported."},
	0x90: {"Topic Name invalid", "The Will Topic Name is not malformed, but is not accepted."},
	0x95: {"Packet too large", "The CONNECT packet exceeded the maximum permissible size."},
	0x97: {"Quota exceeded", "An implementation or administrative imposed limit has been exceeded."},
	0x99: {"Payload format invalid", "The Will Payload does not match the specified Payload Format Indicator."},
	0x9A: {"Retain not supported", "The Server does not support retained messages."},
	0x9B: {"QoS not supported", "The Server does not support the QoS set in Will QoS."},
	0x9C: {"Use another server", "The Client should temporarily use another server."},
	0x9D: {"Server moved", "The Client should permanently use another server."},
	0x9F: {"Connection rate exceeded", "The connection rate limit has been exceeded."},
}

var subAckReasons = map[uint8]reasonText{
	0x00: {"Granted QoS 0", "The subscription is accepted and the maximum QoS sent will be QoS 0."},
	0x01: {"Granted QoS 1", "The subscription is accepted and the maximum QoS sent will be QoS 1."},
	0x02: {"Granted QoS 2", "The subscription is accepted and any received QoS will be sent."},
	0x80: {"Unspecified error", "The subscription is not accepted and the Server does not wish to reveal the reason."},
	0x83: {"Implementation specific error", "The SUBSCRIBE is valid but the Server does not accept it."},
	0x87: {"Not authorized", "The Client is not authorized to make this subscription."},
	0x8F: {"Topic Filter invalid", "The Topic Filter is correctly formed but is not allowed for this Client."},
	0x91: {"Packet Identifier in use", "The specified Packet Identifier is already in use."},
	0x97: {"Quota exceeded", "An implementation or administrative imposed limit has been exceeded."},
	0x9E: {"Shared Subscriptions not supported", "The Server does not support Shared Subscriptions for this Client."},
	0xA1: {"Subscription Identifiers not supported", "The Server does not support Subscription Identifiers."},
	0xA2: {"Wildcard Subscriptions not supported", "The Server does not support Wildcard Subscriptions."},
}

var disconnectReasons = map[uint8]reasonText{
	0x00: {"Normal disconnection", "Close the connection normally."},
	0x04: {"Disconnect with Will Message", "The Client wishes to disconnect but requires that the Server also publishes its Will Message."},
	0x80: {"Unspecified error", "The Connection is closed but the sender does not wish to reveal the reason."},
	0x81: {"Malformed Packet", "The received packet does not conform to this specification."},
	0x82: {"Protocol Error", "An unexpected or out of order packet was received."},
	0x83: {"Implementation specific error", "The packet received is valid but cannot be processed by this implementation."},
	0x87: {"Not authorized", "The request is not authorized."},
	0x89: {"Server busy", "The Server is busy and cannot continue processing requests from this Client."},
	0x8B: {"Server shutting down", "The Server is shutting down."},
	0x8D: {"Keep Alive timeout", "The Connection is closed because no packet has been received for 1.5 times the Keepalive time."},
	0x8E: {"Session taken over", "Another Connection using the same ClientID has connected."},
	0x8F: {"Topic Filter invalid", "The Topic Filter is correctly formed, but is not accepted by this Server."},
	0x90: {"Topic Name invalid", "The Topic Name is correctly formed, but is not accepted by this Server."},
	0x93: {"Receive Maximum exceeded", "The Client has received more than Receive Maximum publications."},
	0x94: {"Topic Alias invalid", "The Topic Alias is invalid."},
	0x95: {"Packet too large", "The packet size is greater than Maximum Packet Size."},
	0x96: {"Message rate too high", "The received data rate is too high."},
	0x97: {"Quota exceeded", "An implementation or administrative imposed limit has been exceeded."},
	0x98: {"Administrative action", "The Connection is closed due to an administrative action."},
	0x99: {"Payload format invalid", "The payload format does not match the one specified by the Payload Format Indicator."},
	0x9A: {"Retain not supported", "The Server does not support retained messages."},
	0x9B: {"QoS not supported", "The Client specified a QoS greater than the QoS specified in a Maximum QoS in the CONNACK."},
	0x9C: {"Use another server", "The Client should temporarily change its Server."},
	0x9D: {"Server moved", "The Server is moved and the Client should permanently change its server location."},
	0x9E: {"Shared Subscriptions not supported", "The Server does not support Shared Subscriptions."},
	0x9F: {"Connection rate exceeded", "This connection is closed because the connection rate is too high."},
	0xA0: {"Maximum connect time", "The maximum connection time authorized for this connection has been exceeded."},
	0xA1: {"Subscription Identifiers not supported", "The Server does not support Subscription Identifiers."},
	0xA2: {"Wildcard Subscriptions not supported", "The Server does not support Wildcard Subscriptions."},
}

// LookupReason resolves a reason code in the table belonging to the packet
// type t. Only CONNACK, SUBACK and DISCONNECT carry tables.
func LookupReason(t PacketType, code uint8) Reason {
	var table map[uint8]reasonText
	switch t {
	case ConnAck:
		table = connAckReasons
	case SubAck:
		table = subAckReasons
	case Disconnect:
		table = disconnectReasons
	}
	r := Reason{Code: code}
	if text, ok := table[code]; ok {
		r.Name = text.name
		r.Description = text.description
	}
	return r
}
