package util

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/alfrunes/mqttie/v5/mqtt"
)

// maxVarintLen is the maximum number of bytes in a variable byte integer.
const maxVarintLen = 4

// EncodeVarint encodes val as an MQTT variable byte integer: seven bits per
// byte, least significant group first, with the continuation bit (0x80) set
// on all but the final byte.
func EncodeVarint(val uint32) ([]byte, error) {
	if val > mqtt.MaxVarint {
		return nil, fmt.Errorf("%w: %d", mqtt.ErrVarintTooLarge, val)
	}
	var buf [maxVarintLen]byte
	n := PutVarint(buf[:], val)
	return buf[:n], nil
}

// PutVarint writes the variable byte encoding of val into b and returns the
// number of bytes written. b must hold at least VarintLen(val) bytes and val
// must not exceed mqtt.MaxVarint.
func PutVarint(b []byte, val uint32) int {
	var i int
	for {
		encoded := byte(val % 128)
		val /= 128
		if val > 0 {
			encoded |= 0x80
		}
		b[i] = encoded
		i++
		if val == 0 {
			return i
		}
	}
}

// VarintLen returns the number of bytes required to encode val.
func VarintLen(val uint32) int {
	var length int
	for {
		length++
		val /= 128
		if val < 1 {
			break
		}
	}
	return length
}

// DecodeVarint decodes a variable byte integer from the start of b,
// returning the value and the number of bytes consumed. If b ends before the
// final byte mqtt.ErrNeedMoreBytes is returned; a continuation bit on the
// fourth byte yields mqtt.ErrMalformedLength.
func DecodeVarint(b []byte) (val uint32, n int, err error) {
	var shift uint
	for n < maxVarintLen {
		if n >= len(b) {
			return 0, n, mqtt.ErrNeedMoreBytes
		}
		c := b[n]
		n++
		val |= uint32(c&0x7F) << shift
		if c&0x80 == 0 {
			return val, n, nil
		}
		shift += 7
	}
	return 0, n, mqtt.ErrMalformedLength
}

// EncodeUTF8 encodes str as a length prefixed UTF-8 string.
func EncodeUTF8(str string) ([]byte, error) {
	if len(str) > mqtt.MaxStringLength {
		return nil, fmt.Errorf("%w: %d bytes", mqtt.ErrStringTooLong, len(str))
	}
	b := make([]byte, len(str)+2)
	binary.BigEndian.PutUint16(b, uint16(len(str)))
	copy(b[2:], str)
	return b, nil
}

// DecodeUTF8 decodes a length prefixed UTF-8 string from the start of b and
// returns the number of bytes consumed.
func DecodeUTF8(b []byte) (str string, n int, err error) {
	if len(b) < 2 {
		return "", 0, mqtt.ErrPacketShort
	}
	l := int(binary.BigEndian.Uint16(b))
	if len(b) < l+2 {
		return "", 0, mqtt.ErrPacketShort
	}
	raw := b[2 : l+2]
	if !utf8.Valid(raw) {
		return "", 0, fmt.Errorf("%w: invalid UTF-8 string", mqtt.ErrMalformedPacket)
	}
	return string(raw), l + 2, nil
}
