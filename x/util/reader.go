package util

import (
	"encoding/binary"

	"github.com/alfrunes/mqttie/v5/mqtt"
)

// Reader is a forward-only cursor over an immutable byte buffer. Every read
// advances the position; reading past the end of the buffer returns
// mqtt.ErrPacketShort and leaves the position unchanged.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int {
	return r.pos
}

func (r *Reader) ReadUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, mqtt.ErrPacketShort
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, mqtt.ErrPacketShort
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, mqtt.ErrPacketShort
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadVarint reads a variable byte integer. A truncated integer inside the
// buffer is reported as mqtt.ErrPacketShort since the buffer is complete.
func (r *Reader) ReadVarint() (uint32, error) {
	v, n, err := DecodeVarint(r.buf[r.pos:])
	if err == mqtt.ErrNeedMoreBytes {
		return 0, mqtt.ErrPacketShort
	} else if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *Reader) ReadUTF8() (string, error) {
	s, n, err := DecodeUTF8(r.buf[r.pos:])
	if err != nil {
		return "", err
	}
	r.pos += n
	return s, nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the
// underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, mqtt.ErrPacketShort
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Sub slices the next n bytes into a new Reader and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}
