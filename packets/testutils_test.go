package packets

import (
	"fmt"
)

// brokenWriter fails every write with err.
type brokenWriter struct {
	err error
}

func (w brokenWriter) Write(b []byte) (int, error) {
	return 0, w.err
}

var errBrokenPipe = fmt.Errorf("broken pipe")

func uint8Ptr(v uint8) *uint8    { return &v }
func uint16Ptr(v uint16) *uint16 { return &v }
func uint32Ptr(v uint32) *uint32 { return &v }
func boolPtr(v bool) *bool       { return &v }

func concat(parts ...[]byte) []byte {
	var b []byte
	for _, part := range parts {
		b = append(b, part...)
	}
	return b
}
