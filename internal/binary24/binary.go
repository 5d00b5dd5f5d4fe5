// Package binary24 reads and writes the 3-byte big endian integers used by RTMP chunk headers.
package binary24

// MaxUint24 is the largest value a 3-byte field can hold. RTMP uses it as the marker for an extended timestamp.
const MaxUint24 = 0xFFFFFF

var BigEndian bigEndian

type bigEndian struct{}

func (bigEndian) Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// AppendUint24 appends the 3 least significant bytes of v to b. Anything above MaxUint24 is cut off.
func (bigEndian) AppendUint24(b []byte, v uint32) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}
