// Package chunk implements the RTMP chunk stream: it splits messages into chunks with compressed headers
// and reassembles chunks received on interleaved chunk streams back into complete messages.
//
// Neither the Serializer nor the Deserializer perform any I/O. Bytes are handed in and out by the caller.
package chunk

import "github.com/pkg/errors"

// Type is the header compression level of a chunk, carried in the top 2 bits of the basic header.
type Type uint8

const (
	// Type0 carries the full message header: timestamp, message length, message type and message stream ID.
	Type0 Type = iota
	// Type1 omits the message stream ID and carries a timestamp delta.
	Type1
	// Type2 only carries a timestamp delta.
	Type2
	// Type3 carries no message header at all.
	Type3
)

const (
	type0MessageHeaderLength = 11
	type1MessageHeaderLength = 7
	type2MessageHeaderLength = 3
	extendedTimestampLength  = 4
)

const (
	DefaultMaxChunkSize uint32 = 128
	MaxChunkSizeLimit   uint32 = 0x7FFFFFFF
	MaxMessageLength    uint32 = 0xFFFFFF

	MinChunkStreamID uint32 = 2
	MaxChunkStreamID uint32 = 65599
)

// Chunk stream IDs used by default for each kind of message.
const (
	ProtocolChunkStreamID uint32 = 2
	CommandChunkStreamID  uint32 = 3
	VideoChunkStreamID    uint32 = 4
	AudioChunkStreamID    uint32 = 5
	DataChunkStreamID     uint32 = 6
)

// setChunkSizeTypeID is the message type of the Set Chunk Size protocol control message.
const setChunkSizeTypeID uint8 = 1

var (
	ErrNoPreviousChunk      = errors.New("received a compressed chunk header but no previous chunk exists on that chunk stream")
	ErrUnexpectedHeader     = errors.New("received a new message header while a message is still being reassembled on that chunk stream")
	ErrInvalidChunkSize     = errors.New("chunk size must be between 1 and 2147483647")
	ErrInvalidChunkStreamID = errors.New("chunk stream ID must be between 2 and 65599")
	ErrMessageTooLong       = errors.New("message payload is longer than 16777215 bytes")
)

// Message is a complete RTMP message as reassembled from (or split into) chunks.
type Message struct {
	TypeID    uint8
	StreamID  uint32
	Timestamp uint32
	Payload   []byte
}

// Packet is a run of serialized chunks ready to be written to the peer.
type Packet struct {
	Bytes []byte
	// CanBeDropped is set for media the host may skip sending under back pressure (ie. non key frames).
	CanBeDropped bool
}

// ChunkStreamIDForType returns the chunk stream a message of the given type is sent on when the caller doesn't choose one.
func ChunkStreamIDForType(typeID uint8) uint32 {
	switch typeID {
	case 1, 2, 3, 4, 5, 6:
		return ProtocolChunkStreamID
	case 17, 18, 19, 20:
		return CommandChunkStreamID
	case 9:
		return VideoChunkStreamID
	case 8:
		return AudioChunkStreamID
	default:
		return DataChunkStreamID
	}
}

// header is the compression state of one chunk stream in one direction.
type header struct {
	timestamp uint32
	// timestampDelta is the value the timestamp field of the last header carried. For a type 0 header this is
	// the absolute timestamp, which is what a following type 3 chunk adds.
	timestampDelta uint32
	messageLength  uint32
	typeID         uint8
	streamID       uint32
	extended       bool
}

func validateChunkSize(size uint32) error {
	if size == 0 || size > MaxChunkSizeLimit {
		return errors.Wrapf(ErrInvalidChunkSize, "got %d", size)
	}
	return nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint32LittleEndian(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendBasicHeader(b []byte, chunkType Type, chunkStreamID uint32) []byte {
	fmtBits := byte(chunkType) << 6
	switch {
	case chunkStreamID < 64:
		return append(b, fmtBits|byte(chunkStreamID))
	case chunkStreamID < 320:
		return append(b, fmtBits, byte(chunkStreamID-64))
	default:
		id := chunkStreamID - 64
		return append(b, fmtBits|1, byte(id), byte(id>>8))
	}
}

// isTimestampBefore reports whether a comes before b, treating timestamps as a wrapping 32 bit space.
func isTimestampBefore(a, b uint32) bool {
	return a != b && b-a < 1<<31
}
