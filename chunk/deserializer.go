package chunk

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/internal/binary24"
)

// chunkStream holds what the Deserializer remembers about one chunk stream: the last header received on it
// and the message currently being reassembled.
type chunkStream struct {
	header     header
	hasHeader  bool
	inProgress bool
	payload    []byte
}

// Deserializer rebuilds messages out of chunks. Chunks of different chunk streams may be interleaved freely;
// reassembly state is kept per chunk stream ID.
type Deserializer struct {
	maxChunkSize uint32
	streams      map[uint32]*chunkStream
	buf          []byte
	offset       int
}

func NewDeserializer() *Deserializer {
	return &Deserializer{
		maxChunkSize: DefaultMaxChunkSize,
		streams:      make(map[uint32]*chunkStream),
	}
}

func (d *Deserializer) MaxChunkSize() uint32 {
	return d.maxChunkSize
}

// SetMaxChunkSize changes the largest chunk payload expected from the peer. It applies to every chunk read after
// the call, including the remaining chunks of messages that are already partially reassembled.
func (d *Deserializer) SetMaxChunkSize(size uint32) error {
	if err := validateChunkSize(size); err != nil {
		return err
	}
	d.maxChunkSize = size
	return nil
}

// Abort discards the partially reassembled message on a chunk stream, if any.
func (d *Deserializer) Abort(chunkStreamID uint32) {
	if stream, exists := d.streams[chunkStreamID]; exists {
		stream.inProgress = false
		stream.payload = nil
	}
}

// Buffered returns the number of received bytes that have not been consumed by a complete chunk yet.
func (d *Deserializer) Buffered() int {
	return len(d.buf) - d.offset
}

// Next appends data to the bytes received so far and returns the next complete message, or nil if more bytes
// are needed. Only one message is returned per call, so callers should keep calling Next(nil) until it returns nil:
// a message such as Set Chunk Size changes how the following chunks must be read.
func (d *Deserializer) Next(data []byte) (*Message, error) {
	if len(data) > 0 {
		d.buf = append(d.buf, data...)
	}

	for {
		msg, consumed, err := d.readChunk(d.buf[d.offset:])
		if err != nil {
			return nil, err
		}
		if consumed == 0 {
			d.compact()
			return nil, nil
		}
		d.offset += consumed
		if msg != nil {
			return msg, nil
		}
	}
}

func (d *Deserializer) compact() {
	if d.offset == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.offset:])
	d.buf = d.buf[:n]
	d.offset = 0
}

// readChunk parses a single chunk at the start of b. If b doesn't hold the complete chunk nothing is committed and
// consumed is 0.
func (d *Deserializer) readChunk(b []byte) (msg *Message, consumed int, err error) {
	if len(b) < 1 {
		return nil, 0, nil
	}

	chunkType := Type(b[0] >> 6)
	chunkStreamID := uint32(b[0] & 0x3F)
	pos := 1
	switch chunkStreamID {
	case 0:
		if len(b) < 2 {
			return nil, 0, nil
		}
		chunkStreamID = uint32(b[1]) + 64
		pos = 2
	case 1:
		if len(b) < 3 {
			return nil, 0, nil
		}
		chunkStreamID = uint32(b[2])<<8 + uint32(b[1]) + 64
		pos = 3
	}

	stream := d.streams[chunkStreamID]
	if chunkType != Type0 && (stream == nil || !stream.hasHeader) {
		return nil, 0, errors.Wrapf(ErrNoPreviousChunk, "chunk type %d on chunk stream %d", chunkType, chunkStreamID)
	}
	newMessage := stream == nil || !stream.inProgress
	if !newMessage && chunkType != Type3 {
		return nil, 0, errors.Wrapf(ErrUnexpectedHeader, "chunk type %d on chunk stream %d", chunkType, chunkStreamID)
	}

	var current header
	if stream != nil {
		current = stream.header
	}

	var timestampField uint32
	switch chunkType {
	case Type0:
		if len(b) < pos+type0MessageHeaderLength {
			return nil, 0, nil
		}
		timestampField = binary24.BigEndian.Uint24(b[pos:])
		current.messageLength = binary24.BigEndian.Uint24(b[pos+3:])
		current.typeID = b[pos+6]
		current.streamID = binary.LittleEndian.Uint32(b[pos+7:])
		pos += type0MessageHeaderLength
	case Type1:
		if len(b) < pos+type1MessageHeaderLength {
			return nil, 0, nil
		}
		timestampField = binary24.BigEndian.Uint24(b[pos:])
		current.messageLength = binary24.BigEndian.Uint24(b[pos+3:])
		current.typeID = b[pos+6]
		pos += type1MessageHeaderLength
	case Type2:
		if len(b) < pos+type2MessageHeaderLength {
			return nil, 0, nil
		}
		timestampField = binary24.BigEndian.Uint24(b[pos:])
		pos += type2MessageHeaderLength
	case Type3:
		timestampField = current.timestampDelta
	}

	if chunkType != Type3 {
		current.extended = timestampField == binary24.MaxUint24
	}
	if current.extended {
		if len(b) < pos+extendedTimestampLength {
			return nil, 0, nil
		}
		timestampField = binary.BigEndian.Uint32(b[pos:])
		pos += extendedTimestampLength
	}

	switch chunkType {
	case Type0:
		current.timestamp = timestampField
		current.timestampDelta = timestampField
	case Type1, Type2:
		current.timestamp += timestampField
		current.timestampDelta = timestampField
	case Type3:
		// A type 3 chunk that starts a new message reuses the previous delta. Continuation chunks keep the timestamp.
		if newMessage {
			current.timestamp += timestampField
			current.timestampDelta = timestampField
		}
	}

	var received uint32
	if !newMessage {
		received = uint32(len(stream.payload))
	}
	toRead := current.messageLength - received
	if toRead > d.maxChunkSize {
		toRead = d.maxChunkSize
	}
	if uint64(len(b)) < uint64(pos)+uint64(toRead) {
		return nil, 0, nil
	}

	// The whole chunk is available, commit it.
	if stream == nil {
		stream = &chunkStream{}
		d.streams[chunkStreamID] = stream
	}
	stream.header = current
	stream.hasHeader = true
	if newMessage {
		stream.inProgress = true
		// The declared length isn't trusted, the payload grows with the chunks that actually arrive
		stream.payload = make([]byte, 0, toRead)
	}
	stream.payload = append(stream.payload, b[pos:pos+int(toRead)]...)
	pos += int(toRead)

	if uint32(len(stream.payload)) < current.messageLength {
		return nil, pos, nil
	}

	msg = &Message{
		TypeID:    current.typeID,
		StreamID:  current.streamID,
		Timestamp: current.timestamp,
		Payload:   stream.payload,
	}
	stream.inProgress = false
	stream.payload = nil
	return msg, pos, nil
}
