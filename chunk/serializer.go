package chunk

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/internal/binary24"
)

// Serializer turns messages into chunks. It keeps the last header sent on each chunk stream so that
// subsequent messages can be sent with the smallest header that still lets the peer rebuild them.
type Serializer struct {
	maxChunkSize uint32
	// previousHeaders maps a chunk stream ID to the header of the last message sent on it.
	previousHeaders map[uint32]*header
}

func NewSerializer() *Serializer {
	return &Serializer{
		maxChunkSize:    DefaultMaxChunkSize,
		previousHeaders: make(map[uint32]*header),
	}
}

func (s *Serializer) MaxChunkSize() uint32 {
	return s.maxChunkSize
}

// SetMaxChunkSize returns a Set Chunk Size message announcing size to the peer. The message itself is split using
// the current chunk size; every message serialized afterwards uses the new one.
func (s *Serializer) SetMaxChunkSize(size uint32, timestamp uint32) (Packet, error) {
	if err := validateChunkSize(size); err != nil {
		return Packet{}, err
	}

	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, size)
	packet, err := s.Serialize(&Message{
		TypeID:    setChunkSizeTypeID,
		Timestamp: timestamp,
		Payload:   payload,
	}, false, false)
	if err != nil {
		return Packet{}, err
	}

	s.maxChunkSize = size
	return packet, nil
}

// Serialize splits msg into chunks on the default chunk stream for its message type.
func (s *Serializer) Serialize(msg *Message, forceUncompressed bool, canBeDropped bool) (Packet, error) {
	return s.SerializeOnChunkStream(ChunkStreamIDForType(msg.TypeID), msg, forceUncompressed, canBeDropped)
}

// SerializeOnChunkStream splits msg into chunks on the given chunk stream. When forceUncompressed is set the first
// chunk always carries a full (type 0) header.
func (s *Serializer) SerializeOnChunkStream(chunkStreamID uint32, msg *Message, forceUncompressed bool, canBeDropped bool) (Packet, error) {
	if chunkStreamID < MinChunkStreamID || chunkStreamID > MaxChunkStreamID {
		return Packet{}, errors.Wrapf(ErrInvalidChunkStreamID, "got %d", chunkStreamID)
	}
	if len(msg.Payload) > int(MaxMessageLength) {
		return Packet{}, errors.Wrapf(ErrMessageTooLong, "got %d bytes", len(msg.Payload))
	}

	current := &header{
		timestamp:     msg.Timestamp,
		messageLength: uint32(len(msg.Payload)),
		typeID:        msg.TypeID,
		streamID:      msg.StreamID,
	}
	chunkType := s.chooseType(chunkStreamID, current, forceUncompressed)
	current.extended = current.timestampDelta >= binary24.MaxUint24

	timestampField := current.timestampDelta
	if current.extended {
		timestampField = binary24.MaxUint24
	}

	numberOfChunks := 1
	if current.messageLength > s.maxChunkSize {
		numberOfChunks = int((current.messageLength + s.maxChunkSize - 1) / s.maxChunkSize)
	}
	buf := make([]byte, 0, len(msg.Payload)+numberOfChunks*(3+extendedTimestampLength)+type0MessageHeaderLength)

	buf = appendBasicHeader(buf, chunkType, chunkStreamID)
	switch chunkType {
	case Type0:
		buf = binary24.BigEndian.AppendUint24(buf, timestampField)
		buf = binary24.BigEndian.AppendUint24(buf, current.messageLength)
		buf = append(buf, current.typeID)
		buf = appendUint32LittleEndian(buf, current.streamID)
	case Type1:
		buf = binary24.BigEndian.AppendUint24(buf, timestampField)
		buf = binary24.BigEndian.AppendUint24(buf, current.messageLength)
		buf = append(buf, current.typeID)
	case Type2:
		buf = binary24.BigEndian.AppendUint24(buf, timestampField)
	}
	if current.extended {
		buf = appendUint32(buf, current.timestampDelta)
	}

	payload := msg.Payload
	for {
		n := uint32(len(payload))
		if n > s.maxChunkSize {
			n = s.maxChunkSize
		}
		buf = append(buf, payload[:n]...)
		payload = payload[n:]
		if len(payload) == 0 {
			break
		}
		// Remaining chunks of the same message only repeat the basic header (and the extended timestamp, if any)
		buf = appendBasicHeader(buf, Type3, chunkStreamID)
		if current.extended {
			buf = appendUint32(buf, current.timestampDelta)
		}
	}

	s.previousHeaders[chunkStreamID] = current
	return Packet{Bytes: buf, CanBeDropped: canBeDropped}, nil
}

// chooseType picks the cheapest header type for current and fills in its timestamp delta.
func (s *Serializer) chooseType(chunkStreamID uint32, current *header, forceUncompressed bool) Type {
	previous, exists := s.previousHeaders[chunkStreamID]
	if !exists || forceUncompressed || previous.streamID != current.streamID ||
		isTimestampBefore(current.timestamp, previous.timestamp) {
		current.timestampDelta = current.timestamp
		return Type0
	}

	current.timestampDelta = current.timestamp - previous.timestamp
	switch {
	case previous.typeID != current.typeID || previous.messageLength != current.messageLength:
		return Type1
	case previous.timestampDelta != current.timestampDelta:
		return Type2
	default:
		return Type3
	}
}
