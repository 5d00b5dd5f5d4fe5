package message

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/amf/amf0"
	"github.com/torresjeff/rtmpcore/chunk"
)

// Encode builds the raw message for msg, to be sent on the given message stream with the given timestamp.
func Encode(msg Message, timestamp uint32, streamID uint32) (*chunk.Message, error) {
	var payload []byte
	switch m := msg.(type) {
	case *SetChunkSize:
		if m.Size == 0 || m.Size > maxChunkSize {
			return nil, errors.Wrapf(ErrMalformedPayload, "set chunk size of %d is out of range", m.Size)
		}
		payload = uint32Payload(m.Size)
	case *Abort:
		payload = uint32Payload(m.ChunkStreamID)
	case *Acknowledgement:
		payload = uint32Payload(m.SequenceNumber)
	case *UserControl:
		payload = encodeUserControl(m)
	case *WindowAckSize:
		payload = uint32Payload(m.Size)
	case *SetPeerBandwidth:
		payload = make([]byte, 5)
		binary.BigEndian.PutUint32(payload, m.Size)
		payload[4] = byte(m.LimitType)
	case *AudioData:
		payload = m.Data
	case *VideoData:
		payload = m.Data
	case *Amf0Command:
		values := make([]interface{}, 0, 3+len(m.Arguments))
		values = append(values, m.Name, m.TransactionID, m.CommandObject)
		values = append(values, m.Arguments...)
		var err error
		if payload, err = amf0.EncodeAll(values...); err != nil {
			return nil, errors.WithMessagef(err, "encoding command %s", m.Name)
		}
	case *Amf0Data:
		var err error
		if payload, err = amf0.EncodeAll(m.Values...); err != nil {
			return nil, errors.WithMessage(err, "encoding data message")
		}
	case *Unknown:
		payload = m.Data
	default:
		return nil, errors.Errorf("cannot encode message of type %T", msg)
	}

	return &chunk.Message{
		TypeID:    uint8(msg.TypeID()),
		StreamID:  streamID,
		Timestamp: timestamp,
		Payload:   payload,
	}, nil
}

func uint32Payload(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func encodeUserControl(m *UserControl) []byte {
	switch m.Event {
	case SetBufferLength:
		b := make([]byte, 10)
		binary.BigEndian.PutUint16(b, uint16(m.Event))
		binary.BigEndian.PutUint32(b[2:], m.StreamID)
		binary.BigEndian.PutUint32(b[6:], m.BufferLength)
		return b
	case PingRequest, PingResponse:
		b := make([]byte, 6)
		binary.BigEndian.PutUint16(b, uint16(m.Event))
		binary.BigEndian.PutUint32(b[2:], m.Timestamp)
		return b
	default:
		b := make([]byte, 6)
		binary.BigEndian.PutUint16(b, uint16(m.Event))
		binary.BigEndian.PutUint32(b[2:], m.StreamID)
		return b
	}
}
