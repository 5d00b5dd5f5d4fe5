package message

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/amf/amf0"
	"github.com/torresjeff/rtmpcore/chunk"
)

const maxChunkSize = 0x7FFFFFFF

// Decode interprets a reassembled message. Message types that aren't interpreted are returned as *Unknown;
// an error is only returned when the payload of an interpreted type is malformed.
func Decode(raw *chunk.Message) (Message, error) {
	payload := raw.Payload
	switch TypeID(raw.TypeID) {
	case TypeSetChunkSize:
		size, err := readUint32(payload, "set chunk size")
		if err != nil {
			return nil, err
		}
		if size == 0 || size > maxChunkSize {
			return nil, errors.Wrapf(ErrMalformedPayload, "set chunk size of %d is out of range", size)
		}
		return &SetChunkSize{Size: size}, nil
	case TypeAbort:
		id, err := readUint32(payload, "abort")
		if err != nil {
			return nil, err
		}
		return &Abort{ChunkStreamID: id}, nil
	case TypeAcknowledgement:
		sequenceNumber, err := readUint32(payload, "acknowledgement")
		if err != nil {
			return nil, err
		}
		return &Acknowledgement{SequenceNumber: sequenceNumber}, nil
	case TypeUserControl:
		return decodeUserControl(raw)
	case TypeWindowAckSize:
		size, err := readUint32(payload, "window acknowledgement size")
		if err != nil {
			return nil, err
		}
		return &WindowAckSize{Size: size}, nil
	case TypeSetPeerBandwidth:
		if len(payload) < 5 {
			return nil, errors.Wrapf(ErrMalformedPayload, "set peer bandwidth payload is %d bytes long", len(payload))
		}
		limitType := PeerBandwidthLimitType(payload[4])
		if limitType > LimitDynamic {
			return nil, errors.Wrapf(ErrMalformedPayload, "unknown peer bandwidth limit type %d", limitType)
		}
		return &SetPeerBandwidth{Size: binary.BigEndian.Uint32(payload), LimitType: limitType}, nil
	case TypeAudio:
		return &AudioData{Data: payload}, nil
	case TypeVideo:
		return &VideoData{Data: payload}, nil
	case TypeCommandAMF0:
		return decodeAmf0Command(payload)
	case TypeDataAMF0:
		values, err := amf0.DecodeAll(payload)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedPayload, err.Error())
		}
		return &Amf0Data{Values: values}, nil
	default:
		return &Unknown{Type: TypeID(raw.TypeID), Data: payload}, nil
	}
}

func readUint32(payload []byte, name string) (uint32, error) {
	if len(payload) < 4 {
		return 0, errors.Wrapf(ErrMalformedPayload, "%s payload is %d bytes long", name, len(payload))
	}
	return binary.BigEndian.Uint32(payload), nil
}

func decodeUserControl(raw *chunk.Message) (Message, error) {
	payload := raw.Payload
	if len(payload) < 2 {
		return nil, errors.Wrapf(ErrMalformedPayload, "user control payload is %d bytes long", len(payload))
	}
	event := UserControlEventType(binary.BigEndian.Uint16(payload))
	data := payload[2:]

	switch event {
	case StreamBegin, StreamEOF, StreamDry, StreamIsRecorded:
		streamID, err := readUint32(data, "user control stream event")
		if err != nil {
			return nil, err
		}
		return &UserControl{Event: event, StreamID: streamID}, nil
	case SetBufferLength:
		if len(data) < 8 {
			return nil, errors.Wrapf(ErrMalformedPayload, "set buffer length payload is %d bytes long", len(data))
		}
		return &UserControl{
			Event:        event,
			StreamID:     binary.BigEndian.Uint32(data),
			BufferLength: binary.BigEndian.Uint32(data[4:]),
		}, nil
	case PingRequest, PingResponse:
		timestamp, err := readUint32(data, "ping")
		if err != nil {
			return nil, err
		}
		return &UserControl{Event: event, Timestamp: timestamp}, nil
	default:
		return &Unknown{Type: TypeUserControl, Data: payload}, nil
	}
}

func decodeAmf0Command(payload []byte) (Message, error) {
	values, err := amf0.DecodeAll(payload)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedPayload, err.Error())
	}
	if len(values) < 2 {
		return nil, errors.Wrapf(ErrMalformedPayload, "command has %d values, expected at least a name and a transaction id", len(values))
	}
	name, ok := values[0].(string)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPayload, "command name is a %T", values[0])
	}
	transactionID, ok := values[1].(float64)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPayload, "transaction id of command %s is a %T", name, values[1])
	}

	command := &Amf0Command{Name: name, TransactionID: transactionID}
	if len(values) > 2 {
		command.CommandObject = values[2]
	}
	if len(values) > 3 {
		command.Arguments = values[3:]
	}
	return command, nil
}
