// Package message interprets complete RTMP messages. Each message type the protocol defines maps to one of the
// variants of Message; anything else is returned as *Unknown so callers can decide what to do with it.
package message

import "github.com/pkg/errors"

type TypeID uint8

const (
	TypeSetChunkSize     TypeID = 1
	TypeAbort            TypeID = 2
	TypeAcknowledgement  TypeID = 3
	TypeUserControl      TypeID = 4
	TypeWindowAckSize    TypeID = 5
	TypeSetPeerBandwidth TypeID = 6

	TypeAudio TypeID = 8
	TypeVideo TypeID = 9

	TypeDataAMF3         TypeID = 15
	TypeSharedObjectAMF3 TypeID = 16
	TypeCommandAMF3      TypeID = 17

	TypeDataAMF0         TypeID = 18
	TypeSharedObjectAMF0 TypeID = 19
	TypeCommandAMF0      TypeID = 20

	TypeAggregate TypeID = 22
)

type UserControlEventType uint16

const (
	StreamBegin      UserControlEventType = 0
	StreamEOF        UserControlEventType = 1
	StreamDry        UserControlEventType = 2
	SetBufferLength  UserControlEventType = 3
	StreamIsRecorded UserControlEventType = 4
	PingRequest      UserControlEventType = 6
	PingResponse     UserControlEventType = 7
)

type PeerBandwidthLimitType uint8

const (
	LimitHard    PeerBandwidthLimitType = 0
	LimitSoft    PeerBandwidthLimitType = 1
	LimitDynamic PeerBandwidthLimitType = 2
)

var ErrMalformedPayload = errors.New("malformed message payload")

// Message is implemented by every message variant in this package and nothing else.
type Message interface {
	TypeID() TypeID
	isMessage()
}

type SetChunkSize struct {
	Size uint32
}

type Abort struct {
	ChunkStreamID uint32
}

type Acknowledgement struct {
	SequenceNumber uint32
}

// UserControl carries a user control event. StreamID is set for the stream events and SetBufferLength,
// BufferLength for SetBufferLength and Timestamp for the ping events.
type UserControl struct {
	Event        UserControlEventType
	StreamID     uint32
	BufferLength uint32
	Timestamp    uint32
}

type WindowAckSize struct {
	Size uint32
}

type SetPeerBandwidth struct {
	Size      uint32
	LimitType PeerBandwidthLimitType
}

// AudioData payloads are left untouched: they start with the FLV audio tag header.
type AudioData struct {
	Data []byte
}

// VideoData payloads are left untouched: they start with the FLV video tag header.
type VideoData struct {
	Data []byte
}

type Amf0Command struct {
	Name          string
	TransactionID float64
	// CommandObject is usually a map[string]interface{} or nil.
	CommandObject interface{}
	Arguments     []interface{}
}

type Amf0Data struct {
	Values []interface{}
}

// Unknown is a message whose type isn't interpreted (including AMF3 messages, shared objects, aggregates and
// unrecognized user control events).
type Unknown struct {
	Type TypeID
	Data []byte
}

func (*SetChunkSize) TypeID() TypeID     { return TypeSetChunkSize }
func (*Abort) TypeID() TypeID            { return TypeAbort }
func (*Acknowledgement) TypeID() TypeID  { return TypeAcknowledgement }
func (*UserControl) TypeID() TypeID      { return TypeUserControl }
func (*WindowAckSize) TypeID() TypeID    { return TypeWindowAckSize }
func (*SetPeerBandwidth) TypeID() TypeID { return TypeSetPeerBandwidth }
func (*AudioData) TypeID() TypeID        { return TypeAudio }
func (*VideoData) TypeID() TypeID        { return TypeVideo }
func (*Amf0Command) TypeID() TypeID      { return TypeCommandAMF0 }
func (*Amf0Data) TypeID() TypeID         { return TypeDataAMF0 }
func (u *Unknown) TypeID() TypeID        { return u.Type }

func (*SetChunkSize) isMessage()     {}
func (*Abort) isMessage()            {}
func (*Acknowledgement) isMessage()  {}
func (*UserControl) isMessage()      {}
func (*WindowAckSize) isMessage()    {}
func (*SetPeerBandwidth) isMessage() {}
func (*AudioData) isMessage()        {}
func (*VideoData) isMessage()        {}
func (*Amf0Command) isMessage()      {}
func (*Amf0Data) isMessage()         {}
func (*Unknown) isMessage()          {}
