package rtmp

import (
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/message"
)

// Result is produced by sessions as bytes come in and requests are made. It is either an OutboundPacket, which must be
// sent to the peer in the order it was returned, or one of the events in this file.
type Result interface {
	isResult()
}

type OutboundPacket struct {
	chunk.Packet
}

type MediaType uint8

const (
	MediaAudio MediaType = iota
	MediaVideo
)

func (t MediaType) String() string {
	if t == MediaVideo {
		return "video"
	}
	return "audio"
}

type PublishMode string

const (
	PublishLive   PublishMode = "live"
	PublishRecord PublishMode = "record"
	PublishAppend PublishMode = "append"
)

func parsePublishMode(s string) (PublishMode, bool) {
	switch mode := PublishMode(s); mode {
	case PublishLive, PublishRecord, PublishAppend:
		return mode, true
	}
	return "", false
}

// Events raised by both sessions.

type AcknowledgementReceived struct {
	SequenceNumber uint32
}

type PingResponseReceived struct {
	Timestamp uint32
}

type PeerChunkSizeChanged struct {
	Size uint32
}

// MediaReceived carries audio or video sent by the peer on a stream that is publishing (server side) or playing
// (client side). Data is the untouched message payload.
type MediaReceived struct {
	AppName   string
	StreamKey string
	StreamID  uint32
	Type      MediaType
	Timestamp uint32
	Data      []byte
}

// UnhandledCommand is a command the session doesn't know how to answer. The host may reply to it itself.
type UnhandledCommand struct {
	StreamID uint32
	Command  *message.Amf0Command
}

// UnhandledMessage is a message of a type that isn't interpreted, such as an AMF3 command or an aggregate message.
type UnhandledMessage struct {
	StreamID  uint32
	Timestamp uint32
	Message   *message.Unknown
}

// Server events.

type ConnectionRequested struct {
	RequestID    uint32
	AppName      string
	TcURL        string
	FlashVersion string
}

type PublishRequested struct {
	RequestID uint32
	AppName   string
	StreamKey string
	StreamID  uint32
	Mode      PublishMode
}

type PlayRequested struct {
	RequestID uint32
	AppName   string
	StreamKey string
	StreamID  uint32
	// Start is -2 for live or recorded, -1 for live only, otherwise an offset in seconds.
	Start float64
	// Duration is -1 to play until the end of the stream.
	Duration float64
	Reset    bool
}

type PublishFinished struct {
	AppName   string
	StreamKey string
	StreamID  uint32
}

type PlayFinished struct {
	AppName   string
	StreamKey string
	StreamID  uint32
}

type MetadataChanged struct {
	AppName   string
	StreamKey string
	StreamID  uint32
	Metadata  *StreamMetadata
}

// Client events.

type ConnectionAccepted struct {
	AppName string
	// Info is the status object sent with the result.
	Info map[string]interface{}
}

type ConnectionRejected struct {
	Code        string
	Description string
}

type StreamCreated struct {
	StreamID uint32
}

type PublishAccepted struct {
	StreamKey string
	StreamID  uint32
}

type PlaybackAccepted struct {
	StreamKey string
	StreamID  uint32
}

// RequestRejected is raised when the server answers createStream, publish or play with an error.
type RequestRejected struct {
	Command     string
	Code        string
	Description string
}

type MetadataReceived struct {
	StreamKey string
	StreamID  uint32
	Metadata  *StreamMetadata
}

type StreamEnded struct {
	StreamID uint32
}

type UnknownTransactionResult struct {
	Command *message.Amf0Command
}

type UnhandledStatus struct {
	StreamID    uint32
	Level       string
	Code        string
	Description string
}

func (OutboundPacket) isResult()           {}
func (AcknowledgementReceived) isResult()  {}
func (PingResponseReceived) isResult()     {}
func (PeerChunkSizeChanged) isResult()     {}
func (MediaReceived) isResult()            {}
func (UnhandledCommand) isResult()         {}
func (UnhandledMessage) isResult()         {}
func (ConnectionRequested) isResult()      {}
func (PublishRequested) isResult()         {}
func (PlayRequested) isResult()            {}
func (PublishFinished) isResult()          {}
func (PlayFinished) isResult()             {}
func (MetadataChanged) isResult()          {}
func (ConnectionAccepted) isResult()       {}
func (ConnectionRejected) isResult()       {}
func (StreamCreated) isResult()            {}
func (PublishAccepted) isResult()          {}
func (PlaybackAccepted) isResult()         {}
func (RequestRejected) isResult()          {}
func (MetadataReceived) isResult()         {}
func (StreamEnded) isResult()              {}
func (UnknownTransactionResult) isResult() {}
func (UnhandledStatus) isResult()          {}
