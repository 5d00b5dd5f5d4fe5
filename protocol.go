package rtmp

import (
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/handshake"
	"github.com/torresjeff/rtmpcore/message"
	"go.uber.org/zap"
)

// roleHandler is implemented by the client and server sessions. The protocol core calls it for everything that
// depends on which side of the connection the session is on.
type roleHandler interface {
	handshakeCompleted() ([]Result, error)
	handleMessage(raw *chunk.Message, msg message.Message) ([]Result, error)
}

// protocol drives the handshake and the chunk stream of a connection, and answers the protocol control messages that
// are handled the same way by clients and servers.
type protocol struct {
	logger       *zap.Logger
	handshake    *handshake.Handshake
	serializer   *chunk.Serializer
	deserializer *chunk.Deserializer
	epoch        time.Time

	bytesReceived     uint64
	lastAcknowledged  uint64
	peerWindowAckSize uint32
	windowAckSize     uint32
	closed            bool
}

func newProtocol(role handshake.Role, logger *zap.Logger) *protocol {
	return &protocol{
		logger:       logger,
		handshake:    handshake.New(role),
		serializer:   chunk.NewSerializer(),
		deserializer: chunk.NewDeserializer(),
		epoch:        time.Now(),
	}
}

// timestamp is the number of milliseconds since the session was created. It wraps around after ~49 days like RTMP
// timestamps do.
func (p *protocol) timestamp() uint32 {
	return uint32(time.Since(p.epoch) / time.Millisecond)
}

func (p *protocol) handshakeDone() bool {
	return p.handshake.State() == handshake.StateDone
}

// send serializes msg with the session timestamp.
func (p *protocol) send(msg message.Message, streamID uint32) (OutboundPacket, error) {
	return p.sendAt(msg, streamID, p.timestamp(), false)
}

func (p *protocol) sendAt(msg message.Message, streamID uint32, timestamp uint32, canBeDropped bool) (OutboundPacket, error) {
	raw, err := message.Encode(msg, timestamp, streamID)
	if err != nil {
		return OutboundPacket{}, err
	}
	packet, err := p.serializer.Serialize(raw, false, canBeDropped)
	if err != nil {
		return OutboundPacket{}, errors.WithMessagef(err, "serializing message of type %d", raw.TypeID)
	}
	return OutboundPacket{Packet: packet}, nil
}

// sendAll serializes every message on the same stream, in order.
func (p *protocol) sendAll(streamID uint32, msgs ...message.Message) ([]Result, error) {
	results := make([]Result, 0, len(msgs))
	for _, msg := range msgs {
		packet, err := p.send(msg, streamID)
		if err != nil {
			return nil, err
		}
		results = append(results, packet)
	}
	return results, nil
}

func (p *protocol) setChunkSize(size uint32) (OutboundPacket, error) {
	packet, err := p.serializer.SetMaxChunkSize(size, p.timestamp())
	if err != nil {
		return OutboundPacket{}, err
	}
	return OutboundPacket{Packet: packet}, nil
}

func (p *protocol) setWindowAckSize(size uint32) (OutboundPacket, error) {
	p.windowAckSize = size
	return p.send(&message.WindowAckSize{Size: size}, 0)
}

func (p *protocol) pingRequest() (OutboundPacket, error) {
	if !p.handshakeDone() {
		return OutboundPacket{}, errors.Wrap(ErrInvalidStateTransition, "handshake isn't complete")
	}
	return p.send(&message.UserControl{Event: message.PingRequest, Timestamp: p.timestamp()}, 0)
}

// feed runs data through the handshake and then the chunk stream, handing every complete message that isn't a
// protocol control message to h. Any error returned is fatal to the connection.
func (p *protocol) feed(data []byte, h roleHandler) ([]Result, error) {
	if p.closed {
		return nil, ErrSessionClosed
	}
	if len(data) == 0 {
		return nil, nil
	}

	var results []Result
	if !p.handshakeDone() {
		hs, err := p.handshake.ProcessBytes(data)
		if err != nil {
			return nil, errors.WithMessage(err, "handshake")
		}
		if len(hs.Response) > 0 {
			results = append(results, OutboundPacket{Packet: chunk.Packet{Bytes: hs.Response}})
		}
		if !hs.Done {
			return results, nil
		}

		p.logger.Debug("handshake completed", zap.Stringer("role", p.handshake.Role()))
		completed, err := h.handshakeCompleted()
		if err != nil {
			return nil, err
		}
		results = append(results, completed...)

		data = hs.Remaining
		if len(data) == 0 {
			return results, nil
		}
	}

	p.bytesReceived += uint64(len(data))
	raw, err := p.deserializer.Next(data)
	for ; raw != nil && err == nil; raw, err = p.deserializer.Next(nil) {
		dispatched, dispatchErr := p.dispatch(raw, h)
		if dispatchErr != nil {
			return nil, dispatchErr
		}
		results = append(results, dispatched...)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "reading chunk")
	}

	if p.peerWindowAckSize > 0 && p.bytesReceived-p.lastAcknowledged >= uint64(p.peerWindowAckSize) {
		p.lastAcknowledged = p.bytesReceived
		ack, err := p.send(&message.Acknowledgement{SequenceNumber: uint32(p.bytesReceived)}, 0)
		if err != nil {
			return nil, err
		}
		results = append(results, ack)
	}
	return results, nil
}

func (p *protocol) dispatch(raw *chunk.Message, h roleHandler) ([]Result, error) {
	msg, err := message.Decode(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding message of type %d", raw.TypeID)
	}

	switch m := msg.(type) {
	case *message.SetChunkSize:
		if err := p.deserializer.SetMaxChunkSize(m.Size); err != nil {
			return nil, err
		}
		p.logger.Debug("peer changed chunk size", zap.Uint32("size", m.Size))
		return []Result{PeerChunkSizeChanged{Size: m.Size}}, nil
	case *message.Abort:
		p.deserializer.Abort(m.ChunkStreamID)
		return nil, nil
	case *message.Acknowledgement:
		return []Result{AcknowledgementReceived{SequenceNumber: m.SequenceNumber}}, nil
	case *message.WindowAckSize:
		p.peerWindowAckSize = m.Size
		return nil, nil
	case *message.SetPeerBandwidth:
		if m.Size == p.windowAckSize {
			return nil, nil
		}
		packet, err := p.setWindowAckSize(m.Size)
		if err != nil {
			return nil, err
		}
		return []Result{packet}, nil
	case *message.UserControl:
		switch m.Event {
		case message.PingRequest:
			packet, err := p.send(&message.UserControl{Event: message.PingResponse, Timestamp: m.Timestamp}, 0)
			if err != nil {
				return nil, err
			}
			return []Result{packet}, nil
		case message.PingResponse:
			return []Result{PingResponseReceived{Timestamp: m.Timestamp}}, nil
		}
		return h.handleMessage(raw, msg)
	case *message.Unknown:
		return []Result{UnhandledMessage{StreamID: raw.StreamID, Timestamp: raw.Timestamp, Message: m}}, nil
	default:
		return h.handleMessage(raw, msg)
	}
}

// statusObject builds the info object sent with onStatus, _result and _error.
func statusObject(level string, code string, description string) map[string]interface{} {
	return map[string]interface{}{
		"level":       level,
		"code":        code,
		"description": description,
	}
}

const (
	levelStatus = "status"
	levelError  = "error"
)

// Status codes.
const (
	connectSuccess      = "NetConnection.Connect.Success"
	connectRejected     = "NetConnection.Connect.Rejected"
	callFailed          = "NetConnection.Call.Failed"
	streamFailed        = "NetStream.Failed"
	publishStart        = "NetStream.Publish.Start"
	publishBadName      = "NetStream.Publish.BadName"
	unpublishSuccess    = "NetStream.Unpublish.Success"
	playReset           = "NetStream.Play.Reset"
	playStart           = "NetStream.Play.Start"
	playStop            = "NetStream.Play.Stop"
	playStreamNotFound  = "NetStream.Play.StreamNotFound"
	playUnpublishNotify = "NetStream.Play.UnpublishNotify"
	dataStart           = "NetStream.Data.Start"
)

func stringProperty(object interface{}, key string) (string, bool) {
	properties, ok := object.(map[string]interface{})
	if !ok {
		return "", false
	}
	value, ok := properties[key].(string)
	return value, ok
}
