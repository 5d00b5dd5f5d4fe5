package rtmp

import (
	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/handshake"
	"github.com/torresjeff/rtmpcore/message"
	"github.com/torresjeff/rtmpcore/rand"
	"go.uber.org/zap"
)

// connectTransactionID is the transaction ID of the connect command, as sent by every known client.
const connectTransactionID float64 = 1

type transactionKind uint8

const (
	connectTransaction transactionKind = iota
	createStreamTransaction
)

type clientTransaction struct {
	kind    transactionKind
	appName string
}

// ClientSession is the client side of one RTMP connection, used to publish to or play from a server. Like
// ServerSession it performs no I/O: bytes from the server go to HandleInput and every OutboundPacket it returns must
// be written to the server in order.
type ClientSession struct {
	id       string
	config   ClientConfig
	logger   *zap.Logger
	protocol *protocol

	connected       bool
	appName         string
	transactions    map[float64]clientTransaction
	nextTransaction float64

	streamID  uint32
	hasStream bool
	streamKey string
	// pending is the command sent on the stream that is still waiting for its onStatus.
	pending string
	state   SessionState
}

// NewClientSession returns a session along with the packets that start the handshake.
func NewClientSession(cfg ClientConfig) (*ClientSession, []Result, error) {
	if err := checkChunkSize(cfg.ChunkSize); err != nil {
		return nil, nil, err
	}

	id := rand.GenerateUuid()
	logger := loggerOrNop(cfg.Logger).With(zap.String("session", id))
	s := &ClientSession{
		id:              id,
		config:          cfg,
		logger:          logger,
		protocol:        newProtocol(handshake.RoleClient, logger),
		transactions:    make(map[float64]clientTransaction),
		nextTransaction: connectTransactionID + 1,
	}

	start, err := s.protocol.handshake.Start()
	if err != nil {
		return nil, nil, errors.WithMessage(err, "starting handshake")
	}
	return s, []Result{OutboundPacket{Packet: chunk.Packet{Bytes: start}}}, nil
}

func (s *ClientSession) ID() string {
	return s.id
}

func (s *ClientSession) State() SessionState {
	switch {
	case s.protocol.closed:
		return StateClosed
	case !s.protocol.handshakeDone():
		return StateHandshakePending
	case !s.connected:
		return StateAwaitingConnect
	case !s.hasStream:
		return StateConnected
	}
	return s.state
}

// StreamID returns the id of the stream created with RequestStreamCreation.
func (s *ClientSession) StreamID() (uint32, bool) {
	return s.streamID, s.hasStream
}

// HandleInput processes bytes received from the server. Errors are fatal: the connection must be closed.
func (s *ClientSession) HandleInput(data []byte) ([]Result, error) {
	return s.protocol.feed(data, s)
}

func (s *ClientSession) handshakeCompleted() ([]Result, error) {
	var results []Result
	if s.config.ChunkSize != chunk.DefaultMaxChunkSize {
		packet, err := s.protocol.setChunkSize(s.config.ChunkSize)
		if err != nil {
			return nil, err
		}
		results = append(results, packet)
	}
	packet, err := s.protocol.setWindowAckSize(s.config.WindowAckSize)
	if err != nil {
		return nil, err
	}
	return append(results, packet), nil
}

func (s *ClientSession) invalidState(request string) error {
	return errors.Wrapf(ErrInvalidStateTransition, "cannot %s while %s", request, s.State())
}

// RequestConnection asks the server to connect to app.
func (s *ClientSession) RequestConnection(app string) ([]Result, error) {
	if s.State() != StateAwaitingConnect || s.hasTransaction(connectTransaction) {
		return nil, s.invalidState("connect")
	}

	results, err := s.protocol.sendAll(0, &message.Amf0Command{
		Name:          "connect",
		TransactionID: connectTransactionID,
		CommandObject: map[string]interface{}{
			"app":            app,
			"flashVer":       s.config.FlashVersion,
			"tcUrl":          s.config.TcURL,
			"objectEncoding": float64(0),
		},
	})
	if err != nil {
		return nil, err
	}
	s.transactions[connectTransactionID] = clientTransaction{kind: connectTransaction, appName: app}
	s.logger.Info("requesting connection", zap.String("app", app))
	return results, nil
}

func (s *ClientSession) hasTransaction(kind transactionKind) bool {
	for _, t := range s.transactions {
		if t.kind == kind {
			return true
		}
	}
	return false
}

// RequestStreamCreation asks the server for a stream to publish or play on.
func (s *ClientSession) RequestStreamCreation() ([]Result, error) {
	if s.State() != StateConnected || s.hasTransaction(createStreamTransaction) {
		return nil, s.invalidState("create a stream")
	}

	id := s.nextTransaction
	results, err := s.protocol.sendAll(0, &message.Amf0Command{Name: "createStream", TransactionID: id})
	if err != nil {
		return nil, err
	}
	s.nextTransaction++
	s.transactions[id] = clientTransaction{kind: createStreamTransaction}
	return results, nil
}

func (s *ClientSession) idleStream(request string) error {
	if s.State() != StateStreamCreated || s.pending != "" {
		return s.invalidState(request)
	}
	return nil
}

// RequestPublishing asks the server to publish on the created stream.
func (s *ClientSession) RequestPublishing(streamKey string, mode PublishMode) ([]Result, error) {
	if err := s.idleStream("publish"); err != nil {
		return nil, err
	}

	results, err := s.protocol.sendAll(s.streamID, &message.Amf0Command{
		Name:      "publish",
		Arguments: []interface{}{streamKey, string(mode)},
	})
	if err != nil {
		return nil, err
	}
	s.pending = "publish"
	s.streamKey = streamKey
	s.logger.Info("requesting publish", zap.String("streamKey", streamKey))
	return results, nil
}

// RequestPlayback asks the server to play streamKey on the created stream.
func (s *ClientSession) RequestPlayback(streamKey string) ([]Result, error) {
	if err := s.idleStream("play"); err != nil {
		return nil, err
	}

	results, err := s.protocol.sendAll(0, &message.UserControl{
		Event:        message.SetBufferLength,
		StreamID:     s.streamID,
		BufferLength: s.config.PlaybackBufferLength,
	})
	if err != nil {
		return nil, err
	}
	play, err := s.protocol.sendAll(s.streamID, &message.Amf0Command{
		Name:      "play",
		Arguments: []interface{}{streamKey},
	})
	if err != nil {
		return nil, err
	}
	s.pending = "play"
	s.streamKey = streamKey
	s.logger.Info("requesting playback", zap.String("streamKey", streamKey))
	return append(results, play...), nil
}

// StopPublishing deletes the stream being published on. A new stream must be created to publish again.
func (s *ClientSession) StopPublishing() ([]Result, error) {
	if s.State() != StatePublishing {
		return nil, s.invalidState("stop publishing")
	}
	return s.deleteStream()
}

// StopPlayback deletes the stream being played on. A new stream must be created to play again.
func (s *ClientSession) StopPlayback() ([]Result, error) {
	if s.State() != StatePlaying {
		return nil, s.invalidState("stop playing")
	}
	return s.deleteStream()
}

func (s *ClientSession) deleteStream() ([]Result, error) {
	results, err := s.protocol.sendAll(0, &message.Amf0Command{
		Name:      "deleteStream",
		Arguments: []interface{}{float64(s.streamID)},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stream deleted", zap.Uint32("stream", s.streamID), zap.String("streamKey", s.streamKey))
	s.hasStream = false
	s.streamID = 0
	s.streamKey = ""
	s.pending = ""
	return results, nil
}

// PublishMetadata sends metadata about the stream being published.
func (s *ClientSession) PublishMetadata(metadata *StreamMetadata) (OutboundPacket, error) {
	if s.State() != StatePublishing {
		return OutboundPacket{}, s.invalidState("publish metadata")
	}
	return s.protocol.send(&message.Amf0Data{
		Values: []interface{}{"@setDataFrame", "onMetaData", metadata.Properties()},
	}, s.streamID)
}

func (s *ClientSession) PublishAudioData(data []byte, timestamp uint32, canBeDropped bool) (OutboundPacket, error) {
	if s.State() != StatePublishing {
		return OutboundPacket{}, s.invalidState("publish audio")
	}
	return s.protocol.sendAt(&message.AudioData{Data: data}, s.streamID, timestamp, canBeDropped)
}

func (s *ClientSession) PublishVideoData(data []byte, timestamp uint32, canBeDropped bool) (OutboundPacket, error) {
	if s.State() != StatePublishing {
		return OutboundPacket{}, s.invalidState("publish video")
	}
	return s.protocol.sendAt(&message.VideoData{Data: data}, s.streamID, timestamp, canBeDropped)
}

func (s *ClientSession) SendPingRequest() (OutboundPacket, error) {
	if s.protocol.closed {
		return OutboundPacket{}, ErrSessionClosed
	}
	return s.protocol.pingRequest()
}

// Close ends the session. It can't be used anymore afterwards.
func (s *ClientSession) Close() {
	s.protocol.closed = true
}

func (s *ClientSession) handleMessage(raw *chunk.Message, msg message.Message) ([]Result, error) {
	switch m := msg.(type) {
	case *message.Amf0Command:
		return s.handleCommand(raw.StreamID, m), nil
	case *message.Amf0Data:
		return s.handleData(raw.StreamID, m), nil
	case *message.AudioData:
		return s.handleMedia(raw, MediaAudio, m.Data), nil
	case *message.VideoData:
		return s.handleMedia(raw, MediaVideo, m.Data), nil
	case *message.UserControl:
		if m.Event == message.StreamEOF {
			s.logger.Debug("stream ended", zap.Uint32("stream", m.StreamID))
			return []Result{StreamEnded{StreamID: m.StreamID}}, nil
		}
		s.logger.Debug("user control event received", zap.Uint16("event", uint16(m.Event)), zap.Uint32("stream", m.StreamID))
	}
	return nil, nil
}

func (s *ClientSession) handleCommand(streamID uint32, cmd *message.Amf0Command) []Result {
	switch cmd.Name {
	case "_result", "_error":
		t, ok := s.transactions[cmd.TransactionID]
		if !ok {
			return []Result{UnknownTransactionResult{Command: cmd}}
		}
		delete(s.transactions, cmd.TransactionID)
		if t.kind == connectTransaction {
			return s.onConnectResult(t, cmd)
		}
		return s.onCreateStreamResult(cmd)
	case "onStatus":
		return s.onStatus(streamID, cmd)
	}
	return []Result{UnhandledCommand{StreamID: streamID, Command: cmd}}
}

// statusArgument returns the status object of a _result, _error or onStatus.
func statusArgument(cmd *message.Amf0Command) map[string]interface{} {
	for _, arg := range cmd.Arguments {
		if info, ok := arg.(map[string]interface{}); ok {
			return info
		}
	}
	return map[string]interface{}{}
}

func (s *ClientSession) onConnectResult(t clientTransaction, cmd *message.Amf0Command) []Result {
	info := statusArgument(cmd)
	code, _ := info["code"].(string)
	description, _ := info["description"].(string)

	if cmd.Name == "_error" {
		s.logger.Info("connection rejected", zap.String("code", code), zap.String("description", description))
		return []Result{ConnectionRejected{Code: code, Description: description}}
	}
	s.connected = true
	s.appName = t.appName
	s.logger.Info("connected", zap.String("app", t.appName))
	return []Result{ConnectionAccepted{AppName: t.appName, Info: info}}
}

func (s *ClientSession) onCreateStreamResult(cmd *message.Amf0Command) []Result {
	id, ok := numberArgument(cmd.Arguments, 0)
	if cmd.Name == "_error" || !ok {
		info := statusArgument(cmd)
		code, _ := info["code"].(string)
		description, _ := info["description"].(string)
		if !ok && cmd.Name == "_result" {
			description = "no stream id in createStream result"
		}
		return []Result{RequestRejected{Command: "createStream", Code: code, Description: description}}
	}

	s.streamID = uint32(id)
	s.hasStream = true
	s.state = StateStreamCreated
	s.logger.Debug("stream created", zap.Uint32("stream", s.streamID))
	return []Result{StreamCreated{StreamID: s.streamID}}
}

func (s *ClientSession) onStatus(streamID uint32, cmd *message.Amf0Command) []Result {
	info := statusArgument(cmd)
	level, _ := info["level"].(string)
	code, _ := info["code"].(string)
	description, _ := info["description"].(string)
	s.logger.Debug("status received", zap.String("level", level), zap.String("code", code))

	if !s.hasStream || streamID != s.streamID {
		return []Result{UnhandledStatus{StreamID: streamID, Level: level, Code: code, Description: description}}
	}

	switch {
	case s.pending == "publish" && code == publishStart:
		s.pending = ""
		s.state = StatePublishing
		return []Result{PublishAccepted{StreamKey: s.streamKey, StreamID: s.streamID}}
	case s.pending == "play" && code == playStart:
		s.pending = ""
		s.state = StatePlaying
		return []Result{PlaybackAccepted{StreamKey: s.streamKey, StreamID: s.streamID}}
	case s.pending != "" && level == levelError:
		command := s.pending
		s.pending = ""
		s.streamKey = ""
		s.logger.Info("request rejected", zap.String("command", command), zap.String("code", code))
		return []Result{RequestRejected{Command: command, Code: code, Description: description}}
	case s.state == StatePlaying && (code == playStop || code == playUnpublishNotify):
		// StreamEnded is raised for the StreamEOF event that comes with it
		s.state = StateStreamCreated
		s.logger.Info("playback stopped", zap.String("code", code))
		return nil
	}
	return []Result{UnhandledStatus{StreamID: streamID, Level: level, Code: code, Description: description}}
}

func (s *ClientSession) handleData(streamID uint32, data *message.Amf0Data) []Result {
	values := data.Values
	if name, ok := stringArgument(values, 0); ok && name == "@setDataFrame" {
		values = values[1:]
	}
	if name, ok := stringArgument(values, 0); !ok || name != "onMetaData" || len(values) < 2 {
		s.logger.Debug("ignoring data message", zap.Uint32("stream", streamID), zap.Int("values", len(data.Values)))
		return nil
	}
	if s.State() != StatePlaying || streamID != s.streamID {
		s.logger.Debug("metadata received on a stream that isn't playing", zap.Uint32("stream", streamID))
		return nil
	}
	metadata, ok := ParseStreamMetadata(values[1])
	if !ok {
		s.logger.Debug("metadata isn't an object", zap.Uint32("stream", streamID))
		return nil
	}
	return []Result{MetadataReceived{StreamKey: s.streamKey, StreamID: streamID, Metadata: metadata}}
}

func (s *ClientSession) handleMedia(raw *chunk.Message, mediaType MediaType, data []byte) []Result {
	if s.State() != StatePlaying || raw.StreamID != s.streamID {
		s.logger.Debug("media received on a stream that isn't playing",
			zap.Stringer("type", mediaType),
			zap.Uint32("stream", raw.StreamID))
		return nil
	}
	return []Result{MediaReceived{
		AppName:   s.appName,
		StreamKey: s.streamKey,
		StreamID:  raw.StreamID,
		Type:      mediaType,
		Timestamp: raw.Timestamp,
		Data:      data,
	}}
}
