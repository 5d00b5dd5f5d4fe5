package rtmp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/handshake"
	"github.com/torresjeff/rtmpcore/message"
	"github.com/torresjeff/rtmpcore/rand"
	"github.com/torresjeff/rtmpcore/video"
	"go.uber.org/zap"
)

type SessionState uint8

const (
	StateHandshakePending SessionState = iota
	// StateAwaitingConnect means the handshake is done but no application has been connected to yet.
	StateAwaitingConnect
	StateConnected
	StateStreamCreated
	StatePublishing
	StatePlaying
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateHandshakePending:
		return "handshake pending"
	case StateAwaitingConnect:
		return "awaiting connect"
	case StateConnected:
		return "connected"
	case StateStreamCreated:
		return "stream created"
	case StatePublishing:
		return "publishing"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("SessionState(%d)", uint8(s))
}

type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamPublishing
	StreamPlaying
)

func (s StreamState) String() string {
	switch s {
	case StreamPublishing:
		return "publishing"
	case StreamPlaying:
		return "playing"
	}
	return "idle"
}

// Stream is a message stream created with createStream.
type Stream struct {
	ID        uint32
	State     StreamState
	StreamKey string
	Mode      PublishMode
	// pending is set while a publish or play request on the stream waits for the host's decision.
	pending bool
}

type requestKind uint8

const (
	connectRequest requestKind = iota
	publishRequest
	playRequest
)

type serverRequest struct {
	kind          requestKind
	transactionID float64
	appName       string
	streamID      uint32
	streamKey     string
	mode          PublishMode
	reset         bool
}

// ServerSession is the server side of one RTMP connection. It never touches the connection itself: the host passes
// every byte read from the client to HandleInput and writes every OutboundPacket it gets back, in order.
//
// Connection, publish and play requests are raised as events and wait for the host to call AcceptRequest or
// RejectRequest. A ServerSession must not be used from multiple goroutines at the same time.
type ServerSession struct {
	id       string
	config   ServerConfig
	logger   *zap.Logger
	protocol *protocol

	connected      bool
	connectPending bool
	appName        string
	streams        map[uint32]*Stream
	nextStreamID   uint32
	requests       map[uint32]*serverRequest
	nextRequestID  uint32
}

func NewServerSession(cfg ServerConfig) (*ServerSession, error) {
	if err := checkChunkSize(cfg.ChunkSize); err != nil {
		return nil, err
	}

	id := rand.GenerateUuid()
	logger := loggerOrNop(cfg.Logger).With(zap.String("session", id))
	return &ServerSession{
		id:            id,
		config:        cfg,
		logger:        logger,
		protocol:      newProtocol(handshake.RoleServer, logger),
		streams:       make(map[uint32]*Stream),
		nextStreamID:  1,
		requests:      make(map[uint32]*serverRequest),
		nextRequestID: 1,
	}, nil
}

func (s *ServerSession) ID() string {
	return s.id
}

func (s *ServerSession) AppName() string {
	return s.appName
}

func (s *ServerSession) State() SessionState {
	switch {
	case s.protocol.closed:
		return StateClosed
	case !s.protocol.handshakeDone():
		return StateHandshakePending
	case !s.connected:
		return StateAwaitingConnect
	case len(s.streams) == 0:
		return StateConnected
	}

	state := StateStreamCreated
	for _, stream := range s.streams {
		switch stream.State {
		case StreamPublishing:
			return StatePublishing
		case StreamPlaying:
			state = StatePlaying
		}
	}
	return state
}

// Stream returns a copy of the stream with the given id.
func (s *ServerSession) Stream(streamID uint32) (Stream, bool) {
	stream, ok := s.streams[streamID]
	if !ok {
		return Stream{}, false
	}
	return *stream, true
}

// HandleInput processes bytes received from the client. Errors are fatal: the connection must be closed.
func (s *ServerSession) HandleInput(data []byte) ([]Result, error) {
	return s.protocol.feed(data, s)
}

func (s *ServerSession) handshakeCompleted() ([]Result, error) {
	if s.config.ChunkSize == chunk.DefaultMaxChunkSize {
		return nil, nil
	}
	packet, err := s.protocol.setChunkSize(s.config.ChunkSize)
	if err != nil {
		return nil, err
	}
	return []Result{packet}, nil
}

func (s *ServerSession) handleMessage(raw *chunk.Message, msg message.Message) ([]Result, error) {
	switch m := msg.(type) {
	case *message.Amf0Command:
		return s.handleCommand(raw.StreamID, m)
	case *message.Amf0Data:
		return s.handleData(raw.StreamID, m), nil
	case *message.AudioData:
		return s.handleMedia(raw, MediaAudio, m.Data), nil
	case *message.VideoData:
		return s.handleMedia(raw, MediaVideo, m.Data), nil
	case *message.UserControl:
		s.logger.Debug("user control event received",
			zap.Uint16("event", uint16(m.Event)),
			zap.Uint32("stream", m.StreamID),
			zap.Uint32("bufferLength", m.BufferLength))
	}
	return nil, nil
}

func (s *ServerSession) handleCommand(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	s.logger.Debug("command received", zap.String("name", cmd.Name), zap.Float64("transaction", cmd.TransactionID))

	switch cmd.Name {
	case "connect":
		return s.onConnect(streamID, cmd)
	case "createStream":
		return s.onCreateStream(streamID, cmd)
	case "publish":
		return s.onPublish(streamID, cmd)
	case "play":
		return s.onPlay(streamID, cmd)
	case "closeStream":
		return s.onCloseStream(streamID, cmd)
	case "deleteStream":
		return s.onDeleteStream(cmd), nil
	case "releaseStream", "FCPublish", "FCUnpublish":
		if !s.connected {
			return s.commandError(streamID, cmd, callFailed, cmd.Name+" before connect")
		}
		if cmd.TransactionID == 0 {
			return nil, nil
		}
		return s.protocol.sendAll(streamID, &message.Amf0Command{Name: "_result", TransactionID: cmd.TransactionID})
	}

	return []Result{UnhandledCommand{StreamID: streamID, Command: cmd}}, nil
}

// commandError answers a command that can't be carried out. Commands that expect a result get an _error, the others
// an onStatus.
func (s *ServerSession) commandError(streamID uint32, cmd *message.Amf0Command, code string, description string) ([]Result, error) {
	s.logger.Info("refusing command", zap.String("name", cmd.Name), zap.String("code", code), zap.String("reason", description))

	status := statusObject(levelError, code, description)
	if cmd.TransactionID != 0 {
		return s.protocol.sendAll(streamID, &message.Amf0Command{
			Name:          "_error",
			TransactionID: cmd.TransactionID,
			Arguments:     []interface{}{status},
		})
	}
	return s.protocol.sendAll(streamID, &message.Amf0Command{Name: "onStatus", Arguments: []interface{}{status}})
}

func onStatus(level string, code string, description string) *message.Amf0Command {
	return &message.Amf0Command{Name: "onStatus", Arguments: []interface{}{statusObject(level, code, description)}}
}

func (s *ServerSession) addRequest(req *serverRequest) uint32 {
	id := s.nextRequestID
	s.nextRequestID++
	s.requests[id] = req
	return id
}

func (s *ServerSession) onConnect(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	if s.connected || s.connectPending {
		return s.commandError(streamID, cmd, connectRejected, "already connected")
	}
	app, ok := stringProperty(cmd.CommandObject, "app")
	if !ok {
		return s.commandError(streamID, cmd, connectRejected, "no application name was given")
	}
	app = strings.TrimSuffix(app, "/")

	tcURL, ok := stringProperty(cmd.CommandObject, "tcUrl")
	if !ok {
		tcURL, _ = stringProperty(cmd.CommandObject, "tcurl")
	}
	flashVersion, ok := stringProperty(cmd.CommandObject, "flashVer")
	if !ok {
		flashVersion, _ = stringProperty(cmd.CommandObject, "flashver")
	}

	s.connectPending = true
	id := s.addRequest(&serverRequest{kind: connectRequest, transactionID: cmd.TransactionID, appName: app})
	s.logger.Info("connection requested", zap.String("app", app), zap.String("tcUrl", tcURL))
	return []Result{ConnectionRequested{
		RequestID:    id,
		AppName:      app,
		TcURL:        tcURL,
		FlashVersion: flashVersion,
	}}, nil
}

func (s *ServerSession) onCreateStream(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	if !s.connected {
		return s.commandError(streamID, cmd, callFailed, "createStream before connect")
	}

	id := s.nextStreamID
	s.nextStreamID++
	s.streams[id] = &Stream{ID: id}
	s.logger.Debug("stream created", zap.Uint32("stream", id))
	return s.protocol.sendAll(streamID, &message.Amf0Command{
		Name:          "_result",
		TransactionID: cmd.TransactionID,
		Arguments:     []interface{}{float64(id)},
	})
}

// idleStream returns the stream a publish or play command may be carried out on.
func (s *ServerSession) idleStream(streamID uint32) (*Stream, string) {
	if !s.connected {
		return nil, "not connected"
	}
	stream, ok := s.streams[streamID]
	if !ok {
		return nil, fmt.Sprintf("stream %d was not created", streamID)
	}
	if stream.State != StreamIdle || stream.pending {
		return nil, fmt.Sprintf("stream %d is busy", streamID)
	}
	return stream, ""
}

func (s *ServerSession) onPublish(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	stream, reason := s.idleStream(streamID)
	if stream == nil {
		return s.commandError(streamID, cmd, streamFailed, reason)
	}

	key, ok := stringArgument(cmd.Arguments, 0)
	if !ok || key == "" {
		return s.commandError(streamID, cmd, publishBadName, "no stream key was given")
	}
	mode := PublishLive
	if raw, ok := stringArgument(cmd.Arguments, 1); ok {
		if mode, ok = parsePublishMode(raw); !ok {
			return s.commandError(streamID, cmd, streamFailed, fmt.Sprintf("unknown publish mode %q", raw))
		}
	}

	stream.pending = true
	id := s.addRequest(&serverRequest{kind: publishRequest, streamID: streamID, streamKey: key, mode: mode})
	s.logger.Info("publish requested", zap.String("streamKey", key), zap.String("mode", string(mode)))
	return []Result{PublishRequested{
		RequestID: id,
		AppName:   s.appName,
		StreamKey: key,
		StreamID:  streamID,
		Mode:      mode,
	}}, nil
}

func (s *ServerSession) onPlay(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	stream, reason := s.idleStream(streamID)
	if stream == nil {
		return s.commandError(streamID, cmd, streamFailed, reason)
	}

	key, ok := stringArgument(cmd.Arguments, 0)
	if !ok || key == "" {
		return s.commandError(streamID, cmd, playStreamNotFound, "no stream key was given")
	}
	start, ok := numberArgument(cmd.Arguments, 1)
	if !ok {
		start = -2
	}
	duration, ok := numberArgument(cmd.Arguments, 2)
	if !ok {
		duration = -1
	}
	var reset bool
	if len(cmd.Arguments) > 3 {
		reset, _ = cmd.Arguments[3].(bool)
	}

	stream.pending = true
	id := s.addRequest(&serverRequest{kind: playRequest, streamID: streamID, streamKey: key, reset: reset})
	s.logger.Info("play requested", zap.String("streamKey", key))
	return []Result{PlayRequested{
		RequestID: id,
		AppName:   s.appName,
		StreamKey: key,
		StreamID:  streamID,
		Start:     start,
		Duration:  duration,
		Reset:     reset,
	}}, nil
}

func (s *ServerSession) onCloseStream(streamID uint32, cmd *message.Amf0Command) ([]Result, error) {
	// closeStream is sent on the stream being closed, some clients send it on stream 0 with the id as an argument
	if streamID == 0 {
		if id, ok := numberArgument(cmd.Arguments, 0); ok {
			streamID = uint32(id)
		}
	}
	stream, ok := s.streams[streamID]
	if !ok {
		s.logger.Debug("closeStream on unknown stream", zap.Uint32("stream", streamID))
		return nil, nil
	}

	wasPublishing := stream.State == StreamPublishing
	key := stream.StreamKey
	s.dropStreamRequests(streamID)
	results := s.finishStream(stream)
	if !wasPublishing {
		return results, nil
	}
	status, err := s.protocol.sendAll(streamID, onStatus(levelStatus, unpublishSuccess, key+" is now unpublished."))
	if err != nil {
		return nil, err
	}
	return append(status, results...), nil
}

func (s *ServerSession) onDeleteStream(cmd *message.Amf0Command) []Result {
	id, ok := numberArgument(cmd.Arguments, 0)
	if !ok {
		s.logger.Debug("deleteStream without a stream id")
		return nil
	}
	streamID := uint32(id)
	stream, ok := s.streams[streamID]
	if !ok {
		s.logger.Debug("deleteStream on unknown stream", zap.Uint32("stream", streamID))
		return nil
	}

	results := s.finishStream(stream)
	delete(s.streams, streamID)
	s.dropStreamRequests(streamID)
	return results
}

// dropStreamRequests forgets the publish and play requests still waiting on the stream.
func (s *ServerSession) dropStreamRequests(streamID uint32) {
	for requestID, req := range s.requests {
		if req.kind != connectRequest && req.streamID == streamID {
			delete(s.requests, requestID)
		}
	}
	s.clearPending(streamID)
}

// finishStream returns the stream to the idle state and raises the event for what it was doing.
func (s *ServerSession) finishStream(stream *Stream) []Result {
	var results []Result
	switch stream.State {
	case StreamPublishing:
		s.logger.Info("publish finished", zap.String("streamKey", stream.StreamKey))
		results = append(results, PublishFinished{AppName: s.appName, StreamKey: stream.StreamKey, StreamID: stream.ID})
	case StreamPlaying:
		s.logger.Info("play finished", zap.String("streamKey", stream.StreamKey))
		results = append(results, PlayFinished{AppName: s.appName, StreamKey: stream.StreamKey, StreamID: stream.ID})
	}
	stream.State = StreamIdle
	stream.StreamKey = ""
	stream.Mode = ""
	return results
}

func (s *ServerSession) handleData(streamID uint32, data *message.Amf0Data) []Result {
	values := data.Values
	if name, ok := stringArgument(values, 0); ok && name == "@setDataFrame" {
		values = values[1:]
	}
	if name, ok := stringArgument(values, 0); !ok || name != "onMetaData" || len(values) < 2 {
		s.logger.Debug("ignoring data message", zap.Uint32("stream", streamID), zap.Int("values", len(data.Values)))
		return nil
	}

	stream, ok := s.streams[streamID]
	if !ok || stream.State != StreamPublishing {
		s.logger.Debug("metadata received on a stream that isn't publishing", zap.Uint32("stream", streamID))
		return nil
	}
	metadata, ok := ParseStreamMetadata(values[1])
	if !ok {
		s.logger.Debug("metadata isn't an object", zap.Uint32("stream", streamID))
		return nil
	}
	return []Result{MetadataChanged{AppName: s.appName, StreamKey: stream.StreamKey, StreamID: streamID, Metadata: metadata}}
}

func (s *ServerSession) handleMedia(raw *chunk.Message, mediaType MediaType, data []byte) []Result {
	stream, ok := s.streams[raw.StreamID]
	if !ok || stream.State != StreamPublishing {
		s.logger.Debug("media received on a stream that isn't publishing",
			zap.Stringer("type", mediaType),
			zap.Uint32("stream", raw.StreamID))
		return nil
	}
	return []Result{MediaReceived{
		AppName:   s.appName,
		StreamKey: stream.StreamKey,
		StreamID:  raw.StreamID,
		Type:      mediaType,
		Timestamp: raw.Timestamp,
		Data:      data,
	}}
}

// AcceptRequest carries out a request raised by a ConnectionRequested, PublishRequested or PlayRequested event.
func (s *ServerSession) AcceptRequest(requestID uint32) ([]Result, error) {
	req, err := s.takeRequest(requestID)
	if err != nil {
		return nil, err
	}

	switch req.kind {
	case connectRequest:
		return s.acceptConnect(req)
	case publishRequest:
		return s.acceptPublish(req)
	default:
		return s.acceptPlay(req)
	}
}

// RejectRequest refuses a request, description is sent to the client.
func (s *ServerSession) RejectRequest(requestID uint32, description string) ([]Result, error) {
	req, err := s.takeRequest(requestID)
	if err != nil {
		return nil, err
	}

	switch req.kind {
	case connectRequest:
		s.connectPending = false
		s.logger.Info("connection rejected", zap.String("app", req.appName), zap.String("reason", description))
		return s.protocol.sendAll(0, &message.Amf0Command{
			Name:          "_error",
			TransactionID: req.transactionID,
			Arguments:     []interface{}{statusObject(levelError, connectRejected, description)},
		})
	case publishRequest:
		s.clearPending(req.streamID)
		s.logger.Info("publish rejected", zap.String("streamKey", req.streamKey), zap.String("reason", description))
		return s.protocol.sendAll(req.streamID, onStatus(levelError, publishBadName, description))
	default:
		s.clearPending(req.streamID)
		s.logger.Info("play rejected", zap.String("streamKey", req.streamKey), zap.String("reason", description))
		return s.protocol.sendAll(req.streamID, onStatus(levelError, playStreamNotFound, description))
	}
}

func (s *ServerSession) takeRequest(requestID uint32) (*serverRequest, error) {
	if s.protocol.closed {
		return nil, ErrSessionClosed
	}
	req, ok := s.requests[requestID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRequest, "request %d", requestID)
	}
	delete(s.requests, requestID)
	return req, nil
}

func (s *ServerSession) clearPending(streamID uint32) {
	if stream, ok := s.streams[streamID]; ok {
		stream.pending = false
	}
}

func (s *ServerSession) acceptConnect(req *serverRequest) ([]Result, error) {
	s.connectPending = false
	s.connected = true
	s.appName = req.appName
	s.logger.Info("connection accepted", zap.String("app", req.appName))

	info := statusObject(levelStatus, connectSuccess, "Connection succeeded.")
	info["objectEncoding"] = float64(0)
	s.protocol.windowAckSize = s.config.WindowAckSize
	return s.protocol.sendAll(0,
		&message.WindowAckSize{Size: s.config.WindowAckSize},
		&message.SetPeerBandwidth{Size: s.config.PeerBandwidth, LimitType: message.LimitDynamic},
		&message.Amf0Command{
			Name:          "_result",
			TransactionID: req.transactionID,
			CommandObject: map[string]interface{}{
				"fmsVer":       s.config.FlashMediaServerVersion,
				"capabilities": s.config.Capabilities,
			},
			Arguments: []interface{}{info},
		},
	)
}

func (s *ServerSession) acceptPublish(req *serverRequest) ([]Result, error) {
	stream, ok := s.streams[req.streamID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStream, "stream %d", req.streamID)
	}
	stream.pending = false
	stream.State = StreamPublishing
	stream.StreamKey = req.streamKey
	stream.Mode = req.mode
	s.logger.Info("publish accepted", zap.String("streamKey", req.streamKey), zap.Uint32("stream", req.streamID))

	results, err := s.protocol.sendAll(0, &message.UserControl{Event: message.StreamBegin, StreamID: req.streamID})
	if err != nil {
		return nil, err
	}
	status, err := s.protocol.sendAll(req.streamID,
		onStatus(levelStatus, publishStart, req.streamKey+" is now published."))
	if err != nil {
		return nil, err
	}
	return append(results, status...), nil
}

func (s *ServerSession) acceptPlay(req *serverRequest) ([]Result, error) {
	stream, ok := s.streams[req.streamID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStream, "stream %d", req.streamID)
	}
	stream.pending = false
	stream.State = StreamPlaying
	stream.StreamKey = req.streamKey
	s.logger.Info("play accepted", zap.String("streamKey", req.streamKey), zap.Uint32("stream", req.streamID))

	results, err := s.protocol.sendAll(0, &message.UserControl{Event: message.StreamBegin, StreamID: req.streamID})
	if err != nil {
		return nil, err
	}

	var msgs []message.Message
	if req.reset {
		msgs = append(msgs, onStatus(levelStatus, playReset, "Playing and resetting "+req.streamKey+"."))
	}
	msgs = append(msgs,
		onStatus(levelStatus, playStart, "Started playing "+req.streamKey+"."),
		&message.Amf0Data{Values: []interface{}{"|RtmpSampleAccess", false, false}},
		&message.Amf0Data{Values: []interface{}{"onStatus", map[string]interface{}{"code": dataStart}}},
	)
	status, err := s.protocol.sendAll(req.streamID, msgs...)
	if err != nil {
		return nil, err
	}
	return append(results, status...), nil
}

func (s *ServerSession) playingStream(streamID uint32) error {
	if s.protocol.closed {
		return ErrSessionClosed
	}
	stream, ok := s.streams[streamID]
	if !ok {
		return errors.Wrapf(ErrUnknownStream, "stream %d", streamID)
	}
	if stream.State != StreamPlaying {
		return errors.Wrapf(ErrInvalidStateTransition, "stream %d is %s", streamID, stream.State)
	}
	return nil
}

// SendMetadata sends onMetaData to a client playing on streamID.
func (s *ServerSession) SendMetadata(streamID uint32, metadata *StreamMetadata) (OutboundPacket, error) {
	if err := s.playingStream(streamID); err != nil {
		return OutboundPacket{}, err
	}
	return s.protocol.send(&message.Amf0Data{Values: []interface{}{"onMetaData", metadata.Properties()}}, streamID)
}

func (s *ServerSession) SendAudioData(streamID uint32, data []byte, timestamp uint32) (OutboundPacket, error) {
	if err := s.playingStream(streamID); err != nil {
		return OutboundPacket{}, err
	}
	return s.protocol.sendAt(&message.AudioData{Data: data}, streamID, timestamp, false)
}

// SendVideoData sends video to a client playing on streamID. Packets holding anything but a key frame can be dropped
// by the host when the client can't keep up.
func (s *ServerSession) SendVideoData(streamID uint32, data []byte, timestamp uint32) (OutboundPacket, error) {
	if err := s.playingStream(streamID); err != nil {
		return OutboundPacket{}, err
	}
	return s.protocol.sendAt(&message.VideoData{Data: data}, streamID, timestamp, !video.IsKeyFrame(data))
}

func (s *ServerSession) SendPingRequest() (OutboundPacket, error) {
	if s.protocol.closed {
		return OutboundPacket{}, ErrSessionClosed
	}
	return s.protocol.pingRequest()
}

// FinishPlaying tells a client playing on streamID that the stream ended, ie. because its publisher went away.
func (s *ServerSession) FinishPlaying(streamID uint32) ([]Result, error) {
	if err := s.playingStream(streamID); err != nil {
		return nil, err
	}
	stream := s.streams[streamID]
	key := stream.StreamKey
	stream.State = StreamIdle
	stream.StreamKey = ""

	results, err := s.protocol.sendAll(0, &message.UserControl{Event: message.StreamEOF, StreamID: streamID})
	if err != nil {
		return nil, err
	}
	status, err := s.protocol.sendAll(streamID, onStatus(levelStatus, playStop, "Stopped playing "+key+"."))
	if err != nil {
		return nil, err
	}
	return append(results, status...), nil
}

// Close ends the session. Events are returned for every stream that was publishing or playing, after which the
// session can't be used anymore.
func (s *ServerSession) Close() []Result {
	if s.protocol.closed {
		return nil
	}
	s.protocol.closed = true

	ids := make([]uint32, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var results []Result
	for _, id := range ids {
		results = append(results, s.finishStream(s.streams[id])...)
	}
	s.requests = make(map[uint32]*serverRequest)
	s.logger.Debug("session closed")
	return results
}

func stringArgument(args []interface{}, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	value, ok := args[i].(string)
	return value, ok
}

func numberArgument(args []interface{}, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	value, ok := args[i].(float64)
	return value, ok
}
