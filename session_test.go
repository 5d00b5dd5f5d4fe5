package rtmp

import (
	"bytes"
	"testing"

	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/message"
)

type sentMessage struct {
	streamID uint32
	msg      message.Message
}

// harness connects a client and a server session in memory. Everything the server sends to the client after the
// handshake is also decoded on the side so tests can check it.
type harness struct {
	t      *testing.T
	client *ClientSession
	server *ServerSession
	tap    *chunk.Deserializer
	// sent holds what the server sent during the last toClient call.
	sent []sentMessage
}

func outbound(results []Result) []byte {
	var buf bytes.Buffer
	for _, r := range results {
		if packet, ok := r.(OutboundPacket); ok {
			buf.Write(packet.Bytes)
		}
	}
	return buf.Bytes()
}

func events(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if _, ok := r.(OutboundPacket); !ok {
			out = append(out, r)
		}
	}
	return out
}

func newHarness(t *testing.T, clientConfig ClientConfig, serverConfig ServerConfig) *harness {
	t.Helper()
	client, start, err := NewClientSession(clientConfig)
	if err != nil {
		t.Fatalf("expected no error creating client session, but got %v", err)
	}
	server, err := NewServerSession(serverConfig)
	if err != nil {
		t.Fatalf("expected no error creating server session, but got %v", err)
	}
	h := &harness{t: t, client: client, server: server, tap: chunk.NewDeserializer()}

	s0s1s2, err := server.HandleInput(outbound(start))
	if err != nil {
		t.Fatalf("expected no error from server handshake, but got %v", err)
	}
	fromClient, err := client.HandleInput(outbound(s0s1s2))
	if err != nil {
		t.Fatalf("expected no error from client handshake, but got %v", err)
	}
	if client.State() != StateAwaitingConnect {
		t.Fatalf("expected client state to be %s, but got %s", StateAwaitingConnect, client.State())
	}
	h.toClient(h.toServer(fromClient))
	if server.State() != StateAwaitingConnect {
		t.Fatalf("expected server state to be %s, but got %s", StateAwaitingConnect, server.State())
	}
	return h
}

func newDefaultHarness(t *testing.T) *harness {
	return newHarness(t, DefaultClientConfig(), DefaultServerConfig())
}

// toServer delivers the packets in results to the server and returns what it produced.
func (h *harness) toServer(results []Result) []Result {
	h.t.Helper()
	out, err := h.server.HandleInput(outbound(results))
	if err != nil {
		h.t.Fatalf("expected no error from server, but got %v", err)
	}
	return out
}

// toClient delivers the packets in results to the client and returns what it produced.
func (h *harness) toClient(results []Result) []Result {
	h.t.Helper()
	data := outbound(results)
	h.sent = nil
	raw, err := h.tap.Next(data)
	for ; raw != nil && err == nil; raw, err = h.tap.Next(nil) {
		msg, decodeErr := message.Decode(raw)
		if decodeErr != nil {
			h.t.Fatalf("expected server messages to decode, but got %v", decodeErr)
		}
		if size, ok := msg.(*message.SetChunkSize); ok {
			if err := h.tap.SetMaxChunkSize(size.Size); err != nil {
				h.t.Fatalf("expected no error setting chunk size, but got %v", err)
			}
		}
		h.sent = append(h.sent, sentMessage{streamID: raw.StreamID, msg: msg})
	}
	if err != nil {
		h.t.Fatalf("expected server chunks to be valid, but got %v", err)
	}

	out, err := h.client.HandleInput(data)
	if err != nil {
		h.t.Fatalf("expected no error from client, but got %v", err)
	}
	return out
}

func (h *harness) connect(app string) {
	h.t.Helper()
	requested := events(h.toServer(h.request(h.client.RequestConnection(app))))
	if len(requested) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", requested)
	}
	ev, ok := requested[0].(ConnectionRequested)
	if !ok {
		h.t.Fatalf("expected a ConnectionRequested event, but got %T", requested[0])
	}
	accepted := events(h.toClient(h.accept(ev.RequestID)))
	if len(accepted) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", accepted)
	}
	if _, ok := accepted[0].(ConnectionAccepted); !ok {
		h.t.Fatalf("expected a ConnectionAccepted event, but got %T", accepted[0])
	}
}

func (h *harness) createStream() uint32 {
	h.t.Helper()
	created := events(h.toClient(h.toServer(h.request(h.client.RequestStreamCreation()))))
	if len(created) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", created)
	}
	ev, ok := created[0].(StreamCreated)
	if !ok {
		h.t.Fatalf("expected a StreamCreated event, but got %T", created[0])
	}
	return ev.StreamID
}

func (h *harness) publish(streamKey string) uint32 {
	h.t.Helper()
	h.connect("live")
	streamID := h.createStream()
	requested := events(h.toServer(h.request(h.client.RequestPublishing(streamKey, PublishLive))))
	if len(requested) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", requested)
	}
	ev := requested[0].(PublishRequested)
	accepted := events(h.toClient(h.accept(ev.RequestID)))
	if len(accepted) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", accepted)
	}
	if _, ok := accepted[0].(PublishAccepted); !ok {
		h.t.Fatalf("expected a PublishAccepted event, but got %T", accepted[0])
	}
	return streamID
}

func (h *harness) play(streamKey string) uint32 {
	h.t.Helper()
	h.connect("live")
	streamID := h.createStream()
	requested := events(h.toServer(h.request(h.client.RequestPlayback(streamKey))))
	if len(requested) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", requested)
	}
	ev := requested[0].(PlayRequested)
	accepted := events(h.toClient(h.accept(ev.RequestID)))
	if len(accepted) != 1 {
		h.t.Fatalf("expected 1 event, but got %+v", accepted)
	}
	if _, ok := accepted[0].(PlaybackAccepted); !ok {
		h.t.Fatalf("expected a PlaybackAccepted event, but got %T", accepted[0])
	}
	return streamID
}

func (h *harness) request(results []Result, err error) []Result {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("expected no error from client request, but got %v", err)
	}
	return results
}

func (h *harness) accept(requestID uint32) []Result {
	h.t.Helper()
	results, err := h.server.AcceptRequest(requestID)
	if err != nil {
		h.t.Fatalf("expected no error accepting request %d, but got %v", requestID, err)
	}
	return results
}

func (h *harness) packet(packet OutboundPacket, err error) []Result {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("expected no error, but got %v", err)
	}
	return []Result{packet}
}

// sentCommand returns the i-th message the server sent, which must be a command.
func (h *harness) sentCommand(i int) *message.Amf0Command {
	h.t.Helper()
	if i >= len(h.sent) {
		h.t.Fatalf("expected at least %d sent messages, but got %d", i+1, len(h.sent))
	}
	cmd, ok := h.sent[i].msg.(*message.Amf0Command)
	if !ok {
		h.t.Fatalf("expected message %d to be a command, but got %T", i, h.sent[i].msg)
	}
	return cmd
}

func statusCode(cmd *message.Amf0Command) string {
	code, _ := statusArgument(cmd)["code"].(string)
	return code
}

func TestPlayerReceivesPublishedMediaUnchanged(t *testing.T) {
	publisher := newDefaultHarness(t)
	player := newDefaultHarness(t)

	publisher.publish("mystream")
	playerStreamID := player.play("mystream")

	frames := []struct {
		mediaType MediaType
		timestamp uint32
		data      []byte
	}{
		{MediaVideo, 0, []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x64}},
		{MediaAudio, 0, []byte{0xAF, 0x00, 0x12, 0x10}},
		{MediaVideo, 33, append([]byte{0x27, 0x01, 0, 0, 0}, bytes.Repeat([]byte{0xAB}, 5000)...)},
		{MediaAudio, 23, append([]byte{0xAF, 0x01}, bytes.Repeat([]byte{0xCD}, 300)...)},
		{MediaVideo, 66, append([]byte{0x17, 0x01, 0, 0, 0}, bytes.Repeat([]byte{0xEF}, 9000)...)},
	}

	for _, frame := range frames {
		var sent OutboundPacket
		var err error
		if frame.mediaType == MediaVideo {
			sent, err = publisher.client.PublishVideoData(frame.data, frame.timestamp, false)
		} else {
			sent, err = publisher.client.PublishAudioData(frame.data, frame.timestamp, false)
		}
		received := events(publisher.toServer(publisher.packet(sent, err)))
		if len(received) != 1 {
			t.Fatalf("expected publisher's server to raise 1 event, but got %+v", received)
		}
		media := received[0].(MediaReceived)
		if media.StreamKey != "mystream" {
			t.Errorf("expected stream key to be mystream, but got %s", media.StreamKey)
		}

		// The host relays the media to the player's session
		var relayed OutboundPacket
		if media.Type == MediaVideo {
			relayed, err = player.server.SendVideoData(playerStreamID, media.Data, media.Timestamp)
		} else {
			relayed, err = player.server.SendAudioData(playerStreamID, media.Data, media.Timestamp)
		}
		played := events(player.toClient(player.packet(relayed, err)))
		if len(played) != 1 {
			t.Fatalf("expected player to raise 1 event, but got %+v", played)
		}
		got := played[0].(MediaReceived)
		if got.Type != frame.mediaType {
			t.Errorf("expected media type to be %s, but got %s", frame.mediaType, got.Type)
		}
		if got.Timestamp != frame.timestamp {
			t.Errorf("expected timestamp to be %d, but got %d", frame.timestamp, got.Timestamp)
		}
		if !bytes.Equal(got.Data, frame.data) {
			t.Errorf("expected payload of %d bytes to be relayed unchanged", len(frame.data))
		}
		if got.StreamKey != "mystream" || got.StreamID != playerStreamID {
			t.Errorf("expected media on mystream/%d, but got %s/%d", playerStreamID, got.StreamKey, got.StreamID)
		}
	}
}

func TestSessionsIgnoreZeroBytes(t *testing.T) {
	h := newDefaultHarness(t)
	h.connect("live")

	results, err := h.server.HandleInput(nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected server to return nothing, but got %v and %v", results, err)
	}
	results, err = h.client.HandleInput([]byte{})
	if err != nil || len(results) != 0 {
		t.Errorf("expected client to return nothing, but got %v and %v", results, err)
	}

	server, err := NewServerSession(DefaultServerConfig())
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	results, err = server.HandleInput(nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected new server to return nothing, but got %v and %v", results, err)
	}
	if server.State() != StateHandshakePending {
		t.Errorf("expected state to be %s, but got %s", StateHandshakePending, server.State())
	}
}

func TestSessionsAnswerPings(t *testing.T) {
	h := newDefaultHarness(t)

	ping, err := h.client.SendPingRequest()
	results := h.toServer(h.packet(ping, err))
	if len(events(results)) != 0 {
		t.Errorf("expected no events from a ping, but got %+v", events(results))
	}
	received := events(h.toClient(results))
	if len(received) != 1 {
		t.Fatalf("expected 1 event, but got %+v", received)
	}
	if _, ok := received[0].(PingResponseReceived); !ok {
		t.Errorf("expected a PingResponseReceived event, but got %T", received[0])
	}
	response := h.sent[0].msg.(*message.UserControl)
	if response.Event != message.PingResponse {
		t.Errorf("expected event to be %d, but got %d", message.PingResponse, response.Event)
	}

	ping, err = h.server.SendPingRequest()
	received = events(h.toServer(h.toClient(h.packet(ping, err))))
	if len(received) != 1 {
		t.Fatalf("expected 1 event, but got %+v", received)
	}
	if _, ok := received[0].(PingResponseReceived); !ok {
		t.Errorf("expected a PingResponseReceived event, but got %T", received[0])
	}
}

func TestSessionsAcknowledgeWindow(t *testing.T) {
	clientConfig := DefaultClientConfig()
	clientConfig.WindowAckSize = 1000
	h := newHarness(t, clientConfig, DefaultServerConfig())
	h.publish("mystream")

	before := h.server.protocol.bytesReceived
	sent, err := h.client.PublishVideoData(append([]byte{0x17, 0x01}, make([]byte, 1200)...), 0, false)
	results := h.toServer(h.packet(sent, err))

	received := events(h.toClient(results))
	var ack *AcknowledgementReceived
	for _, r := range received {
		if a, ok := r.(AcknowledgementReceived); ok {
			ack = &a
		}
	}
	if ack == nil {
		t.Fatalf("expected an AcknowledgementReceived event, but got %+v", received)
	}
	if uint64(ack.SequenceNumber) != h.server.protocol.bytesReceived {
		t.Errorf("expected sequence number to be %d, but got %d", h.server.protocol.bytesReceived, ack.SequenceNumber)
	}
	if h.server.protocol.bytesReceived-before < 1200 {
		t.Errorf("expected at least 1200 bytes to be counted, but got %d", h.server.protocol.bytesReceived-before)
	}

	// Fewer bytes than the window don't trigger another acknowledgement
	sent, err = h.client.PublishAudioData([]byte{0xAF, 0x01, 0x00}, 10, false)
	for _, r := range h.toServer(h.packet(sent, err)) {
		if packet, ok := r.(OutboundPacket); ok {
			t.Errorf("expected no acknowledgement, but got %d bytes", len(packet.Bytes))
		}
	}
}

func TestSessionsSurfaceUnknownMessages(t *testing.T) {
	h := newDefaultHarness(t)
	h.connect("live")

	sent, err := h.client.protocol.sendAt(&message.Unknown{Type: message.TypeCommandAMF3, Data: []byte{0, 1, 2}}, 0, 42, false)
	results := events(h.toServer(h.packet(sent, err)))
	if len(results) != 1 {
		t.Fatalf("expected 1 event, but got %+v", results)
	}
	unhandled, ok := results[0].(UnhandledMessage)
	if !ok {
		t.Fatalf("expected an UnhandledMessage event, but got %T", results[0])
	}
	if unhandled.Message.Type != message.TypeCommandAMF3 || unhandled.Timestamp != 42 {
		t.Errorf("expected AMF3 command at 42, but got type %d at %d", unhandled.Message.Type, unhandled.Timestamp)
	}

	// The session keeps working afterwards
	if streamID := h.createStream(); streamID != 1 {
		t.Errorf("expected stream id to be 1, but got %d", streamID)
	}
}

func TestErrorCategories(t *testing.T) {
	server, err := NewServerSession(DefaultServerConfig())
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	_, err = server.HandleInput([]byte{6})
	if !IsHandshakeError(err) {
		t.Errorf("expected a handshake error, but got %v", err)
	}
	if _, again := server.HandleInput([]byte{3}); !IsHandshakeError(again) {
		t.Errorf("expected the handshake error to stick, but got %v", again)
	}
	if IsChunkFramingError(err) || IsInvalidStateTransition(err) {
		t.Errorf("expected %v to only be a handshake error", err)
	}

	h := newDefaultHarness(t)
	// Type 3 header on a chunk stream that was never used
	_, err = h.server.HandleInput([]byte{0xC0 | 7})
	if !IsChunkFramingError(err) {
		t.Errorf("expected a chunk framing error, but got %v", err)
	}

	client, _, err := NewClientSession(DefaultClientConfig())
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	_, err = client.RequestStreamCreation()
	if !IsInvalidStateTransition(err) {
		t.Errorf("expected an invalid state transition, but got %v", err)
	}
}
