// Package handshake implements the simple (non digest) RTMP handshake as an I/O-free state machine.
//
// Each side sends a version byte (C0/S0) followed by a 1536 byte packet (C1/S1) containing a timestamp, four zero
// bytes and random data. Each side then echoes the packet 1 it received back to its peer (C2/S2) and checks that
// the echo it receives matches the packet 1 it sent.
package handshake

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/rand"
)

const (
	RtmpVersion3 = 3
	// PacketSize is the size of packets 1 and 2 (C1/S1, C2/S2).
	PacketSize = 1536
)

var (
	ErrUnsupportedVersion = errors.New("the peer requested an unsupported RTMP version")
	ErrEchoMismatch       = errors.New("the packet echoed by the peer doesn't match the one that was sent")
	ErrAlreadyStarted     = errors.New("handshake was already started")
	ErrHandshakeComplete  = errors.New("handshake is already complete")
)

type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

type State uint8

const (
	StateUninitialized State = iota
	// StateVersionSent means packets 0 and 1 were sent and the peer's packet 1 hasn't been received yet.
	StateVersionSent
	// StateAckSent means the peer's packet 1 was echoed back and its echo of ours is pending.
	StateAckSent
	StateDone
)

// Result is what processing a batch of bytes produced.
type Result struct {
	// Response holds bytes that must be sent to the peer, in order.
	Response []byte
	// Done is set once the handshake completed successfully.
	Done bool
	// Remaining holds the bytes received after the end of the handshake. They belong to the chunk stream.
	Remaining []byte
}

type Handshake struct {
	role        Role
	state       State
	sentPacket1 [PacketSize]byte
	buf         []byte
	versionRead bool
	packet1Read bool
	err         error
}

func New(role Role) *Handshake {
	return &Handshake{role: role}
}

func (h *Handshake) Role() Role {
	return h.role
}

func (h *Handshake) State() State {
	return h.state
}

// Start returns packets 0 and 1. Clients call it to initiate the handshake; servers may skip it, in which case it
// is done implicitly by the first ProcessBytes call.
func (h *Handshake) Start() ([]byte, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.state != StateUninitialized {
		return nil, ErrAlreadyStarted
	}

	binary.BigEndian.PutUint32(h.sentPacket1[0:4], uint32(time.Now().Unix()))
	// bytes 4-8 stay zero
	if err := rand.GenerateCryptoSafeRandomData(h.sentPacket1[8:]); err != nil {
		return nil, h.fail(err)
	}

	packet := make([]byte, 1+PacketSize)
	packet[0] = RtmpVersion3
	copy(packet[1:], h.sentPacket1[:])
	h.state = StateVersionSent
	return packet, nil
}

// ProcessBytes consumes bytes received from the peer. Partial packets are buffered until the rest arrives.
// Any error is fatal: the engine keeps returning it and the connection must be closed.
func (h *Handshake) ProcessBytes(data []byte) (Result, error) {
	if h.err != nil {
		return Result{}, h.err
	}
	if h.state == StateDone {
		return Result{}, ErrHandshakeComplete
	}

	var result Result
	if h.state == StateUninitialized {
		start, err := h.Start()
		if err != nil {
			return Result{}, err
		}
		result.Response = start
	}

	h.buf = append(h.buf, data...)

	if !h.versionRead {
		if len(h.buf) < 1 {
			return result, nil
		}
		if h.buf[0] != RtmpVersion3 {
			return Result{}, h.fail(errors.Wrapf(ErrUnsupportedVersion, "%s received version %d", h.role, h.buf[0]))
		}
		h.buf = h.buf[1:]
		h.versionRead = true
	}

	if !h.packet1Read {
		if len(h.buf) < PacketSize {
			return result, nil
		}
		result.Response = append(result.Response, h.buf[:PacketSize]...)
		h.buf = h.buf[PacketSize:]
		h.packet1Read = true
		h.state = StateAckSent
	}

	if len(h.buf) < PacketSize {
		return result, nil
	}
	echo := h.buf[:PacketSize]
	// Bytes 4-8 of the echo may carry the time the peer read our packet, only the timestamp and random bytes must match
	if !bytes.Equal(echo[0:4], h.sentPacket1[0:4]) || !bytes.Equal(echo[8:], h.sentPacket1[8:]) {
		return Result{}, h.fail(errors.Wrapf(ErrEchoMismatch, "%s received a bad packet 2", h.role))
	}

	if len(h.buf) > PacketSize {
		result.Remaining = append([]byte(nil), h.buf[PacketSize:]...)
	}
	h.buf = nil
	h.state = StateDone
	result.Done = true
	return result, nil
}

func (h *Handshake) fail(err error) error {
	h.err = err
	return err
}
