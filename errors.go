package rtmp

import (
	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/handshake"
	"github.com/torresjeff/rtmpcore/message"
)

var ErrInvalidStateTransition = errors.New("the session is not in a state that allows this request")
var ErrUnknownRequest = errors.New("no outstanding request has that id")
var ErrUnknownStream = errors.New("no active stream has that id")
var ErrSessionClosed = errors.New("the session is closed")

// IsHandshakeError reports whether err was caused by a bad handshake. The connection must be closed.
func IsHandshakeError(err error) bool {
	switch errors.Cause(err) {
	case handshake.ErrUnsupportedVersion, handshake.ErrEchoMismatch:
		return true
	}
	return false
}

// IsChunkFramingError reports whether err was caused by chunk data that can't be trusted anymore, either because
// the chunk headers were inconsistent or because a complete message held a malformed payload. The connection must be
// closed.
func IsChunkFramingError(err error) bool {
	switch errors.Cause(err) {
	case chunk.ErrNoPreviousChunk, chunk.ErrUnexpectedHeader, chunk.ErrInvalidChunkSize, chunk.ErrInvalidChunkStreamID,
		chunk.ErrMessageTooLong, message.ErrMalformedPayload:
		return true
	}
	return false
}

// IsInvalidStateTransition reports whether err was returned because a request was made in the wrong state.
// The session is left untouched and may still be used.
func IsInvalidStateTransition(err error) bool {
	return errors.Cause(err) == ErrInvalidStateTransition
}
