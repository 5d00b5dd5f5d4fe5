// Package audio describes the FLV audio tag header that starts every RTMP audio message payload.
package audio

import (
	"fmt"

	"github.com/pkg/errors"
)

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf

type Format uint8

const (
	LinearPCMPlatformEndian Format = 0
	ADPCM                   Format = 1
	MP3                     Format = 2
	LinearPCMLittleEndian   Format = 3
	Nellymoser16KHzMono     Format = 4
	Nellymoser8KHzMono      Format = 5
	Nellymoser              Format = 6
	G711AlawLogPCM          Format = 7
	G711MulawLogPCM         Format = 8
	AAC                     Format = 10
	Speex                   Format = 11
	MP38KHz                 Format = 14
	DeviceSpecificSound     Format = 15
)

func (f Format) String() string {
	switch f {
	case LinearPCMPlatformEndian:
		return "Linear PCM, platform endian"
	case ADPCM:
		return "ADPCM"
	case MP3:
		return "MP3"
	case LinearPCMLittleEndian:
		return "Linear PCM, little endian"
	case Nellymoser16KHzMono:
		return "Nellymoser 16 kHz mono"
	case Nellymoser8KHzMono:
		return "Nellymoser 8 kHz mono"
	case Nellymoser:
		return "Nellymoser"
	case G711AlawLogPCM:
		return "G.711 A-law"
	case G711MulawLogPCM:
		return "G.711 mu-law"
	case AAC:
		return "AAC"
	case Speex:
		return "Speex"
	case MP38KHz:
		return "MP3 8 kHz"
	case DeviceSpecificSound:
		return "Device-specific sound"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

type SampleRate uint8

const (
	Rate5p5KHz SampleRate = 0
	Rate11KHz  SampleRate = 1
	Rate22KHz  SampleRate = 2
	Rate44KHz  SampleRate = 3
)

type SampleSize uint8

const (
	Size8Bit  SampleSize = 0
	Size16Bit SampleSize = 1
)

type Channel uint8

const (
	Mono   Channel = 0
	Stereo Channel = 1
)

type AACPacketType uint8

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

var ErrShortPayload = errors.New("audio payload is too short to hold a tag header")

// Header is the decoded FLV audio tag header.
type Header struct {
	Format     Format
	SampleRate SampleRate
	SampleSize SampleSize
	Channels   Channel
	// AACPacketType is only meaningful when Format is AAC.
	AACPacketType AACPacketType
}

// ParseHeader decodes the tag header at the start of an audio message payload.
func ParseHeader(payload []byte) (Header, error) {
	if len(payload) < 1 {
		return Header{}, ErrShortPayload
	}
	h := Header{
		Format:     Format(payload[0] >> 4),
		SampleRate: SampleRate((payload[0] >> 2) & 0x03),
		SampleSize: SampleSize((payload[0] >> 1) & 0x01),
		Channels:   Channel(payload[0] & 0x01),
	}
	if h.Format == AAC {
		if len(payload) < 2 {
			return Header{}, errors.Wrap(ErrShortPayload, "missing AAC packet type")
		}
		h.AACPacketType = AACPacketType(payload[1])
	}
	return h, nil
}

// IsSequenceHeader reports whether payload carries an AAC sequence header (the AudioSpecificConfig), which players
// need before any other AAC frame.
func IsSequenceHeader(payload []byte) bool {
	h, err := ParseHeader(payload)
	return err == nil && h.Format == AAC && h.AACPacketType == AACSequenceHeader
}
