package rtmp

import (
	"github.com/torresjeff/rtmpcore/amf/amf0"
)

// StreamMetadata is what a publisher advertises about its stream with onMetaData. Zero values mean the property
// wasn't sent.
type StreamMetadata struct {
	Duration float64
	FileSize float64
	Width    float64
	Height   float64
	// Encoders send codec IDs either as a string (ie. OBS sends "avc1") or as a number (ie. ffmpeg sends 7),
	// whichever was received is kept.
	VideoCodecID     string
	VideoCodecNumber float64
	VideoDataRate    float64
	FrameRate        float64
	AudioCodecID     string
	AudioCodecNumber float64
	AudioDataRate    float64
	AudioSampleRate  float64
	AudioSampleSize  float64
	AudioChannels    float64
	Stereo           bool
	Encoder          string
	// Extra holds every other property, so it can be passed along untouched.
	Extra map[string]interface{}
}

// ParseStreamMetadata reads metadata out of the object (or ECMA array) sent with onMetaData. Properties with an
// unexpected type are kept in Extra.
func ParseStreamMetadata(value interface{}) (*StreamMetadata, bool) {
	var properties map[string]interface{}
	switch v := value.(type) {
	case map[string]interface{}:
		properties = v
	case amf0.ECMAArray:
		properties = v
	default:
		return nil, false
	}

	m := &StreamMetadata{}
	for key, value := range properties {
		if !m.set(key, value) {
			if m.Extra == nil {
				m.Extra = make(map[string]interface{})
			}
			m.Extra[key] = value
		}
	}
	return m, true
}

func (m *StreamMetadata) set(key string, value interface{}) bool {
	switch v := value.(type) {
	case float64:
		switch key {
		case "duration":
			m.Duration = v
		case "filesize":
			m.FileSize = v
		case "width":
			m.Width = v
		case "height":
			m.Height = v
		case "videocodecid":
			m.VideoCodecNumber = v
		case "videodatarate":
			m.VideoDataRate = v
		case "framerate":
			m.FrameRate = v
		case "audiocodecid":
			m.AudioCodecNumber = v
		case "audiodatarate":
			m.AudioDataRate = v
		case "audiosamplerate":
			m.AudioSampleRate = v
		case "audiosamplesize":
			m.AudioSampleSize = v
		case "audiochannels":
			m.AudioChannels = v
		default:
			return false
		}
	case string:
		switch key {
		case "videocodecid":
			m.VideoCodecID = v
		case "audiocodecid":
			m.AudioCodecID = v
		case "encoder":
			m.Encoder = v
		default:
			return false
		}
	case bool:
		if key != "stereo" {
			return false
		}
		m.Stereo = v
	default:
		return false
	}
	return true
}

// Properties returns the metadata as the object sent with onMetaData.
func (m *StreamMetadata) Properties() map[string]interface{} {
	properties := make(map[string]interface{}, len(m.Extra)+16)
	for key, value := range m.Extra {
		properties[key] = value
	}

	numbers := []struct {
		key   string
		value float64
	}{
		{"duration", m.Duration},
		{"filesize", m.FileSize},
		{"width", m.Width},
		{"height", m.Height},
		{"videocodecid", m.VideoCodecNumber},
		{"videodatarate", m.VideoDataRate},
		{"framerate", m.FrameRate},
		{"audiocodecid", m.AudioCodecNumber},
		{"audiodatarate", m.AudioDataRate},
		{"audiosamplerate", m.AudioSampleRate},
		{"audiosamplesize", m.AudioSampleSize},
		{"audiochannels", m.AudioChannels},
	}
	for _, n := range numbers {
		if n.value != 0 {
			properties[n.key] = n.value
		}
	}

	if m.VideoCodecID != "" {
		properties["videocodecid"] = m.VideoCodecID
	}
	if m.AudioCodecID != "" {
		properties["audiocodecid"] = m.AudioCodecID
	}
	if m.Encoder != "" {
		properties["encoder"] = m.Encoder
	}
	if m.Stereo {
		properties["stereo"] = true
	}
	return properties
}
