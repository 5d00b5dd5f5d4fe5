package rtmp

import (
	"reflect"
	"testing"

	"github.com/torresjeff/rtmpcore/amf/amf0"
)

func TestParseStreamMetadata(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected *StreamMetadata
	}{
		{
			name: "obs",
			value: map[string]interface{}{
				"width":           1920.0,
				"height":          1080.0,
				"videocodecid":    "avc1",
				"videodatarate":   2500.0,
				"framerate":       30.0,
				"audiocodecid":    "mp4a",
				"audiosamplerate": 44100.0,
				"stereo":          true,
				"encoder":         "obs-output module",
			},
			expected: &StreamMetadata{
				Width:           1920,
				Height:          1080,
				VideoCodecID:    "avc1",
				VideoDataRate:   2500,
				FrameRate:       30,
				AudioCodecID:    "mp4a",
				AudioSampleRate: 44100,
				Stereo:          true,
				Encoder:         "obs-output module",
			},
		},
		{
			name: "ffmpeg ecma array",
			value: amf0.ECMAArray{
				"duration":     0.0,
				"videocodecid": 7.0,
				"audiocodecid": 10.0,
				"filesize":     1024.0,
				"major_brand":  "isom",
			},
			expected: &StreamMetadata{
				VideoCodecNumber: 7,
				AudioCodecNumber: 10,
				FileSize:         1024,
				Extra:            map[string]interface{}{"major_brand": "isom"},
			},
		},
		{
			name:     "mistyped properties",
			value:    map[string]interface{}{"width": "wide", "stereo": 1.0},
			expected: &StreamMetadata{Extra: map[string]interface{}{"width": "wide", "stereo": 1.0}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			metadata, ok := ParseStreamMetadata(test.value)
			if !ok {
				t.Fatalf("expected metadata to be parsed")
			}
			if !reflect.DeepEqual(metadata, test.expected) {
				t.Errorf("expected metadata to be %+v, but got %+v", test.expected, metadata)
			}
		})
	}

	if _, ok := ParseStreamMetadata("onMetaData"); ok {
		t.Errorf("expected a string not to be parsed as metadata")
	}
}

func TestStreamMetadataProperties(t *testing.T) {
	metadata := &StreamMetadata{
		Width:            640,
		Height:           360,
		VideoCodecNumber: 7,
		Stereo:           true,
		Encoder:          "Lavf58.29.100",
		Extra:            map[string]interface{}{"compatible_brands": "isomiso2avc1mp41"},
	}
	expected := map[string]interface{}{
		"width":             640.0,
		"height":            360.0,
		"videocodecid":      7.0,
		"stereo":            true,
		"encoder":           "Lavf58.29.100",
		"compatible_brands": "isomiso2avc1mp41",
	}
	if properties := metadata.Properties(); !reflect.DeepEqual(properties, expected) {
		t.Errorf("expected properties to be %v, but got %v", expected, properties)
	}

	parsed, _ := ParseStreamMetadata(metadata.Properties())
	if !reflect.DeepEqual(parsed, metadata) {
		t.Errorf("expected %+v to survive a round trip, but got %+v", metadata, parsed)
	}
}
