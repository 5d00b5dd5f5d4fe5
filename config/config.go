// Package config holds protocol defaults and the configuration file format used by the example hosts.
package config

const DefaultPort = "1935"

const BuffioSize = 1024 * 64

// DefaultClientWindowSize is used both as the window acknowledgement size and the peer bandwidth a server announces.
const DefaultClientWindowSize uint32 = 2500000
const DefaultChunkSize uint32 = 4096

const FlashMediaServerVersion string = "FMS/3,5,7,7009"

const Capabilities float64 = 31

const DefaultFlashVersion = "WIN 23,0,0,207"

// DefaultPlaybackBufferLength is the buffer length in milliseconds a playing client asks the server for.
const DefaultPlaybackBufferLength uint32 = 2000
