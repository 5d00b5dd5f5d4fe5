package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("config file must have a .toml, .yaml or .yml extension")

// File is the configuration of an example host, loaded from TOML or YAML.
type File struct {
	Server Server `toml:"Server" yaml:"server"`
	Logger Logger `toml:"Logger" yaml:"logger"`
}

type Server struct {
	Addr string `toml:"Addr" yaml:"addr"`
	// Apps lists the application names clients may connect to. Empty accepts any application.
	Apps                    []string `toml:"Apps" yaml:"apps"`
	ChunkSize               uint32   `toml:"ChunkSize" yaml:"chunk_size"`
	WindowAckSize           uint32   `toml:"WindowAckSize" yaml:"window_ack_size"`
	PeerBandwidth           uint32   `toml:"PeerBandwidth" yaml:"peer_bandwidth"`
	FlashMediaServerVersion string   `toml:"FlashMediaServerVersion" yaml:"fms_version"`
	// NodeID is the snowflake node used to number connections.
	NodeID int64 `toml:"NodeID" yaml:"node_id"`
}

type Logger struct {
	Level       string `toml:"Level" yaml:"level"`
	Dir         string `toml:"Dir" yaml:"dir"`
	FileName    string `toml:"FileName" yaml:"file_name"`
	MaxSize     int    `toml:"MaxSize" yaml:"max_size"`
	MaxBackups  int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAge      int    `toml:"MaxAge" yaml:"max_age"`
	Development bool   `toml:"Development" yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	f := File{Server: Server{NodeID: 1}}
	f.fixup()
	return f
}

// Load reads the configuration file at path. The format is picked from the file extension.
// Settings missing from the file keep their Default value.
func Load(path string) (File, error) {
	f := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return File{}, errors.Wrapf(err, "decoding %s", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, errors.Wrapf(err, "reading %s", path)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&f); err != nil {
			return File{}, errors.Wrapf(err, "decoding %s", path)
		}
	default:
		return File{}, errors.Wrapf(ErrUnknownFormat, "got %s", path)
	}

	f.fixup()
	return f, f.validate()
}

func (f *File) fixup() {
	if f.Server.Addr == "" {
		f.Server.Addr = ":" + DefaultPort
	}
	if f.Server.ChunkSize == 0 {
		f.Server.ChunkSize = DefaultChunkSize
	}
	if f.Server.WindowAckSize == 0 {
		f.Server.WindowAckSize = DefaultClientWindowSize
	}
	if f.Server.PeerBandwidth == 0 {
		f.Server.PeerBandwidth = DefaultClientWindowSize
	}
	if f.Server.FlashMediaServerVersion == "" {
		f.Server.FlashMediaServerVersion = FlashMediaServerVersion
	}
	if f.Logger.Level == "" {
		f.Logger.Level = "info"
	}
	if f.Logger.FileName == "" {
		f.Logger.FileName = "rtmp"
	}
	if f.Logger.MaxSize == 0 {
		f.Logger.MaxSize = 100
	}
	if f.Logger.MaxBackups == 0 {
		f.Logger.MaxBackups = 5
	}
	if f.Logger.MaxAge == 0 {
		f.Logger.MaxAge = 30
	}
}

func (f *File) validate() error {
	if f.Server.ChunkSize > 0x7FFFFFFF {
		return errors.Errorf("chunk size must be at most 2147483647, got %d", f.Server.ChunkSize)
	}
	if f.Server.NodeID < 0 || f.Server.NodeID > 1023 {
		return errors.Errorf("node id must be between 0 and 1023, got %d", f.Server.NodeID)
	}
	return nil
}
