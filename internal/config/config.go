// Package config loads the YAML configuration shared by the chat client and
// the relay server.
package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/omochice/chatsocket/internal/transport"
	"github.com/omochice/chatsocket/pkg/protocol"
)

// Config is the root configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig holds chat client settings.
type ClientConfig struct {
	ServerURL          string        `yaml:"server_url"`
	UserID             string        `yaml:"user_id"`
	Codec              string        `yaml:"codec"` // json or protobuf
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	FlushTimeout       time.Duration `yaml:"flush_timeout"`
	SendBuffer         int           `yaml:"send_buffer"`
}

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// LogConfig holds logging settings. An empty File means stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TransportOptions converts the client settings to transport options. URL
// and headers are left for the connection manager to fill in.
func (c ClientConfig) TransportOptions() (transport.Options, error) {
	codec, err := protocol.CodecByName(c.Codec)
	if err != nil {
		return transport.Options{}, fmt.Errorf("client.codec: %w", err)
	}
	return transport.Options{
		Header:             http.Header{},
		Codec:              codec,
		DialTimeout:        c.DialTimeout,
		ReconnectBaseDelay: c.ReconnectBaseDelay,
		ReconnectMaxDelay:  c.ReconnectMaxDelay,
		FlushTimeout:       c.FlushTimeout,
		SendBuffer:         c.SendBuffer,
	}, nil
}
