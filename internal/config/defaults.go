package config

import (
	"time"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Default values for optional configuration fields.
const (
	DefaultServerURL          = "ws://localhost:8080/ws"
	DefaultCodec              = protocol.CodecJSON
	DefaultDialTimeout        = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultFlushTimeout       = 2 * time.Second
	DefaultSendBuffer         = 256
	DefaultListen             = ":8080"
	DefaultPath               = "/ws"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultLogMaxSizeMB       = 50
	DefaultLogMaxBackups      = 3
	DefaultLogMaxAgeDays      = 14
)

func (c *Config) applyDefaults() {
	// Client defaults
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = DefaultServerURL
	}
	if c.Client.Codec == "" {
		c.Client.Codec = DefaultCodec
	}
	if c.Client.DialTimeout == 0 {
		c.Client.DialTimeout = DefaultDialTimeout
	}
	if c.Client.ReconnectBaseDelay == 0 {
		c.Client.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Client.ReconnectMaxDelay == 0 {
		c.Client.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Client.FlushTimeout == 0 {
		c.Client.FlushTimeout = DefaultFlushTimeout
	}
	if c.Client.SendBuffer == 0 {
		c.Client.SendBuffer = DefaultSendBuffer
	}

	// Server defaults
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}
}
