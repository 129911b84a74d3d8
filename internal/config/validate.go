package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Validate checks that all values are usable. The user id may be empty: the
// client then starts disconnected.
func (c *Config) Validate() error {
	if err := c.Client.validate(); err != nil {
		return err
	}

	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /, got %q", c.Server.Path)
	}

	return c.Log.validate()
}

func (c *ClientConfig) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("client.server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("client.server_url must use ws or wss, got %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("client.server_url has no host: %q", c.ServerURL)
	}

	if _, err := protocol.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("client.codec: %w", err)
	}

	if c.DialTimeout <= 0 {
		return errors.New("client.dial_timeout must be > 0")
	}
	if c.ReconnectBaseDelay <= 0 {
		return errors.New("client.reconnect_base_delay must be > 0")
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return fmt.Errorf("client.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.ReconnectMaxDelay, c.ReconnectBaseDelay)
	}
	if c.FlushTimeout <= 0 {
		return errors.New("client.flush_timeout must be > 0")
	}
	if c.SendBuffer < 1 {
		return errors.New("client.send_buffer must be >= 1")
	}
	return nil
}

func (c *LogConfig) validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Format)
	}
	if c.MaxSizeMB < 1 {
		return errors.New("log.max_size_mb must be >= 1")
	}
	if c.MaxBackups < 0 {
		return errors.New("log.max_backups must be >= 0")
	}
	if c.MaxAgeDays < 0 {
		return errors.New("log.max_age_days must be >= 0")
	}
	return nil
}
