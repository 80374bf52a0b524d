package config

import "time"

// Client definition chat_client YAML structure
type Client struct {
	APIBase string `mapstructure:"api_base"`
	WSURL   string `mapstructure:"ws_url"`
	LogPath string `mapstructure:"log_path"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Reconnect ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig bounded backoff settings for the realtime channel.
// Defaults mirror the mobile app's socket settings: 500ms initial delay,
// 2s cap, 10 attempts, 5s handshake timeout.
type ReconnectConfig struct {
	InitialDelay     time.Duration `mapstructure:"initial_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// Backend definition chatd YAML structure
type Backend struct {
	Port    string `mapstructure:"port"`
	LogPath string `mapstructure:"log_path"`
}

// DefaultReconnect returns the reconnect settings used when the YAML
// omits the reconnect block.
func DefaultReconnect() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		MaxAttempts:      10,
		HandshakeTimeout: 5 * time.Second,
	}
}
