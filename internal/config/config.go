package config

import "time"

// Config is the root configuration for a voxgate instance.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Synth   SynthConfig   `yaml:"synth"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // empty or ["*"] allows all
}

// GatewayConfig holds connection-layer settings.
type GatewayConfig struct {
	MaxConnections         int           `yaml:"max_connections"`
	HeartbeatTimeout       time.Duration `yaml:"heartbeat_timeout"`
	HeartbeatSweepInterval time.Duration `yaml:"heartbeat_sweep_interval"`
	ProbeAfter             time.Duration `yaml:"probe_after"`
	SendTimeout            time.Duration `yaml:"send_timeout"`
	BridgeHandoffTimeout   time.Duration `yaml:"bridge_handoff_timeout"`
	BridgeBuffer           int           `yaml:"bridge_buffer"`
}

// SynthConfig holds synthesis worker pool settings.
type SynthConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// StorageConfig holds the on-disk layout for audio files.
type StorageConfig struct {
	OutputsDir string `yaml:"outputs_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	SamplesDir string `yaml:"samples_dir"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level   string        `yaml:"level"`  // debug, info, warn, error
	Format  string        `yaml:"format"` // text, json, pretty
	Fluentd FluentdConfig `yaml:"fluentd"`
}

// FluentdConfig holds the optional fluentd log forwarder.
type FluentdConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Tag     string `yaml:"tag"`
}
