package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost                   = "0.0.0.0"
	DefaultPort                   = 8000
	DefaultMaxConnections         = 100
	DefaultHeartbeatTimeout       = 120 * time.Second
	DefaultHeartbeatSweepInterval = 60 * time.Second
	DefaultProbeAfter             = 90 * time.Second
	DefaultSendTimeout            = 5 * time.Second
	DefaultBridgeHandoffTimeout   = 2 * time.Second
	DefaultBridgeBuffer           = 64
	DefaultSynthWorkers           = 2
	DefaultSynthQueueSize         = 16
	DefaultOutputsDir             = "outputs"
	DefaultUploadsDir             = "uploads"
	DefaultSamplesDir             = "audio_samples"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
	DefaultFluentdPort            = 24224
	DefaultFluentdTag             = "voxgate"
)

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Gateway.MaxConnections == 0 {
		c.Gateway.MaxConnections = DefaultMaxConnections
	}
	if c.Gateway.HeartbeatTimeout == 0 {
		c.Gateway.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Gateway.HeartbeatSweepInterval == 0 {
		c.Gateway.HeartbeatSweepInterval = DefaultHeartbeatSweepInterval
	}
	if c.Gateway.ProbeAfter == 0 {
		c.Gateway.ProbeAfter = DefaultProbeAfter
	}
	if c.Gateway.SendTimeout == 0 {
		c.Gateway.SendTimeout = DefaultSendTimeout
	}
	if c.Gateway.BridgeHandoffTimeout == 0 {
		c.Gateway.BridgeHandoffTimeout = DefaultBridgeHandoffTimeout
	}
	if c.Gateway.BridgeBuffer == 0 {
		c.Gateway.BridgeBuffer = DefaultBridgeBuffer
	}

	if c.Synth.Workers == 0 {
		c.Synth.Workers = DefaultSynthWorkers
	}
	if c.Synth.QueueSize == 0 {
		c.Synth.QueueSize = DefaultSynthQueueSize
	}

	if c.Storage.OutputsDir == "" {
		c.Storage.OutputsDir = DefaultOutputsDir
	}
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = DefaultUploadsDir
	}
	if c.Storage.SamplesDir == "" {
		c.Storage.SamplesDir = DefaultSamplesDir
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Fluentd.Port == 0 {
		c.Logging.Fluentd.Port = DefaultFluentdPort
	}
	if c.Logging.Fluentd.Tag == "" {
		c.Logging.Fluentd.Tag = DefaultFluentdTag
	}
}

// Default returns a fully defaulted configuration, used when no config
// file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
