package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Gateway.MaxConnections < 1 {
		return errors.New("gateway.max_connections must be >= 1")
	}
	if c.Gateway.HeartbeatTimeout <= 0 {
		return errors.New("gateway.heartbeat_timeout must be > 0")
	}
	if c.Gateway.HeartbeatSweepInterval <= 0 {
		return errors.New("gateway.heartbeat_sweep_interval must be > 0")
	}
	if c.Gateway.ProbeAfter <= 0 {
		return errors.New("gateway.probe_after must be > 0")
	}
	if c.Gateway.ProbeAfter >= c.Gateway.HeartbeatTimeout {
		return fmt.Errorf("gateway.probe_after (%s) must be less than gateway.heartbeat_timeout (%s)",
			c.Gateway.ProbeAfter, c.Gateway.HeartbeatTimeout)
	}
	if c.Gateway.BridgeHandoffTimeout <= 0 {
		return errors.New("gateway.bridge_handoff_timeout must be > 0")
	}
	if c.Gateway.BridgeBuffer < 1 {
		return errors.New("gateway.bridge_buffer must be >= 1")
	}

	if c.Synth.Workers < 1 {
		return errors.New("synth.workers must be >= 1")
	}
	if c.Synth.QueueSize < 1 {
		return errors.New("synth.queue_size must be >= 1")
	}

	if c.Storage.OutputsDir == "" {
		return errors.New("storage.outputs_dir is required")
	}
	if c.Storage.UploadsDir == "" {
		return errors.New("storage.uploads_dir is required")
	}
	if c.Storage.SamplesDir == "" {
		return errors.New("storage.samples_dir is required")
	}

	switch c.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be text, json, or pretty, got %q", c.Logging.Format)
	}

	if c.Logging.Fluentd.Enabled {
		if c.Logging.Fluentd.Host == "" {
			return errors.New("logging.fluentd.host is required when fluentd is enabled")
		}
		if c.Logging.Fluentd.Port < 1 || c.Logging.Fluentd.Port > 65535 {
			return fmt.Errorf("logging.fluentd.port must be between 1 and 65535, got %d", c.Logging.Fluentd.Port)
		}
	}

	return nil
}
