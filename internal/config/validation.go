package config

import (
	"fmt"
	"time"
)

// Validate checks invariants a run cannot proceed without.
func (c *Config) Validate() error {
	if len(c.Matrix.OS) == 0 && len(c.Matrix.Include) == 0 {
		return fmt.Errorf("matrix declares no operating systems and no include entries")
	}
	if len(c.Matrix.OS) > 0 && len(c.Matrix.Channels) == 0 {
		return fmt.Errorf("matrix declares operating systems but no channels")
	}
	if c.Steps.Build == "" {
		return fmt.Errorf("steps.build command is required")
	}
	if c.Steps.Test == "" {
		return fmt.Errorf("steps.test command is required")
	}
	for i, inc := range c.Matrix.Include {
		if inc.OS == "" || inc.Channel == "" {
			return fmt.Errorf("matrix.include[%d] must specify both os and channel", i)
		}
	}
	if c.Publish.Enabled && c.Publish.RemoteURL == "" {
		return fmt.Errorf("publish.remote_url is required when publishing is enabled")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when event publishing is enabled")
	}
	if c.Steps.Timeout != "" {
		if _, err := time.ParseDuration(c.Steps.Timeout); err != nil {
			return fmt.Errorf("steps.timeout is not a valid duration: %w", err)
		}
	}
	if c.Daemon.Interval != "" {
		if _, err := time.ParseDuration(c.Daemon.Interval); err != nil {
			return fmt.Errorf("daemon.interval is not a valid duration: %w", err)
		}
	}
	return nil
}
