package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := validateBaseURL("flame.meta_base_url", c.Flame.MetaBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("fmllibs.self_hosted_base_url", c.FMLLibs.SelfHostedBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("fmllibs.upstream_base_url", c.FMLLibs.UpstreamBaseURL); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.MaxConcurrent < 1 || c.Network.MaxConcurrent > maxConcurrentLimit {
		return fmt.Errorf("network.max_concurrent must be between 1 and %d", maxConcurrentLimit)
	}
	if c.Network.RequestTimeout <= 0 {
		return errors.New("network.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateBaseURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, value)
	}
	return nil
}
