package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNetwork()
	c.normalizeFlame()
	if err := c.normalizeFMLLibs(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InstancesDir, err = expandPath(c.Paths.InstancesDir); err != nil {
		return fmt.Errorf("paths.instances_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNetwork() {
	if c.Network.MaxConcurrent == 0 {
		c.Network.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = defaultRequestTimeout
	}
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeFlame() {
	if value, ok := os.LookupEnv("PACKFETCH_FLAME_META_URL"); ok && strings.TrimSpace(value) != "" {
		c.Flame.MetaBaseURL = value
	}
	c.Flame.MetaBaseURL = strings.TrimRight(strings.TrimSpace(c.Flame.MetaBaseURL), "/")
	if c.Flame.MetaBaseURL == "" {
		c.Flame.MetaBaseURL = defaultFlameMetaBaseURL
	}
}

func (c *Config) normalizeFMLLibs() error {
	c.FMLLibs.SelfHostedBaseURL = ensureTrailingSlash(c.FMLLibs.SelfHostedBaseURL, defaultFMLSelfHostedBaseURL)
	c.FMLLibs.UpstreamBaseURL = ensureTrailingSlash(c.FMLLibs.UpstreamBaseURL, defaultFMLUpstreamBaseURL)
	var err error
	if c.FMLLibs.TablePath, err = expandPath(strings.TrimSpace(c.FMLLibs.TablePath)); err != nil {
		return fmt.Errorf("fmllibs.table_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Library URLs are built by appending a filename, so bases must end in "/".
func ensureTrailingSlash(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
