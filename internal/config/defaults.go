package config

const (
	defaultLogDir               = "~/.local/share/packfetch/logs"
	defaultInstancesDir         = "~/.local/share/packfetch/instances"
	defaultMaxConcurrent        = 6
	defaultRequestTimeout       = 30
	defaultUserAgent            = "packfetch/dev"
	defaultFlameMetaBaseURL     = "https://cursemeta.dries007.net"
	defaultFMLSelfHostedBaseURL = "https://files.multimc.org/fmllibs/"
	defaultFMLUpstreamBaseURL   = "https://files.minecraftforge.net/fmllibs/"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	maxConcurrentLimit          = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:     defaultCacheDir(),
			LogDir:       defaultLogDir,
			InstancesDir: defaultInstancesDir,
		},
		Network: Network{
			MaxConcurrent:  defaultMaxConcurrent,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Flame: Flame{
			MetaBaseURL: defaultFlameMetaBaseURL,
		},
		FMLLibs: FMLLibs{
			SelfHostedBaseURL: defaultFMLSelfHostedBaseURL,
			UpstreamBaseURL:   defaultFMLUpstreamBaseURL,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
