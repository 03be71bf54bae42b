package cli

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved CLI configuration. Precedence: flags, then
// environment, then the config file, then defaults.
type Config struct {
	URL             string        `mapstructure:"url"`
	Token           string        `mapstructure:"token"`
	LogLevel        string        `mapstructure:"log-level"`
	LogFormat       string        `mapstructure:"log-format"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxWait         time.Duration `mapstructure:"max-wait"`
	TransferRetries int           `mapstructure:"retries"`
	PartConcurrency int           `mapstructure:"concurrency"`
	Endpoint        string        `mapstructure:"endpoint"`
	PathStyle       bool          `mapstructure:"path-style"`
}

const configName = "kbcfiles"

func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default ./kbcfiles.yaml or $XDG_CONFIG_HOME/kbcfiles/kbcfiles.yaml)")
	flags.String("url", "", "Storage API URL [KBC_API_URL]")
	flags.String("token", "", "Storage API token [KBC_TOKEN]")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Duration("timeout", 5*time.Minute, "HTTP timeout for Storage API requests")
	flags.Duration("max-wait", 30*time.Minute, "how long to wait for a job")
	flags.Int("retries", 3, "retries of transient object-store faults")
	flags.Int("concurrency", 4, "parallel part fetches for sliced files")
	flags.String("endpoint", "", "S3-compatible endpoint override")
	flags.Bool("path-style", false, "address buckets by path on the endpoint")
}

// loadConfig builds a private viper instance from flags, environment and
// the optional config file.
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix("KBC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("url", "KBC_API_URL", "KBC_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	cfgFile, _ := flags.GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, configName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.URL == "" {
		return nil, stderrors.New("storage API URL is not set (--url or KBC_API_URL)")
	}
	if cfg.Token == "" {
		return nil, stderrors.New("storage API token is not set (--token or KBC_TOKEN)")
	}

	return &cfg, nil
}
