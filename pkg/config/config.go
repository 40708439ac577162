package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration, loaded from an optional config
// file and LOCKSTEP_* environment variables.
type Config struct {
	LogLevel string `mapstructure:"logLevel"`

	API struct {
		Port     int    `mapstructure:"port"`
		CertFile string `mapstructure:"certFile"`
		KeyFile  string `mapstructure:"keyFile"`
	} `mapstructure:"api"`

	WS struct {
		Port        int           `mapstructure:"port"`
		SendTimeout time.Duration `mapstructure:"sendTimeout"`
	} `mapstructure:"ws"`

	Game struct {
		TickRate    int           `mapstructure:"tickRate"`
		GracePeriod time.Duration `mapstructure:"gracePeriod"`
	} `mapstructure:"game"`

	Auth struct {
		Secret   string        `mapstructure:"secret"`
		TokenTTL time.Duration `mapstructure:"tokenTTL"`
	} `mapstructure:"auth"`

	DB struct {
		// Driver is either sqlite or postgres
		Driver     string `mapstructure:"driver"`
		Path       string `mapstructure:"path"`
		Migrations string `mapstructure:"migrations"`
		ConnStr    string `mapstructure:"connStr"`
	} `mapstructure:"db"`
}

// TickInterval returns the duration of one simulation step.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Game.TickRate)
}

// Load reads the configuration. An empty path skips the config file and
// uses defaults plus environment variables only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("logLevel", "info")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.certFile", "")
	v.SetDefault("api.keyFile", "")

	v.SetDefault("ws.port", 8081)
	v.SetDefault("ws.sendTimeout", 5*time.Second)

	v.SetDefault("game.tickRate", 20)
	v.SetDefault("game.gracePeriod", time.Minute)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.tokenTTL", 24*time.Hour)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "lockstep.db")
	v.SetDefault("db.migrations", "migrations/sqlite")
	v.SetDefault("db.connStr", "")

	v.SetEnvPrefix("LOCKSTEP")
	// auth.secret reads from LOCKSTEP_AUTH_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if cfg.Game.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive")
	}

	return cfg, nil
}
