// Package config loads server settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr          string        `mapstructure:"addr"`
	PGConn        string        `mapstructure:"pgconn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	Admins        string        `mapstructure:"admins"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"addr":           ":8080",
	"pgconn":         "",
	"redis_addr":     "localhost:6379",
	"redis_password": "",
	"redis_db":       0,
	"session_ttl":    "12h",
	"client_id":      "",
	"client_secret":  "",
	"admins":         "",
	"log_level":      "info",
	"log_format":     "json",
}

// Load reads file (if non-empty) and then lets environment variables such
// as PGCONN or REDIS_ADDR override it.
func Load(file string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	for _, req := range []struct{ key, val string }{
		{"PGCONN", c.PGConn},
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", c.ClientSecret},
		{"ADMINS", c.Admins},
	} {
		if req.val == "" {
			return fmt.Errorf("%s is required", req.key)
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

func (c Config) AdminList() []string {
	var out []string
	for _, a := range strings.Split(c.Admins, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
