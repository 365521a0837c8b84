// Package config contains Palaver Config and the code to load it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// HTTPServer is the listen configuration.
type HTTPServer struct {
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	Port    int    `mapstructure:"port" json:"port" yaml:"port" toml:"port"`
}

// Log is the logging configuration.
type Log struct {
	Level string `mapstructure:"level" json:"level" yaml:"level" toml:"level"`
	File  string `mapstructure:"file" json:"file" yaml:"file" toml:"file"`
}

// Limits bound the registry.
type Limits struct {
	MaxChats       int `mapstructure:"max_chats" json:"max_chats" yaml:"max_chats" toml:"max_chats"`
	MaxPublicChats int `mapstructure:"max_public_chats" json:"max_public_chats" yaml:"max_public_chats" toml:"max_public_chats"`
}

// Client configures the terminal client subcommand.
type Client struct {
	ServerURL  string `mapstructure:"server_url" json:"server_url" yaml:"server_url" toml:"server_url"`
	StateDir   string `mapstructure:"state_dir" json:"state_dir" yaml:"state_dir" toml:"state_dir"`
	MemberName string `mapstructure:"member_name" json:"member_name" yaml:"member_name" toml:"member_name"`
}

// Config is the full application configuration.
type Config struct {
	HTTP   HTTPServer `mapstructure:"http_server" json:"http_server" yaml:"http_server" toml:"http_server"`
	Log    Log        `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
	Limits Limits     `mapstructure:"limits" json:"limits" yaml:"limits" toml:"limits"`
	// DeathRowDuration is the grace period during which members of a lost
	// connection stay registered so a reconnect does not collide with its
	// own name. Zero disables the grace period.
	DeathRowDuration time.Duration `mapstructure:"death_row_duration" json:"death_row_duration" yaml:"death_row_duration" toml:"death_row_duration"`
	Client           Client        `mapstructure:"client" json:"client" yaml:"client" toml:"client"`
}

// DefineFlags adds command line flags mirroring config keys.
func DefineFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("http_server.address", "a", "", "interface address to listen on")
	cmd.Flags().IntP("http_server.port", "p", 8000, "port to bind HTTP server to")
	cmd.Flags().String("log.level", "info", "set the log level: trace, debug, info, warn, error, fatal or none")
	cmd.Flags().String("log.file", "", "optional log file - if not specified logs go to STDOUT")
	cmd.Flags().Int("limits.max_chats", 100, "maximum number of simultaneously live chats")
	cmd.Flags().Int("limits.max_public_chats", 20, "maximum number of simultaneously live public chats")
	cmd.Flags().Duration("death_row_duration", 0, "grace period before members of a lost connection are removed")
	cmd.Flags().String("client.server_url", "ws://localhost:8000/connection/websocket", "relay websocket endpoint")
	cmd.Flags().String("client.state_dir", "", "directory for persisted client state (empty: in-memory only)")
	cmd.Flags().String("client.member_name", "", "default member display name")
}

// GetConfig loads configuration from the optional config file, environment
// (PALAVER_ prefix) and command flags, in ascending priority.
func GetConfig(cmd *cobra.Command, configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("palaver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.HTTP.Port)
	}
	if c.Limits.MaxChats < 0 || c.Limits.MaxPublicChats < 0 {
		return errors.New("limits must not be negative")
	}
	if c.Limits.MaxPublicChats > c.Limits.MaxChats && c.Limits.MaxChats > 0 {
		return errors.New("limits.max_public_chats must not exceed limits.max_chats")
	}
	if c.DeathRowDuration < 0 {
		return errors.New("death_row_duration must not be negative")
	}
	return nil
}
