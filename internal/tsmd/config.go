package tsmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	EnvQueryPassword = "TSM_QUERY_PASSWORD"
	EnvMQTTPassword  = "TSM_MQTT_PASS"
	EnvQueryUser     = "TSM_QUERY_USER"
	EnvQueryAddr     = "TSM_QUERY_ADDR"
)

// Config is the top-level configuration for tsmd.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Query   QueryConfig   `toml:"query"`
	Player  PlayerConfig  `toml:"player"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogUTC    bool       `toml:"log_utc"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// QueryConfig holds the ServerQuery login.
type QueryConfig struct {
	Addr             string `toml:"addr"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	ServerID         int    `toml:"server_id"`
	Nickname         string `toml:"nickname"`
	DefaultChannel   string `toml:"default_channel"`
	CommandTimeoutMS int64  `toml:"command_timeout_ms"`
}

// PlayerConfig configures downloads and playback.
type PlayerConfig struct {
	CacheDir          string `toml:"cache_dir"`
	YtDlp             string `toml:"ytdlp"`
	FFPlay            string `toml:"ffplay"`
	Volume            *int   `toml:"volume"`
	MetadataTimeoutMS int64  `toml:"metadata_timeout_ms"`
	DownloadTimeoutMS int64  `toml:"download_timeout_ms"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Bot          BotConfig          `toml:"bot"`
	Control      ControlConfig      `toml:"control"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
	StatusHTTP   StatusHTTPConfig   `toml:"status_http"`
}

// BotConfig configures the chat bot.
type BotConfig struct {
	Enabled     bool   `toml:"enabled"`
	Prefix      string `toml:"prefix"`
	RelayEvents bool   `toml:"relay_events"`
}

// ControlConfig configures the MQTT control bridge.
type ControlConfig struct {
	Enabled bool   `toml:"enabled"`
	NodeID  string `toml:"node_id"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// StatusHTTPConfig configures the status endpoint.
type StatusHTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LoadConfig loads a config file from path and applies defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadEnv reads a .env file next to the config, if present, and applies
// secrets from the environment. Existing environment variables win.
func LoadEnv(cfg *Config, configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	ApplyEnv(cfg)
	return nil
}

// ApplyEnv copies secrets and address overrides from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvQueryPassword); v != "" {
		cfg.Query.Password = v
	}
	if v := os.Getenv(EnvQueryUser); v != "" {
		cfg.Query.Username = v
	}
	if v := os.Getenv(EnvQueryAddr); v != "" {
		cfg.Query.Addr = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		cfg.Server.Auth.Pass = v
	}
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	if c.Server.Identity == "" {
		c.Server.Identity = "tsmd"
	}
	if c.Query.Addr == "" {
		c.Query.Addr = "127.0.0.1:10011"
	}
	if c.Query.ServerID == 0 {
		c.Query.ServerID = 1
	}
	if c.Query.Nickname == "" {
		c.Query.Nickname = "MusicBot"
	}
	if c.Query.CommandTimeoutMS == 0 {
		c.Query.CommandTimeoutMS = 10000
	}
	if c.Player.CacheDir == "" {
		c.Player.CacheDir = DefaultCacheDir()
	}
	if c.Player.YtDlp == "" {
		c.Player.YtDlp = "yt-dlp"
	}
	if c.Player.FFPlay == "" {
		c.Player.FFPlay = "ffplay"
	}
	if c.Player.Volume == nil {
		v := 50
		c.Player.Volume = &v
	}
	if c.Player.MetadataTimeoutMS == 0 {
		c.Player.MetadataTimeoutMS = 30000
	}
	if c.Player.DownloadTimeoutMS == 0 {
		c.Player.DownloadTimeoutMS = 300000
	}
	if c.Modules.Bot.Prefix == "" {
		c.Modules.Bot.Prefix = "!"
	}
	if c.Modules.Control.NodeID == "" {
		c.Modules.Control.NodeID = c.Server.Identity
	}
	if c.Modules.EmbeddedMQTT.Listen == "" {
		c.Modules.EmbeddedMQTT.Listen = "127.0.0.1:1883"
	}
	if c.Modules.StatusHTTP.Listen == "" {
		c.Modules.StatusHTTP.Listen = "127.0.0.1:8089"
	}
}

// Validate checks the settings needed by the enabled modules.
func (c Config) Validate() error {
	var errs []error
	if c.Modules.Bot.Enabled {
		if strings.TrimSpace(c.Query.Username) == "" {
			errs = append(errs, errors.New("query.username required"))
		}
		if strings.TrimSpace(c.Query.Password) == "" {
			errs = append(errs, fmt.Errorf("query.password required (or set %s)", EnvQueryPassword))
		}
		if c.Query.ServerID < 1 {
			errs = append(errs, errors.New("query.server_id must be positive"))
		}
	}
	if v := c.Player.Volume; v != nil && (*v < 0 || *v > 100) {
		errs = append(errs, errors.New("player.volume must be 0..100"))
	}
	if len(c.Modules.Bot.Prefix) != 1 {
		errs = append(errs, errors.New("modules.bot.prefix must be one character"))
	}
	return errors.Join(errs...)
}

// CommandTimeout returns the ServerQuery command timeout.
func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.Query.CommandTimeoutMS) * time.Millisecond
}

// MetadataTimeout returns the metadata lookup timeout.
func (c Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Player.MetadataTimeoutMS) * time.Millisecond
}

// DownloadTimeout returns the download timeout.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Player.DownloadTimeoutMS) * time.Millisecond
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tsmusic", "tsmd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tsmusic", "tsmd.toml"), nil
}

// DefaultCacheDir returns the default download cache.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "tsmusic")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "tsmusic")
	}
	return filepath.Join(os.TempDir(), "tsmusic-"+strconv.Itoa(os.Getuid()))
}
