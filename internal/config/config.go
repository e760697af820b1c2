package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ICEServer is handed to clients in the session event; the server itself
// never opens a peer connection.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func (s ICEServer) WebRTC() webrtc.ICEServer {
	out := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
	if s.Credential != "" {
		out.Credential = s.Credential
	}
	return out
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`

	DatabaseDSN string        `mapstructure:"database_dsn"`
	RedisURL    string        `mapstructure:"redis_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`

	TranslateURL         string        `mapstructure:"translate_url"`
	TranslateAPIKey      string        `mapstructure:"translate_api_key"`
	TranslateTimeout     time.Duration `mapstructure:"translate_timeout"`
	TranslateConcurrency int           `mapstructure:"translate_concurrency"`
	LookupTimeout        time.Duration `mapstructure:"lookup_timeout"`

	MessageRate  float64 `mapstructure:"message_rate"`
	MessageBurst int     `mapstructure:"message_burst"`
	SlowConsumer string  `mapstructure:"slow_consumer"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		out = append(out, s.WebRTC())
	}
	return out
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Every key
// can be overridden with a POLYGLOT_ prefixed environment variable.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("POLYGLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Mode == "release" && cfg.Secret == defaultSecret {
		log.Warn().Str("module", "config").Msg("running release mode with the default session secret")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("db", cfg.DatabaseDSN).Bool("translate", cfg.TranslateURL != "").Bool("cache", cfg.RedisURL != "").Msg("config ready")
	return &cfg, nil
}

const defaultSecret = "polyglot-dev-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", defaultSecret)

	v.SetDefault("database_dsn", "polyglot.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", "1m")

	v.SetDefault("translate_url", "https://libretranslate.de")
	v.SetDefault("translate_api_key", "")
	v.SetDefault("translate_timeout", "5s")
	v.SetDefault("translate_concurrency", 4)
	v.SetDefault("lookup_timeout", "3s")

	v.SetDefault("message_rate", 5.0)
	v.SetDefault("message_burst", 10)
	v.SetDefault("slow_consumer", "kick")

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}
