// Package config はアプリケーションの設定を管理します
// YAMLファイル（任意）と環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// 環境名
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// ディレクトリのバックエンド
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	Env           string          `yaml:"env" env:"ENV" env-default:"local"`
	APIAddr       string          `yaml:"api_addr" env:"API_ADDR" env-default:":8080"` // APIサーバーのリッスンアドレス
	Directory     DirectoryConfig `yaml:"directory"`
	Redis         RedisConfig     `yaml:"redis"`
	Postgres      PostgresConfig  `yaml:"postgres"`
	AllowedOrigin []string        `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"` // CORSで許可するオリジン一覧
	Relay         RelayConfig     `yaml:"relay"`
}

// DirectoryConfig はルームディレクトリの保存先
type DirectoryConfig struct {
	Backend string `yaml:"backend" env:"DIRECTORY_BACKEND" env-default:"redis"`
}

type RedisConfig struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	DB   int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type PostgresConfig struct {
	URL      string `yaml:"url" env:"PG_URL"`
	MaxConns int32  `yaml:"max_conns" env:"PG_MAX_CONNS" env-default:"10"`
}

// RelayConfig は接続ごとのリレー設定
type RelayConfig struct {
	SendBuffer      int   `yaml:"send_buffer" env:"SEND_BUFFER" env-default:"256"`             // 送信キュー容量
	MaxMessageBytes int64 `yaml:"max_message_bytes" env:"MAX_MESSAGE_BYTES" env-default:"65536"` // 受信フレームの最大サイズ
}

// Load は設定を読み込みます
// path が空の場合は CONFIG_PATH を参照し、それも無ければ環境変数だけを使います
// 読み込み前にカレントディレクトリの .env を環境変数に反映します
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad は Load に失敗した場合にpanicします
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic("cannot load config: " + err.Error())
	}
	return cfg
}

func (c *Config) setDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Directory.Backend = strings.ToLower(strings.TrimSpace(c.Directory.Backend))

	origins := make([]string, 0, len(c.AllowedOrigin))
	for _, o := range c.AllowedOrigin {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	c.AllowedOrigin = origins
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	switch c.Directory.Backend {
	case BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres directory requires PG_URL")
		}
	default:
		return fmt.Errorf("unknown directory backend %q", c.Directory.Backend)
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.Relay.SendBuffer)
	}
	if c.Relay.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive, got %d", c.Relay.MaxMessageBytes)
	}
	return nil
}
