package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

const (
	driverName = "sqlite3"

	DefaultConfigPath = "config/config.yaml"

	defaultMode          = "dev"
	defaultAddr          = "127.0.0.1:8080"
	defaultDBPath        = "library.db"
	defaultBusyTimeoutMS = 5000
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Server      ServerConfig   `yaml:"server"`
	DB          DatabaseConfig `yaml:"database"`
	Log         LogConfig      `yaml:"log"`
	Certificate Certs          `yaml:"certificate"`
}

// TLSEnabled は証明書と鍵の両方が設定されている場合のみ true
func (c *Config) TLSEnabled() bool {
	return c.Certificate.Cert != "" && c.Certificate.Key != ""
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(buf)
}

// ParseConfig は YAML を読み、空欄に既定値を入れてから mode を検証する
func ParseConfig(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		return nil, fmt.Errorf("invalid mode %q: want dev or release", cfg.Mode)
	}
	if cfg.DB.BusyTimeoutMS < 0 {
		return nil, fmt.Errorf("invalid database.busy_timeout_ms %d", cfg.DB.BusyTimeoutMS)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = defaultMode
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.DB.Path == "" {
		c.DB.Path = defaultDBPath
	}
	if c.DB.BusyTimeoutMS == 0 {
		c.DB.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
}

// DSN はファイルが無ければ作成される SQLite の接続文字列を返す。
// 書き込みトランザクションは BEGIN IMMEDIATE で開始する。
func (c DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(c.BusyTimeoutMS))
	q.Set("_txlock", "immediate")
	q.Set("mode", "rwc")
	return "file:" + c.Path + "?" + q.Encode()
}

func Connect(ctx context.Context, c DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", c.Path, err)
	}

	// 単一ユーザ・単一ファイルなので接続は1本だけ持つ
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return db, nil
}
