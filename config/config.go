package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del settler.
type Config struct {
	Settlement  SettlementConfig  `yaml:"settlement" toml:"settlement"`
	Oracle      OracleConfig      `yaml:"oracle" toml:"oracle"`
	Facilitator FacilitatorConfig `yaml:"facilitator" toml:"facilitator"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Lock        LockConfig        `yaml:"lock" toml:"lock"`
	Archive     ArchiveConfig     `yaml:"archive" toml:"archive"`
	Report      ReportConfig      `yaml:"report" toml:"report"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

// SettlementConfig es el registry de mercados que crea -init.
type SettlementConfig struct {
	Authority string `yaml:"authority" toml:"authority"`
	FeeBps    uint16 `yaml:"fee_bps" toml:"fee_bps"` // máximo 1000 (10%)
}

// OracleConfig controla el registro del oráculo y el feed del provider.
type OracleConfig struct {
	Authority     string  `yaml:"authority" toml:"authority"`
	Provider      string  `yaml:"provider" toml:"provider"`
	Fee           uint64  `yaml:"fee" toml:"fee"` // bounty por pregunta, en unidades base
	FeedBase      string  `yaml:"feed_base" toml:"feed_base"`
	FeedRate      float64 `yaml:"feed_rate" toml:"feed_rate"` // requests/segundo
	FetchWorkers  int     `yaml:"fetch_workers" toml:"fetch_workers"`
	BatchLimit    int     `yaml:"batch_limit" toml:"batch_limit"`
	RetryWaitSecs int     `yaml:"retry_wait_seconds" toml:"retry_wait_seconds"`
}

// FacilitatorConfig es el splitter de pagos.
type FacilitatorConfig struct {
	Authority string `yaml:"authority" toml:"authority"`
	FeeBps    uint16 `yaml:"fee_bps" toml:"fee_bps"`
}

// StorageConfig controla dónde se persisten los records.
type StorageConfig struct {
	Driver   string `yaml:"driver" toml:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn" toml:"dsn"`       // ruta SQLite, ":memory:" o URL postgres
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
}

// LockConfig activa el lock por mercado en Redis. Addr vacío = sin lock.
type LockConfig struct {
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds" toml:"ttl_seconds"`
}

// ArchiveConfig es el bucket donde -archive deja los snapshots.
type ArchiveConfig struct {
	Bucket         string `yaml:"bucket" toml:"bucket"`
	Region         string `yaml:"region" toml:"region"`
	Endpoint       string `yaml:"endpoint" toml:"endpoint"`
	AccessKey      string `yaml:"access_key" toml:"access_key"`
	SecretKey      string `yaml:"secret_key" toml:"secret_key"`
	Prefix         string `yaml:"prefix" toml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style" toml:"force_path_style"`
}

// ReportConfig controla el formato de la tabla de mercados.
type ReportConfig struct {
	Decimals int32 `yaml:"decimals" toml:"decimals"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format" toml:"format"` // text | json
}

// Load carga .env si existe, luego el archivo (YAML o TOML según extensión),
// luego las variables de entorno y por último los defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// LockTTL devuelve el TTL del lock como time.Duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Lock.TTLSeconds) * time.Second
}

// RetryWait devuelve la espera base entre reintentos del feed.
func (c *Config) RetryWait() time.Duration {
	return time.Duration(c.Oracle.RetryWaitSecs) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SETTLER_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SETTLER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SETTLER_AUTHORITY"); v != "" {
		cfg.Settlement.Authority = v
	}
	if v := os.Getenv("SETTLER_FEE_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Settlement.FeeBps = uint16(n)
		}
	}
	if v := os.Getenv("ORACLE_PROVIDER"); v != "" {
		cfg.Oracle.Provider = v
	}
	if v := os.Getenv("ORACLE_FEED_BASE"); v != "" {
		cfg.Oracle.FeedBase = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Lock.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Lock.RedisPassword = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polysettle.db"
	}
	if cfg.Storage.MaxConns <= 0 {
		cfg.Storage.MaxConns = 8
	}
	if cfg.Oracle.Authority == "" {
		cfg.Oracle.Authority = cfg.Settlement.Authority
	}
	if cfg.Facilitator.Authority == "" {
		cfg.Facilitator.Authority = cfg.Settlement.Authority
	}
	if cfg.Oracle.Fee == 0 {
		cfg.Oracle.Fee = 10_000_000
	}
	if cfg.Oracle.FeedRate <= 0 {
		cfg.Oracle.FeedRate = 5
	}
	if cfg.Oracle.FetchWorkers <= 0 {
		cfg.Oracle.FetchWorkers = 4
	}
	if cfg.Oracle.BatchLimit <= 0 {
		cfg.Oracle.BatchLimit = 20
	}
	if cfg.Oracle.RetryWaitSecs <= 0 {
		cfg.Oracle.RetryWaitSecs = 2
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 10
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "polysettle"
	}
	if cfg.Report.Decimals < 0 {
		cfg.Report.Decimals = 0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate devuelve un único error con todos los problemas encontrados.
func (c *Config) Validate() error {
	var errs []string

	if c.Settlement.FeeBps > 1000 {
		errs = append(errs, fmt.Sprintf("settlement: fee_bps %d exceeds 1000", c.Settlement.FeeBps))
	}
	if c.Facilitator.FeeBps > 1000 {
		errs = append(errs, fmt.Sprintf("facilitator: fee_bps %d exceeds 1000", c.Facilitator.FeeBps))
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: sqlite, postgres)", c.Storage.Driver))
	}
	if c.Oracle.BatchLimit > 20 {
		errs = append(errs, fmt.Sprintf("oracle: batch_limit %d exceeds 20", c.Oracle.BatchLimit))
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: text, json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config.Validate: %s", strings.Join(errs, "; "))
	}
	return nil
}
