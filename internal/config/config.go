// Package config loads metanode.yaml.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/metanode/internal/logging"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/conduit-lang/metanode/internal/meta/recordstore"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the config file looked up in the working directory
const FileName = "metanode"

// EnvPrefix prefixes environment overrides, e.g. METANODE_LOG_LEVEL
const EnvPrefix = "METANODE"

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Config represents the metanode configuration
type Config struct {
	Manager ManagerConfig `mapstructure:"manager"`
	Log     LogConfig     `mapstructure:"log"`
	Scene   SceneConfig   `mapstructure:"scene"`
	Records RecordsConfig `mapstructure:"records"`

	// File is the config file that was read, empty when defaults were used
	File string `mapstructure:"-"`
}

// RelinkRule maps a stale type tag to its replacement. Rules are a list
// rather than a map because viper lowercases map keys and splits them on
// dots, and type names carry both.
type RelinkRule struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// ManagerConfig configures scene reconciliation
type ManagerConfig struct {
	Relink    []RelinkRule `mapstructure:"relink"`
	Check     []string     `mapstructure:"check"`
	Remove    []string     `mapstructure:"remove"`
	MaxPasses int          `mapstructure:"max_passes"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SceneConfig locates the scene file
type SceneConfig struct {
	Path string `mapstructure:"path"`
}

// RecordsConfig configures the record store. An empty RedisAddr selects
// the in-process memory store.
type RecordsConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()

	v.SetDefault("manager.max_passes", manager.DefaultMaxPasses)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("scene.path", "scene.db")
	v.SetDefault("records.redis_addr", "")
	v.SetDefault("records.password", "")
	v.SetDefault("records.db", 0)
	v.SetDefault("records.prefix", recordstore.DefaultConfig().Prefix)
	v.SetDefault("records.ttl", recordstore.DefaultConfig().DefaultTTL)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config from path, or from metanode.yaml in the working
// directory when path is empty. A missing metanode.yaml falls back to the
// defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.File = v.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Manager.MaxPasses < 0 {
		return fmt.Errorf("%w: manager.max_passes must not be negative, got %d", ErrInvalid, c.Manager.MaxPasses)
	}
	for i, rule := range c.Manager.Relink {
		if rule.From == "" || rule.To == "" {
			return fmt.Errorf("%w: manager.relink[%d] needs both from and to", ErrInvalid, i)
		}
		if rule.From == rule.To {
			return fmt.Errorf("%w: manager.relink[%d] maps %s to itself", ErrInvalid, i, rule.From)
		}
	}
	if c.Records.TTL < 0 {
		return fmt.Errorf("%w: records.ttl must not be negative", ErrInvalid)
	}
	if c.Scene.Path == "" {
		return fmt.Errorf("%w: scene.path is empty", ErrInvalid)
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// ToManager converts the manager section for manager.New
func (c *Config) ToManager() manager.Config {
	relink := make(map[string]string, len(c.Manager.Relink))
	for _, rule := range c.Manager.Relink {
		relink[rule.From] = rule.To
	}
	return manager.Config{
		Relink:    relink,
		Check:     append([]string(nil), c.Manager.Check...),
		Remove:    append([]string(nil), c.Manager.Remove...),
		MaxPasses: c.Manager.MaxPasses,
	}
}

// Logger builds the configured logger
func (c *Config) Logger() (*zap.Logger, error) {
	return logging.New(c.Log.Level, c.Log.Development)
}

// StoreConfig returns the settings shared by every record store backend
func (c *Config) StoreConfig() recordstore.Config {
	return recordstore.Config{
		DefaultTTL: c.Records.TTL,
		Prefix:     c.Records.Prefix,
	}
}

// OpenRecords opens the configured record store
func (c *Config) OpenRecords(ctx context.Context) (recordstore.Store, error) {
	if c.Records.RedisAddr == "" {
		return recordstore.NewMemoryStoreWithConfig(c.StoreConfig()), nil
	}
	store, err := recordstore.NewRedisStore(ctx, recordstore.RedisConfig{
		Addr:     c.Records.RedisAddr,
		Password: c.Records.Password,
		DB:       c.Records.DB,
		Store:    c.StoreConfig(),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
