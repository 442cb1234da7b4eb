// Package config loads and validates the daemon's YAML configuration.
// Structure and rules follow the operational contract: exactly one
// backend block must be present, and an Oracle block must name exactly
// one connection target.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	go_ora "github.com/sijms/go-ora/v2"
	"github.com/spf13/viper"
)

// Directory configures the connection to and traversal of the directory
// service.
type Directory struct {
	Host     string    `mapstructure:"host" validate:"required"`
	Port     int       `mapstructure:"port" default:"389"`
	BindDN   string    `mapstructure:"bind_dn" validate:"required"`
	Password string    `mapstructure:"password" validate:"required"`
	Auth     string    `mapstructure:"auth" default:"simple" validate:"oneof=simple kerberos"`
	Kerberos *Kerberos `mapstructure:"kerberos"`

	BaseGroupDN  string   `mapstructure:"base_group_dn" validate:"required"`
	BaseUserDN   string   `mapstructure:"base_user_dn" validate:"required"`
	FilterGroups string   `mapstructure:"filter_groups" validate:"required"`
	FilterUsers  string   `mapstructure:"filter_users" validate:"required"`
	GroupAttrs   []string `mapstructure:"group_attrs"`
	UserAttrs    []string `mapstructure:"user_attrs"`

	// Key is the shared secret mixed into credential derivation.
	Key string `mapstructure:"key" validate:"required"`

	SyncInterval time.Duration `mapstructure:"sync_interval" default:"300s"`
	PageSize     int           `mapstructure:"page_size" default:"500"`
	// MaxPages guards against a server that never signals end-of-paging.
	MaxPages int `mapstructure:"max_pages" default:"999"`
}

// Kerberos configures the GSSAPI bind; required when auth is
// "kerberos".
type Kerberos struct {
	Realm  string `mapstructure:"realm" validate:"required"`
	Config string `mapstructure:"config"`
	Keytab string `mapstructure:"keytab"`
}

// Postgres is the connection block for the single-statement-per-item
// backend.
type Postgres struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
}

// DSN renders the block as a Postgres connection URL.
func (p *Postgres) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Oracle is the connection block for the out-parameter status backend.
// Exactly one of SID, ServiceName, TNSName selects the target; host and
// port are required unless TNSName carries the full connect descriptor.
type Oracle struct {
	User        string `mapstructure:"user" validate:"required"`
	Password    string `mapstructure:"password" validate:"required"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	SID         string `mapstructure:"sid"`
	ServiceName string `mapstructure:"service_name"`
	TNSName     string `mapstructure:"tns_name"`
}

// DSN renders the block as a go-ora connection URL. validate has already
// established that exactly one target is set.
func (o *Oracle) DSN() string {
	switch {
	case o.TNSName != "":
		u := url.URL{
			Scheme: "oracle",
			User:   url.UserPassword(o.User, o.Password),
		}
		return u.String() + "@" + o.TNSName
	case o.ServiceName != "":
		return go_ora.BuildUrl(o.Host, o.Port, o.ServiceName, o.User, o.Password, nil)
	default:
		return go_ora.BuildUrl(o.Host, o.Port, "", o.User, o.Password, map[string]string{"SID": o.SID})
	}
}

func (o *Oracle) validate() error {
	targets := 0
	for _, t := range []string{o.SID, o.ServiceName, o.TNSName} {
		if t != "" {
			targets++
		}
	}
	if targets != 1 {
		return fmt.Errorf("oracle: exactly one of sid/service_name/tns_name must be set, %d given", targets)
	}
	if o.TNSName == "" && (o.Host == "" || o.Port == 0) {
		return errors.New("oracle: host and port are required with sid/service_name")
	}
	return nil
}

// Config is the full configuration surface.
type Config struct {
	LogLevel           string        `mapstructure:"log_level" default:"info" validate:"oneof=debug info warn error"`
	DryRun             bool          `mapstructure:"dry_run"`
	ErrorRetryInterval time.Duration `mapstructure:"error_retry_interval" default:"60s"`

	Directory Directory `mapstructure:"directory"`
	PG        *Postgres `mapstructure:"pg"`
	Oracle    *Oracle   `mapstructure:"oracle"`
}

// SlogLevel maps the configured verbosity to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads, defaults and validates the configuration file at path.
// Any returned error is fatal to the cycle, never to the process; the
// orchestrator backs off and reloads.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.crossValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) crossValidate() error {
	if c.PG != nil && c.Oracle != nil {
		return errors.New("config: oracle and pg both present, exactly one backend must be configured")
	}
	if c.PG == nil && c.Oracle == nil {
		return errors.New("config: no backend configured, one of oracle/pg is required")
	}
	if c.Oracle != nil {
		if err := c.Oracle.validate(); err != nil {
			return err
		}
	}
	if c.Directory.Auth == "kerberos" && c.Directory.Kerberos == nil {
		return errors.New("config: directory.kerberos block is required when auth is kerberos")
	}
	if c.Directory.SyncInterval <= 0 {
		return errors.New("config: directory.sync_interval must be positive")
	}
	if c.Directory.PageSize <= 0 || c.Directory.MaxPages <= 0 {
		return errors.New("config: directory.page_size and max_pages must be positive")
	}
	return nil
}
