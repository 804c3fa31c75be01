package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/danieljhkim/mirrorsync/internal/notify"
)

// EnvPrefix prefixes every environment variable mirrorsync reads.
const EnvPrefix = "MIRRORSYNC"

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// SMTP TLS policies.
const (
	TLSNone          = notify.TLSNone
	TLSOpportunistic = notify.TLSOpportunistic
	TLSMandatory     = notify.TLSMandatory
)

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the resolved process settings.
type Settings struct {
	GitBinary      string
	GitTimeout     time.Duration
	SuppressStderr bool
	ServeAddr      string
	// ServeSecret authenticates webhook deliveries; empty accepts all
	ServeSecret    string

	Lock  LockSettings
	Audit AuditSettings
	SMTP  SMTPSettings
}

// LockSettings configure per-ref serialisation.
type LockSettings struct {
	Backend       string
	RedisURL      string
	TTL           time.Duration
	RetryInterval time.Duration
}

// AuditSettings configure the audit log.
type AuditSettings struct {
	Enabled bool
	// Driver is "sqlite" or "postgres"
	Driver  string
	// Path is the sqlite database file
	Path    string
	// DSN is the postgres connection string
	DSN     string
}

// DataSource is the connection argument for the configured driver.
func (a AuditSettings) DataSource() string {
	if a.Driver == AuditDriverPostgres {
		return a.DSN
	}
	return a.Path
}

// Audit database drivers.
const (
	AuditDriverSQLite   = "sqlite"
	AuditDriverPostgres = "postgres"
)

// SMTPSettings configure owner notifications. An empty Host disables mail.
type SMTPSettings struct {
	Host     string
	Port     int
	From     string
	ReplyTo  string
	Username string
	Password string
	TLS      string
}

// Load prepares v: defaults, config file search, environment variables.
// cfgFile is optional. A legacy INI file (.conf or .ini) is not read into
// viper; it is recorded as repositories_file and read by LoadRegistry.
func Load(v *viper.Viper, cfgFile string, paths *Paths) error {
	// 1. Defaults
	SetDefaults(v, paths)

	// 2. Environment (MIRRORSYNC_LOCK_BACKEND etc.)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Config file
	if cfgFile != "" && isLegacyConfig(cfgFile) {
		v.Set("repositories_file", cfgFile)
		klog.V(1).InfoS("Using legacy repository file", "path", cfgFile)
		return nil
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(paths.Root)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			klog.V(1).InfoS("No config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	klog.V(1).InfoS("Using config file", "path", v.ConfigFileUsed())
	return nil
}

// SetDefaults installs the default value of every setting.
func SetDefaults(v *viper.Viper, paths *Paths) {
	v.SetDefault("git.binary", "git")
	v.SetDefault("git.timeout", 10*time.Minute)
	v.SetDefault("suppress_stderr", false)
	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("serve.secret", "")

	v.SetDefault("lock.backend", LockBackendLocal)
	v.SetDefault("lock.redis_url", "redis://localhost:6379/0")
	v.SetDefault("lock.ttl", 15*time.Minute)
	v.SetDefault("lock.retry_interval", 250*time.Millisecond)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.driver", AuditDriverSQLite)
	v.SetDefault("audit.path", paths.AuditDB)
	v.SetDefault("audit.dsn", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.from", "mirrorsync@localhost")
	v.SetDefault("smtp.tls", TLSNone)
}

// FromViper resolves and validates Settings.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		GitBinary:      v.GetString("git.binary"),
		GitTimeout:     v.GetDuration("git.timeout"),
		SuppressStderr: v.GetBool("suppress_stderr"),
		ServeAddr:      v.GetString("serve.addr"),
		ServeSecret:    v.GetString("serve.secret"),
		Lock: LockSettings{
			Backend:       strings.ToLower(v.GetString("lock.backend")),
			RedisURL:      v.GetString("lock.redis_url"),
			TTL:           v.GetDuration("lock.ttl"),
			RetryInterval: v.GetDuration("lock.retry_interval"),
		},
		Audit: AuditSettings{
			Enabled: v.GetBool("audit.enabled"),
			Driver:  strings.ToLower(v.GetString("audit.driver")),
			Path:    v.GetString("audit.path"),
			DSN:     v.GetString("audit.dsn"),
		},
		SMTP: SMTPSettings{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			From:     v.GetString("smtp.from"),
			ReplyTo:  v.GetString("smtp.reply_to"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			TLS:      strings.ToLower(v.GetString("smtp.tls")),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks enumerated values and required combinations.
func (s *Settings) Validate() error {
	switch s.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if s.Lock.RedisURL == "" {
			return fmt.Errorf("%w: lock.redis_url is required for the redis backend", ErrInvalidSettings)
		}
		if s.Lock.TTL <= 0 {
			return fmt.Errorf("%w: lock.ttl must be positive", ErrInvalidSettings)
		}
		// the redis key must outlive the longest event it guards
		if s.GitTimeout <= 0 {
			return fmt.Errorf("%w: git.timeout must be set when lock.backend is redis", ErrInvalidSettings)
		}
		if s.Lock.TTL <= s.GitTimeout {
			return fmt.Errorf("%w: lock.ttl (%s) must exceed git.timeout (%s)", ErrInvalidSettings, s.Lock.TTL, s.GitTimeout)
		}
	default:
		return fmt.Errorf("%w: unknown lock.backend %q", ErrInvalidSettings, s.Lock.Backend)
	}

	switch s.SMTP.TLS {
	case TLSNone, TLSOpportunistic, TLSMandatory:
	default:
		return fmt.Errorf("%w: unknown smtp.tls %q", ErrInvalidSettings, s.SMTP.TLS)
	}
	if s.SMTP.Host != "" && (s.SMTP.Port <= 0 || s.SMTP.From == "") {
		return fmt.Errorf("%w: smtp.port and smtp.from are required when smtp.host is set", ErrInvalidSettings)
	}

	if s.Audit.Enabled {
		switch s.Audit.Driver {
		case AuditDriverSQLite:
			if s.Audit.Path == "" {
				return fmt.Errorf("%w: audit.path is required for the sqlite audit log", ErrInvalidSettings)
			}
		case AuditDriverPostgres:
			if s.Audit.DSN == "" {
				return fmt.Errorf("%w: audit.dsn is required for the postgres audit log", ErrInvalidSettings)
			}
		default:
			return fmt.Errorf("%w: unknown audit.driver %q", ErrInvalidSettings, s.Audit.Driver)
		}
	}
	if s.GitTimeout < 0 {
		return fmt.Errorf("%w: git.timeout must not be negative", ErrInvalidSettings)
	}
	return nil
}

func isLegacyConfig(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".conf", ".ini":
		return true
	}
	return false
}
