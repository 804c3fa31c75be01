package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/danieljhkim/mirrorsync/internal/audit"
	"github.com/danieljhkim/mirrorsync/internal/clock"
	"github.com/danieljhkim/mirrorsync/internal/config"
	"github.com/danieljhkim/mirrorsync/internal/dispatch"
	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/danieljhkim/mirrorsync/internal/lock"
	"github.com/danieljhkim/mirrorsync/internal/notify"
	"github.com/danieljhkim/mirrorsync/internal/sync"
)

// ErrAuditDisabled is returned by commands that read the audit log when it
// is turned off.
var ErrAuditDisabled = errors.New("audit log is disabled (audit.enabled=false)")

// app holds everything a command needs to handle events.
type app struct {
	settings   *config.Settings
	registry   *config.Registry
	dispatcher *dispatch.Dispatcher
	locks      lock.Service
	store      *audit.Store
}

// Close releases the lock service and the audit database.
func (a *app) Close() error {
	var errs []error
	if err := a.locks.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadConfig resolves settings and the repository registry from the config
// file, the environment and the global flags.
func loadConfig() (*config.Settings, *config.Registry, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	v := viper.New()
	if err := config.Load(v, cfgFile, paths); err != nil {
		return nil, nil, err
	}
	if err := v.BindPFlag("suppress_stderr", rootCmd.PersistentFlags().Lookup("suppress-stderr")); err != nil {
		return nil, nil, err
	}

	settings, err := config.FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	registry, err := config.LoadRegistry(v)
	if err != nil {
		return nil, nil, err
	}
	return settings, registry, nil
}

// newApp creates an app with real implementations of all dependencies.
func newApp(ctx context.Context) (*app, error) {
	settings, registry, err := loadConfig()
	if err != nil {
		return nil, err
	}
	oracle, err := gitx.NewRealOracle(settings.GitBinary)
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, settings, registry, oracle)
}

// buildApp wires the dispatcher around oracle.
func buildApp(ctx context.Context, settings *config.Settings, registry *config.Registry, oracle gitx.Oracle) (*app, error) {
	locks, err := newLockService(ctx, settings.Lock)
	if err != nil {
		return nil, err
	}

	store, err := openAudit(ctx, settings.Audit)
	if err != nil {
		_ = locks.Close()
		return nil, err
	}
	// a nil *audit.Store must not become a non-nil Recorder
	var recorder audit.Recorder
	if store != nil {
		recorder = store
	}

	notifier, err := newNotifier(settings.SMTP)
	if err != nil {
		_ = locks.Close()
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	d := dispatch.New(registry, sync.New(oracle), locks, recorder, notifier, clock.RealClock{}, settings.GitTimeout)
	return &app{
		settings:   settings,
		registry:   registry,
		dispatcher: d,
		locks:      locks,
		store:      store,
	}, nil
}

func newLockService(ctx context.Context, s config.LockSettings) (lock.Service, error) {
	if s.Backend == config.LockBackendRedis {
		return lock.NewRedisService(ctx, lock.RedisConfig{
			URL:           s.RedisURL,
			TTL:           s.TTL,
			RetryInterval: s.RetryInterval,
		})
	}
	return lock.NewLocalService(), nil
}

// openAudit returns nil when the audit log is disabled.
func openAudit(ctx context.Context, s config.AuditSettings) (*audit.Store, error) {
	if !s.Enabled {
		return nil, nil
	}
	if s.Driver == config.AuditDriverSQLite {
		if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return audit.Open(ctx, audit.Config{Driver: s.Driver, DSN: s.DataSource()})
}

func newNotifier(s config.SMTPSettings) (notify.Notifier, error) {
	if s.Host == "" {
		klog.V(1).InfoS("No smtp.host configured, owner notifications go to the log")
		return notify.LogNotifier{}, nil
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		From:     s.From,
		ReplyTo:  s.ReplyTo,
		Username: s.Username,
		Password: s.Password,
		TLS:      s.TLS,
	})
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
