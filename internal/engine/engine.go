// Package engine drives the synchronization loop: load config, connect
// and bind, traverse and extract, persist, sleep, repeat. Every fatal
// condition backs off and restarts from config loading so operators can
// correct a bad configuration while the daemon keeps running.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"

	"adsync/internal/config"
	"adsync/internal/directory"
	"adsync/internal/extract"
	"adsync/internal/store"
)

// commonAttrs are requested on every search in addition to the
// configured attribute lists.
var commonAttrs = []string{"cn", "objectGUID", "objectCategory", "memberOf"}

// configRetryInterval is the fixed backoff after a config load or
// validation failure. The configured retry interval cannot apply here:
// there is no trusted config to read it from.
const configRetryInterval = 60 * time.Second

// searchCloser is the directory session surface one cycle consumes.
// *directory.Client satisfies it.
type searchCloser interface {
	directory.Searcher
	Close() error
}

// Engine owns the sync loop. All working state is scoped to a single
// cycle and discarded when the cycle ends.
type Engine struct {
	configPath string
	dryRun     bool
	log        *slog.Logger
	level      *slog.LevelVar // nil when the handler level is fixed

	// seams, replaced in tests
	loadConfig func(path string) (*config.Config, error)
	connect    func(cfg directory.Config) (searchCloser, error)
	newDriver  func(cfg *config.Config, log *slog.Logger) (store.Driver, error)
	sleep      func(ctx context.Context, d time.Duration)
}

// New returns an engine reading its configuration from configPath on
// every cycle. dryRun forces persistence off regardless of config.
func New(configPath string, dryRun bool, log *slog.Logger) *Engine {
	return &Engine{
		configPath: configPath,
		dryRun:     dryRun,
		log:        log,
		loadConfig: config.Load,
		connect: func(cfg directory.Config) (searchCloser, error) {
			return directory.Connect(cfg)
		},
		newDriver: store.New,
		sleep:     sleepContext,
	}
}

// SetLevelVar hands the engine the handler's level variable so the
// configured verbosity takes effect on every reload.
func (e *Engine) SetLevelVar(level *slog.LevelVar) {
	e.level = level
}

// Run loops until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("starting sync main loop")
	for ctx.Err() == nil {
		delay := e.RunOnce(ctx)
		e.sleep(ctx, delay)
	}
}

// RunOnce executes a single cycle and returns how long to wait before
// the next one.
func (e *Engine) RunOnce(ctx context.Context) time.Duration {
	cfg, err := e.loadConfig(e.configPath)
	if err != nil {
		e.log.Error("config load error", "error", err, "retry_in", configRetryInterval)
		return configRetryInterval
	}
	if e.level != nil {
		e.level.Set(cfg.SlogLevel())
	}

	conn, err := e.connect(directoryConfig(&cfg.Directory))
	if err != nil {
		e.log.Error("directory connect/bind failed", "error", err, "retry_in", cfg.ErrorRetryInterval)
		return cfg.ErrorRetryInterval
	}

	groupEntries, userEntries, err := e.traverse(conn, cfg)
	_ = conn.Close() // released before persistence and the next cycle
	if err != nil {
		if errors.Is(err, directory.ErrPageLimit) {
			// Defensive guard against a server that never ends paging;
			// retried on the normal schedule.
			e.log.Error("paged search aborted", "error", err, "retry_in", cfg.Directory.SyncInterval)
			return cfg.Directory.SyncInterval
		}
		e.log.Error("directory search failed", "error", err, "retry_in", cfg.ErrorRetryInterval)
		return cfg.ErrorRetryInterval
	}

	groups := extract.Groups(groupEntries, e.log)
	persons, memberships := extract.Persons(userEntries, groups, cfg.Directory.Key, e.log)
	e.log.Info("search results",
		"groups", len(groups), "persons", len(persons), "memberships", len(memberships))

	if e.dryRun || cfg.DryRun {
		e.log.Info("dry run, discarding extracted records")
		return cfg.Directory.SyncInterval
	}

	driver, err := e.newDriver(cfg, e.log)
	if err != nil {
		e.log.Error("backend selection failed", "error", err, "retry_in", cfg.ErrorRetryInterval)
		return cfg.ErrorRetryInterval
	}

	res, err := driver.SaveAndSync(ctx, groups, persons, memberships)
	if err != nil {
		e.log.Error("persistence aborted", "error", err, "retry_in", cfg.ErrorRetryInterval)
		return cfg.ErrorRetryInterval
	}

	e.log.Info("cycle complete",
		"groups", res.Groups,
		"persons", res.Persons,
		"memberships", res.Memberships,
		"item_errors", len(res.Errors))
	return cfg.Directory.SyncInterval
}

// traverse runs the cycle's two paged searches on one connection.
func (e *Engine) traverse(conn searchCloser, cfg *config.Config) (groups, users []*ldap.Entry, err error) {
	pager := directory.NewPager(conn, uint32(cfg.Directory.PageSize), cfg.Directory.MaxPages, e.log)

	groups, err = pager.Search(cfg.Directory.BaseGroupDN, cfg.Directory.FilterGroups,
		append(commonAttrs, cfg.Directory.GroupAttrs...))
	if err != nil {
		return nil, nil, err
	}
	users, err = pager.Search(cfg.Directory.BaseUserDN, cfg.Directory.FilterUsers,
		append(commonAttrs, cfg.Directory.UserAttrs...))
	if err != nil {
		return nil, nil, err
	}
	return groups, users, nil
}

func directoryConfig(d *config.Directory) directory.Config {
	cfg := directory.Config{
		Host:     d.Host,
		Port:     d.Port,
		BindDN:   d.BindDN,
		Password: d.Password,
		Auth:     d.Auth,
	}
	if d.Kerberos != nil {
		cfg.Kerberos = directory.Kerberos{
			Realm:  d.Kerberos.Realm,
			Config: d.Kerberos.Config,
			Keytab: d.Kerberos.Keytab,
		}
	}
	return cfg
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
