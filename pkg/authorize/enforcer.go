package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

// PolicyChannel is the LISTEN/NOTIFY channel instances announce policy
// changes on.
const PolicyChannel = "medvault_casbin_policy"

// policyStale is set when a reload triggered by another instance fails. The
// readiness probe reports it so the instance is taken out of rotation.
var policyStale atomic.Bool

func IsPolicyHealthy() bool { return !policyStale.Load() }

type CleanupFunc func(ctx context.Context)

// NewEnforcer loads the model and the casbin_rule table in the database at
// dsn. Every mutation is written through. With PolicySyncEnabled the
// enforcer also follows changes made by other instances.
func NewEnforcer(cfg Config, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	m, err := LoadModel(cfg.CasbinModelPath)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin adapter: %w", err)
	}
	e, err := casbin.NewDistributedEnforcer(m, adapter)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	e.EnableAutoSave(true)

	if !cfg.PolicySyncEnabled {
		return e, func(context.Context) {}, nil
	}

	w, err := watchPolicies(e, dsn)
	if err != nil {
		return nil, nil, err
	}
	return e, func(context.Context) {
		slog.Info("stopping casbin policy watcher")
		w.Close()
	}, nil
}

func watchPolicies(e *casbin.DistributedEnforcer, dsn string) (*psqlwatcher.Watcher, error) {
	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{Channel: PolicyChannel})
	if err != nil {
		return nil, fmt.Errorf("casbin watcher: %w", err)
	}

	reload := func(msg string) {
		err := e.LoadPolicy()
		policyStale.Store(err != nil)
		if err != nil {
			slog.Error("casbin policy reload failed", "notice", msg, "err", err)
			return
		}
		slog.Debug("casbin policy reloaded", "notice", msg)
	}
	if err := w.SetUpdateCallback(reload); err != nil {
		w.Close()
		return nil, err
	}
	if err := e.SetWatcher(w); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
