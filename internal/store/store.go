// Package store persists one cycle's entity snapshot into the
// configured relational backend through its stored procedures. Two
// backend variants exist; both report per-item status, attempt every
// item even after earlier failures, and finish with a "run sync" call.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"adsync/internal/config"
	"adsync/internal/record"
)

// ItemError records one entity the backend rejected without aborting
// its batch. Key carries enough identifying data to locate the record
// in the directory.
type ItemError struct {
	Kind    string // "group", "person", "membership" or "sync"
	Key     string
	Message string
}

// Result summarizes one persistence run: how many items were submitted
// and which of them the backend rejected.
type Result struct {
	Groups      int
	Persons     int
	Memberships int
	Errors      []ItemError
}

// Driver submits a whole cycle's snapshot to a backend. Item-level
// failures land in the Result; a non-nil error means persistence was
// aborted at the connection level and the cycle must be retried.
type Driver interface {
	SaveAndSync(ctx context.Context, groups map[string]*record.Group, persons []*record.Person, memberships []record.Membership) (*Result, error)
}

// New selects the backend variant from validated configuration. The set
// is closed: exactly two backends exist and config validation has
// already established that exactly one is present.
func New(cfg *config.Config, log *slog.Logger) (Driver, error) {
	switch {
	case cfg.PG != nil:
		return NewPostgres(cfg.PG.DSN(), log), nil
	case cfg.Oracle != nil:
		return NewOracle(cfg.Oracle.DSN(), log), nil
	default:
		return nil, errors.New("no backend configured")
	}
}

// sortedDNs fixes the group submission order. Backends must not depend
// on it; logs are easier to follow when they do not jump around.
func sortedDNs(groups map[string]*record.Group) []string {
	dns := make([]string, 0, len(groups))
	for dn := range groups {
		dns = append(dns, dn)
	}
	sort.Strings(dns)
	return dns
}
