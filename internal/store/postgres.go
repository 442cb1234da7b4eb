package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"adsync/internal/record"
)

// pgSentinel is the literal rendering of the two-field success tuple the
// lds_save_* procedures return.
const pgSentinel = "(0,Success)"

// pgSession is the subset of *pgx.Conn the driver uses, split out so
// tests can substitute a fake transaction source.
type pgSession interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Postgres is the single-statement-per-item backend: one connection,
// one transaction for the whole snapshot. Every item is attempted; a
// result row that does not match the success sentinel becomes an
// ItemError but never rolls back the transaction, which commits once
// after the finalize call. Only connection-level failures abort.
type Postgres struct {
	dsn     string
	log     *slog.Logger
	connect func(ctx context.Context) (pgSession, error)
}

// NewPostgres returns the Postgres driver for dsn.
func NewPostgres(dsn string, log *slog.Logger) *Postgres {
	d := &Postgres{dsn: dsn, log: log}
	d.connect = func(ctx context.Context) (pgSession, error) {
		return pgx.Connect(ctx, dsn)
	}
	return d
}

// SaveAndSync implements Driver.
func (d *Postgres) SaveAndSync(ctx context.Context, groups map[string]*record.Group, persons []*record.Person, memberships []record.Membership) (*Result, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op once committed
	}()

	res := &Result{}
	for _, dn := range sortedDNs(groups) {
		g := groups[dn]
		if err := d.call(ctx, tx, res, "group", g.DN,
			"select lds_save_group($1)::text", string(g.Document())); err != nil {
			return nil, err
		}
		res.Groups++
	}
	for _, p := range persons {
		if err := d.call(ctx, tx, res, "person", p.DN,
			"select lds_save_person($1)::text", string(p.Document())); err != nil {
			return nil, err
		}
		res.Persons++
	}
	for _, m := range memberships {
		if err := d.call(ctx, tx, res, "membership", m.PersonID+" -> "+m.GroupID,
			"select lds_save_membership($1, $2)::text", m.PersonID, m.GroupID); err != nil {
			return nil, err
		}
		res.Memberships++
	}

	if err := d.call(ctx, tx, res, "sync", "lds_run_sync",
		"select lds_run_sync()::text"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// call invokes one procedure and matches its single-row result against
// the success sentinel. A mismatch is an item error and processing
// continues; a failure to execute the statement at all is
// connection-level and aborts the run.
func (d *Postgres) call(ctx context.Context, tx pgx.Tx, res *Result, kind, key, query string, args ...any) error {
	var status string
	if err := tx.QueryRow(ctx, query, args...).Scan(&status); err != nil {
		return fmt.Errorf("%s %q: %w", kind, key, err)
	}
	if status != pgSentinel {
		res.Errors = append(res.Errors, ItemError{Kind: kind, Key: key, Message: status})
		d.log.Error("backend rejected item", "kind", kind, "key", key, "status", status)
	}
	return nil
}
