package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	go_ora "github.com/sijms/go-ora/v2"

	"adsync/internal/record"
)

// outMessageSize bounds the OUT message buffer the procedures fill.
const outMessageSize = 2000

// oraCodePrefix matches the vendor error-code prefix (ORA-NNNNN:) that
// driver errors carry in front of the useful message.
var oraCodePrefix = regexp.MustCompile(`^ORA-\d+:\s*`)

// oraTx is the transaction surface the Oracle driver needs; *sql.Tx
// satisfies it.
type oraTx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// oraSession hands out transactions; *sql.DB is adapted below and tests
// substitute a fake.
type oraSession interface {
	Begin(ctx context.Context) (oraTx, error)
	Close() error
}

type sqlSession struct {
	db *sql.DB
}

func (s sqlSession) Begin(ctx context.Context) (oraTx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s sqlSession) Close() error {
	return s.db.Close()
}

// Oracle is the out-parameter status backend. Groups, persons and
// memberships are each committed as their own phase, then the finalize
// procedure runs in its own transaction. Every call supplies an integer
// status and message output; a non-zero status or a per-call driver
// error becomes an ItemError without aborting the batch. Only a failure
// to establish or maintain the connection is fatal to the cycle.
type Oracle struct {
	dsn     string
	log     *slog.Logger
	connect func(ctx context.Context) (oraSession, error)
}

// NewOracle returns the Oracle driver for dsn.
func NewOracle(dsn string, log *slog.Logger) *Oracle {
	d := &Oracle{dsn: dsn, log: log}
	d.connect = func(ctx context.Context) (oraSession, error) {
		db, err := sql.Open("oracle", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlSession{db: db}, nil
	}
	return d
}

// SaveAndSync implements Driver.
func (d *Oracle) SaveAndSync(ctx context.Context, groups map[string]*record.Group, persons []*record.Person, memberships []record.Membership) (*Result, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to oracle: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	res := &Result{}

	err = d.phase(ctx, conn, "groups", func(tx oraTx) error {
		for _, dn := range sortedDNs(groups) {
			g := groups[dn]
			if err := d.call(ctx, tx, res, "group", g.DN,
				"BEGIN ldap_sync.save_group(:doc, :status, :msg); END;",
				string(g.Document())); err != nil {
				return err
			}
			res.Groups++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = d.phase(ctx, conn, "persons", func(tx oraTx) error {
		for _, p := range persons {
			if err := d.call(ctx, tx, res, "person", p.DN,
				"BEGIN ldap_sync.save_person(:doc, :status, :msg); END;",
				string(p.Document())); err != nil {
				return err
			}
			res.Persons++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = d.phase(ctx, conn, "memberships", func(tx oraTx) error {
		for _, m := range memberships {
			if err := d.call(ctx, tx, res, "membership", m.PersonID+" -> "+m.GroupID,
				"BEGIN ldap_sync.save_membership(:person_guid, :group_guid, :status, :msg); END;",
				m.PersonID, m.GroupID); err != nil {
				return err
			}
			res.Memberships++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Finalize runs while the connection is alive even when every prior
	// item failed; its failure never undoes the committed phases.
	err = d.phase(ctx, conn, "sync", func(tx oraTx) error {
		return d.call(ctx, tx, res, "sync", "ldap_sync.run_sync",
			"BEGIN ldap_sync.run_sync(:status, :msg); END;")
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// phase runs fn inside its own committed transaction. fn only returns
// an error for connection-level conditions.
func (d *Oracle) phase(ctx context.Context, conn oraSession, name string, fn func(tx oraTx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s phase: %w", name, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s phase: %w", name, err)
	}
	return nil
}

// call invokes one procedure with appended status/message OUT
// parameters. A non-zero status or a call-level driver error becomes an
// ItemError; context cancellation is the one fatal condition.
func (d *Oracle) call(ctx context.Context, tx oraTx, res *Result, kind, key, stmt string, args ...any) error {
	var (
		status int64
		msg    string
	)
	callArgs := append(args,
		go_ora.Out{Dest: &status},
		go_ora.Out{Dest: &msg, Size: outMessageSize},
	)

	if _, err := tx.ExecContext(ctx, stmt, callArgs...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %q: %w", kind, key, err)
		}
		message := oraCodePrefix.ReplaceAllString(err.Error(), "")
		res.Errors = append(res.Errors, ItemError{Kind: kind, Key: key, Message: message})
		d.log.Error("backend call failed", "kind", kind, "key", key, "error", message)
		return nil
	}

	if status != 0 {
		res.Errors = append(res.Errors, ItemError{Kind: kind, Key: key, Message: msg})
		d.log.Error("backend rejected item", "kind", kind, "key", key, "status", status, "message", msg)
	}
	return nil
}
