package directory

import (
	"fmt"
	"log/slog"

	"github.com/go-ldap/ldap/v3"
)

// Searcher is the slice of connection behavior the pager drives.
// *Client satisfies it; tests substitute a fake server.
type Searcher interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// Pager runs cookie-paged subtree searches against one bound
// connection. A Pager is restartable within a cycle but carries no state
// across cycles.
type Pager struct {
	conn     Searcher
	pageSize uint32
	maxPages int
	log      *slog.Logger
}

// NewPager returns a pager issuing pages of pageSize entries, aborting
// with ErrPageLimit after maxPages pages.
func NewPager(conn Searcher, pageSize uint32, maxPages int, log *slog.Logger) *Pager {
	return &Pager{conn: conn, pageSize: pageSize, maxPages: maxPages, log: log}
}

// Search walks the complete result set under base, threading the
// server's continuation cookie through repeated requests until the
// server returns an empty cookie. A response without any paging control
// means the server ignored paging; the single batch is then treated as
// the complete result. Referral stubs (entries with an empty DN) are
// dropped.
func (p *Pager) Search(base, filter string, attrs []string) ([]*ldap.Entry, error) {
	paging := ldap.NewControlPaging(p.pageSize)
	var entries []*ldap.Entry

	for page := 1; ; page++ {
		if page > p.maxPages {
			return nil, fmt.Errorf("%w: %d pages searching %q", ErrPageLimit, p.maxPages, base)
		}

		req := ldap.NewSearchRequest(
			base,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			0, // no size limit when paging
			0,
			false,
			filter,
			attrs,
			[]ldap.Control{paging},
		)

		result, err := p.conn.Search(req)
		if err != nil {
			return nil, NewDirectoryError("search", err)
		}

		for _, entry := range result.Entries {
			if entry.DN == "" {
				continue // referral stub
			}
			entries = append(entries, entry)
		}

		response, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok {
			p.log.Warn("server returned no paging control, treating batch as complete",
				"base", base, "page", page, "entries", len(entries))
			break
		}
		if len(response.Cookie) == 0 {
			break
		}
		paging.SetCookie(response.Cookie)

		p.log.Debug("search page complete",
			"base", base, "page", page, "entries", len(entries))
	}

	return entries, nil
}
