// Package directory provides the read side of an Active Directory
// connection for the sync engine: dial and bind, cookie-paged subtree
// searches, and decoding of the binary objectGUID/objectSid attributes.
//
// A connection lives for one cycle's traversal only. There is no pooling
// and no reuse across cycles.
package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Authentication methods.
const (
	AuthSimple   = "simple"
	AuthKerberos = "kerberos"
)

// Kerberos holds the GSSAPI bind settings used when Auth is
// AuthKerberos. When Keytab is empty the bind falls back to password
// authentication against the KDC.
type Kerberos struct {
	Realm  string
	Config string // path to krb5.conf, /etc/krb5.conf when empty
	Keytab string
}

// Config holds the connection settings for one cycle's directory
// session.
type Config struct {
	Host     string
	Port     int
	BindDN   string // bind principal: DN for simple bind, principal name for Kerberos
	Password string
	Auth     string // AuthSimple or AuthKerberos
	Kerberos Kerberos
}

// Client owns a bound directory connection for the duration of one
// traversal.
type Client struct {
	conn *ldap.Conn
}

// Connect dials the directory and authenticates with the configured
// method. The caller must Close the client before the next cycle's
// connect attempt.
func Connect(cfg Config) (*Client, error) {
	conn, err := ldap.DialURL(fmt.Sprintf("ldap://%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, NewDirectoryError("dial", err)
	}

	var bindErr error
	switch cfg.Auth {
	case AuthKerberos:
		bindErr = kerberosBind(conn, cfg)
	default:
		bindErr = conn.Bind(cfg.BindDN, cfg.Password)
	}
	if bindErr != nil {
		_ = conn.Close()
		return nil, NewDirectoryError("bind", bindErr)
	}

	return &Client{conn: conn}, nil
}

// Search executes one search request on the underlying connection.
func (c *Client) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.conn.Search(req)
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
