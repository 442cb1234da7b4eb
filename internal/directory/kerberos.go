package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind performs a SASL/GSSAPI bind. The daemon runs unattended,
// so credentials come from an explicit keytab or the bind password —
// never an interactive credential cache.
func kerberosBind(conn *ldap.Conn, cfg Config) error {
	krbConf := cfg.Kerberos.Config
	if krbConf == "" {
		krbConf = "/etc/krb5.conf"
	}

	var (
		gssClient ldap.GSSAPIClient
		err       error
	)
	if cfg.Kerberos.Keytab != "" {
		gssClient, err = gssapi.NewClientWithKeytab(
			cfg.BindDN, cfg.Kerberos.Realm, cfg.Kerberos.Keytab, krbConf,
			krb5client.DisablePAFXFAST(true))
	} else {
		gssClient, err = gssapi.NewClientWithPassword(
			cfg.BindDN, cfg.Kerberos.Realm, cfg.Password, krbConf,
			krb5client.DisablePAFXFAST(true))
	}
	if err != nil {
		return fmt.Errorf("create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssClient.DeleteSecContext()
	}()

	spn := "ldap/" + cfg.Host
	if err := conn.GSSAPIBind(gssClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind as %s: %w", cfg.BindDN, err)
	}
	return nil
}
