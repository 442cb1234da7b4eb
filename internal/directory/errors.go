package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrPageLimit reports a paged search that exceeded the page cap without
// the server ever signalling end-of-paging. It aborts the cycle; a
// healthy directory never hits it.
var ErrPageLimit = errors.New("paged search exceeded page limit")

// DirectoryError wraps a failed directory operation with the LDAP result
// code and server message when available.
type DirectoryError struct {
	Operation string // the operation that failed ("dial", "bind", "search")
	Code      uint16 // LDAP result code, 0 when not an LDAP-level failure
	Message   string
	Cause     error
}

func (e *DirectoryError) Error() string {
	var parts []string
	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Operation))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// NewDirectoryError extracts LDAP result details from err, mirroring the
// way operators expect bind failures to surface: the server's diagnostic
// text rather than the driver's wrapper.
func NewDirectoryError(operation string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	de := &DirectoryError{Operation: operation, Cause: err}
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		de.Code = ldapErr.ResultCode
		de.Message = ldap.LDAPResultCodeMap[ldapErr.ResultCode]
	} else {
		de.Message = err.Error()
	}
	return de
}
