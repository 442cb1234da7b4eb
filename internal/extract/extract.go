// Package extract builds the normalized entity graph for one sync cycle
// from raw directory entries: a group index keyed by distinguished name,
// persons resolved against that index, and the membership edges between
// them. Entry-level problems are skipped with a debug log; they never
// abort the cycle.
package extract

import (
	"log/slog"

	"github.com/go-ldap/ldap/v3"

	"adsync/internal/creds"
	"adsync/internal/directory"
	"adsync/internal/record"
)

// structural attributes carry graph topology or binary identity and are
// never copied into entity attribute maps.
var structural = map[string]bool{
	"member":     true,
	"memberOf":   true,
	"objectGUID": true,
	"objectSid":  true,
}

// Groups builds the cycle's group index keyed by distinguished name.
func Groups(entries []*ldap.Entry, log *slog.Logger) map[string]*record.Group {
	groups := make(map[string]*record.Group, len(entries))
	for _, entry := range entries {
		guid, err := directory.DecodeGUID(entry.GetRawAttributeValue("objectGUID"))
		if err != nil {
			log.Debug("skipping group with undecodable objectGUID", "dn", entry.DN, "error", err)
			continue
		}
		groups[entry.DN] = &record.Group{
			DN:       entry.DN,
			GlobalID: guid,
			Attrs:    attributeMap(entry, log),
		}
	}
	return groups
}

// Persons resolves user entries against the same-cycle group index and
// derives credentials for every person that lands in at least one known
// group.
//
// A person whose memberOf values all point outside the index is dropped
// entirely: membership in an unrecognized group does not count as
// membership, which keeps a stale or partial group search from minting
// orphaned logins.
func Persons(entries []*ldap.Entry, groups map[string]*record.Group, secret string, log *slog.Logger) ([]*record.Person, []record.Membership) {
	var persons []*record.Person
	var memberships []record.Membership

	for _, entry := range entries {
		refs := entry.GetAttributeValues("memberOf")
		if len(refs) == 0 {
			log.Debug("person has no memberships at all, skipping", "dn", entry.DN)
			continue
		}

		guid, err := directory.DecodeGUID(entry.GetRawAttributeValue("objectGUID"))
		if err != nil {
			log.Debug("skipping person with undecodable objectGUID", "dn", entry.DN, "error", err)
			continue
		}

		inGroup := false
		for _, ref := range refs {
			group, ok := groups[ref]
			if !ok {
				continue
			}
			memberships = append(memberships, record.Membership{
				PersonID: guid,
				GroupID:  group.GlobalID,
			})
			inGroup = true
		}
		if !inGroup {
			log.Debug("person has no membership in known groups, skipping", "dn", entry.DN)
			continue
		}

		login, password, err := creds.Derive(directory.GUIDHex(guid), secret)
		if err != nil {
			// Unreachable for a GUID that just decoded, but an entry-level
			// problem must never abort the cycle.
			log.Debug("skipping person with underivable credentials", "dn", entry.DN, "error", err)
			continue
		}

		persons = append(persons, &record.Person{
			DN:       entry.DN,
			GlobalID: guid,
			Login:    login,
			Password: password,
			Attrs:    attributeMap(entry, log),
		})
	}

	return persons, memberships
}

// attributeMap copies the first value of every non-structural attribute.
// Multi-valued semantics beyond "first value" are intentionally
// discarded. A binary objectSid, when present, is decoded to its string
// form instead of being copied raw.
func attributeMap(entry *ldap.Entry, log *slog.Logger) map[string]string {
	attrs := make(map[string]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		if structural[attr.Name] || len(attr.Values) == 0 {
			continue
		}
		attrs[attr.Name] = attr.Values[0]
	}
	if raw := entry.GetRawAttributeValue("objectSid"); len(raw) > 0 {
		sid, err := directory.DecodeSID(raw)
		if err != nil {
			log.Debug("dropping undecodable objectSid", "dn", entry.DN, "error", err)
		} else {
			attrs["objectSid"] = sid
		}
	}
	return attrs
}
