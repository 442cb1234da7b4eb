package extract

import (
	"log/slog"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsync/internal/record"
)

var (
	groupGUIDRaw = []byte{
		0x04, 0x03, 0x02, 0x01, 0x06, 0x05, 0x08, 0x07,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	}
	otherGroupGUIDRaw = []byte{
		0x14, 0x13, 0x12, 0x11, 0x16, 0x15, 0x18, 0x17,
		0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F, 0x20,
	}
	personGUIDRaw = []byte{
		0xEF, 0xBE, 0xAD, 0xDE, 0xFE, 0xCA, 0xBE, 0xBA,
		0xDE, 0xC0, 0xAD, 0x0B, 0xCA, 0xFE, 0xBA, 0xBE,
	}
)

const (
	groupGUID      = "01020304-0506-0708-090A-0B0C0D0E0F10"
	otherGroupGUID = "11121314-1516-1718-191A-1B1C1D1E1F20"
	personGUID     = "DEADBEEF-CAFE-BABE-DEC0-AD0BCAFEBABE"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func groupEntry(dn string, guid []byte, attrs map[string][]string) *ldap.Entry {
	entry := ldap.NewEntry(dn, attrs)
	entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{
		Name:       "objectGUID",
		Values:     []string{string(guid)},
		ByteValues: [][]byte{guid},
	})
	return entry
}

func personEntry(dn string, guid []byte, memberOf []string, attrs map[string][]string) *ldap.Entry {
	entry := groupEntry(dn, guid, attrs)
	if len(memberOf) > 0 {
		entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{
			Name:   "memberOf",
			Values: memberOf,
		})
	}
	return entry
}

func TestGroupsIndexedByDN(t *testing.T) {
	entries := []*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, map[string][]string{
			"cn":          {"Admins"},
			"description": {"first value", "second value"},
			"member":      {"CN=jdoe,DC=example,DC=org"},
		}),
	}

	groups := Groups(entries, testLogger())
	require.Len(t, groups, 1)

	group := groups["CN=Admins,DC=example,DC=org"]
	require.NotNil(t, group)
	assert.Equal(t, groupGUID, group.GlobalID)
	assert.Equal(t, "Admins", group.Attrs["cn"])
	assert.Equal(t, "first value", group.Attrs["description"], "only the first value survives")
	assert.NotContains(t, group.Attrs, "member", "structural attribute excluded")
	assert.NotContains(t, group.Attrs, "objectGUID", "identity attribute excluded")
}

func TestGroupsSkipsUndecodableGUID(t *testing.T) {
	entries := []*ldap.Entry{
		groupEntry("CN=Broken,DC=example,DC=org", []byte{0x01, 0x02}, nil),
		groupEntry("CN=Good,DC=example,DC=org", groupGUIDRaw, nil),
	}

	groups := Groups(entries, testLogger())
	assert.Len(t, groups, 1)
	assert.Contains(t, groups, "CN=Good,DC=example,DC=org")
}

func TestPersonsResolvedMembership(t *testing.T) {
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
	}, testLogger())

	entries := []*ldap.Entry{
		personEntry("CN=jdoe,DC=example,DC=org", personGUIDRaw,
			[]string{"CN=Admins,DC=example,DC=org"},
			map[string][]string{"cn": {"jdoe"}}),
	}

	persons, memberships := Persons(entries, groups, "secret", testLogger())
	require.Len(t, persons, 1)
	require.Len(t, memberships, 1)

	person := persons[0]
	assert.Equal(t, personGUID, person.GlobalID)
	assert.NotEmpty(t, person.Login)
	assert.NotEmpty(t, person.Password)
	assert.Equal(t, "jdoe", person.Attrs["cn"])
	assert.NotContains(t, person.Attrs, "memberOf")

	assert.Equal(t, record.Membership{PersonID: personGUID, GroupID: groupGUID}, memberships[0])
}

func TestPersonsUnknownGroupOnly(t *testing.T) {
	// The only reference points at a group absent from this cycle's
	// search results: no person, no edge.
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
	}, testLogger())

	entries := []*ldap.Entry{
		personEntry("CN=jdoe,DC=example,DC=org", personGUIDRaw,
			[]string{"CN=Unknown,DC=example,DC=org"}, nil),
	}

	persons, memberships := Persons(entries, groups, "secret", testLogger())
	assert.Empty(t, persons)
	assert.Empty(t, memberships)
}

func TestPersonsPartiallyResolvedMembership(t *testing.T) {
	// One resolvable and one unknown reference: exactly one edge, and
	// the person survives.
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
	}, testLogger())

	entries := []*ldap.Entry{
		personEntry("CN=jdoe,DC=example,DC=org", personGUIDRaw,
			[]string{
				"CN=Unknown,DC=example,DC=org",
				"CN=Admins,DC=example,DC=org",
			}, nil),
	}

	persons, memberships := Persons(entries, groups, "secret", testLogger())
	require.Len(t, persons, 1)
	require.Len(t, memberships, 1)
	assert.Equal(t, groupGUID, memberships[0].GroupID)
}

func TestPersonsNoMembershipAttribute(t *testing.T) {
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
	}, testLogger())

	entries := []*ldap.Entry{
		personEntry("CN=loner,DC=example,DC=org", personGUIDRaw, nil, nil),
	}

	persons, memberships := Persons(entries, groups, "secret", testLogger())
	assert.Empty(t, persons)
	assert.Empty(t, memberships)
}

func TestPersonsMultipleGroups(t *testing.T) {
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
		groupEntry("CN=Users,DC=example,DC=org", otherGroupGUIDRaw, nil),
	}, testLogger())

	entries := []*ldap.Entry{
		personEntry("CN=jdoe,DC=example,DC=org", personGUIDRaw,
			[]string{
				"CN=Admins,DC=example,DC=org",
				"CN=Users,DC=example,DC=org",
			}, nil),
	}

	persons, memberships := Persons(entries, groups, "secret", testLogger())
	require.Len(t, persons, 1)
	require.Len(t, memberships, 2)
	assert.Equal(t, groupGUID, memberships[0].GroupID)
	assert.Equal(t, otherGroupGUID, memberships[1].GroupID)
}

func TestPersonsDeterministicCredentials(t *testing.T) {
	groups := Groups([]*ldap.Entry{
		groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil),
	}, testLogger())
	entries := []*ldap.Entry{
		personEntry("CN=jdoe,DC=example,DC=org", personGUIDRaw,
			[]string{"CN=Admins,DC=example,DC=org"}, nil),
	}

	first, _ := Persons(entries, groups, "secret", testLogger())
	second, _ := Persons(entries, groups, "secret", testLogger())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Login, second[0].Login)
	assert.Equal(t, first[0].Password, second[0].Password)
}

func TestAttributeMapDecodesObjectSid(t *testing.T) {
	sidRaw := []byte{
		0x01, 0x04,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x15, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
	}

	entry := groupEntry("CN=Admins,DC=example,DC=org", groupGUIDRaw, nil)
	entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{
		Name:       "objectSid",
		Values:     []string{string(sidRaw)},
		ByteValues: [][]byte{sidRaw},
	})

	groups := Groups([]*ldap.Entry{entry}, testLogger())
	group := groups["CN=Admins,DC=example,DC=org"]
	require.NotNil(t, group)
	assert.Equal(t, "S-1-5-21-1-2-3", group.Attrs["objectSid"])
}
