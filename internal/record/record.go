// Package record holds the normalized entity types one sync cycle
// materializes from the directory, and their backend wire encoding.
package record

// Group is a directory group materialized for a single sync cycle.
// GlobalID is the canonical uppercase GUID string used to join entities
// across systems; records are immutable after extraction and discarded
// at cycle end.
type Group struct {
	DN       string            // directory distinguished name (source key)
	GlobalID string            // canonical uppercase hyphenated GUID
	Attrs    map[string]string // first-value attribute copies, structural attributes excluded
}

// Person is a directory user with derived credentials. A Person exists
// only if it resolved to at least one Membership during extraction.
type Person struct {
	DN       string
	GlobalID string
	Login    string
	Password string
	Attrs    map[string]string
}

// Membership links a person to a group by their global identifiers.
// Duplicates are possible; backends treat submission as idempotent
// upsert.
type Membership struct {
	PersonID string
	GroupID  string
}
