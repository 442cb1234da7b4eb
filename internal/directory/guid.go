package directory

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// Constants for raw attribute lengths.
const (
	guidBytesLength  = 16 // objectGUID is always 16 bytes
	sidMinimumLength = 8  // revision + subauthority count + 6-byte authority
)

// DecodeGUID converts a raw objectGUID value to its canonical uppercase
// hyphenated form. Active Directory stores GUIDs in a mixed-endian
// format: the first three fields are little-endian, the last eight bytes
// keep their order.
func DecodeGUID(raw []byte) (string, error) {
	if len(raw) != guidBytesLength {
		return "", fmt.Errorf("objectGUID must be %d bytes, got %d", guidBytesLength, len(raw))
	}

	ordered := make([]byte, guidBytesLength)

	// Data1 (bytes 0-3): reverse byte order
	ordered[0], ordered[1], ordered[2], ordered[3] = raw[3], raw[2], raw[1], raw[0]
	// Data2 (bytes 4-5): reverse byte order
	ordered[4], ordered[5] = raw[5], raw[4]
	// Data3 (bytes 6-7): reverse byte order
	ordered[6], ordered[7] = raw[7], raw[6]
	// Data4 (bytes 8-15): keep original order
	copy(ordered[8:], raw[8:])

	id, err := uuid.FromBytes(ordered)
	if err != nil {
		return "", fmt.Errorf("decode objectGUID: %w", err)
	}
	return strings.ToUpper(id.String()), nil
}

// GUIDHex strips the hyphens from a canonical GUID string, yielding the
// uppercase 32-character hex form that credential derivation consumes.
func GUIDHex(canonical string) string {
	return strings.ReplaceAll(canonical, "-", "")
}

// DecodeSID converts a raw objectSid value to its S-1-5-... string form.
func DecodeSID(raw []byte) (string, error) {
	if len(raw) < sidMinimumLength {
		return "", fmt.Errorf("objectSid too short: %d bytes", len(raw))
	}
	return objectsid.Decode(raw).String(), nil
}
