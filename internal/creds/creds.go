// Package creds derives the synthetic login/password pair for a
// directory identity. Derivation is pure and deterministic: the same
// (identity, secret) pair yields the same credentials forever, so the
// alphabet and hash below must never change — doing so would invalidate
// every previously issued login.
package creds

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the fixed radix-37 digit set used by Encode and Decode.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

const (
	loginPrefix    = "L0_"
	passwordPrefix = "P0_"
)

// Derive maps a directory identity to its credentials. identityHex is
// the canonical GUID as uppercase hex without hyphens; casing matters
// because it feeds the password hash. The password is a low-entropy
// derived token, not a secure credential.
func Derive(identityHex, secret string) (login, password string, err error) {
	id, ok := new(big.Int).SetString(identityHex, 16)
	if !ok {
		return "", "", fmt.Errorf("identity %q is not valid hex", identityHex)
	}

	sum := md5.Sum([]byte(identityHex + secret))
	hashed, _ := new(big.Int).SetString(hex.EncodeToString(sum[:]), 16)

	return loginPrefix + Encode(id), passwordPrefix + Encode(hashed), nil
}

// Encode renders a non-negative integer in radix 37, most significant
// digit first. Zero encodes to "0".
func Encode(n *big.Int) string {
	if n.Sign() == 0 {
		return "0"
	}

	base := big.NewInt(int64(len(Alphabet)))
	rem := new(big.Int)
	v := new(big.Int).Set(n)

	digits := make([]byte, 0, 25) // a 128-bit value needs at most 25 radix-37 digits
	for v.Sign() > 0 {
		v.DivMod(v, base, rem)
		digits = append(digits, Alphabet[rem.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// Decode is the inverse of Encode.
func Decode(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty token")
	}

	base := big.NewInt(int64(len(Alphabet)))
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(Alphabet, s[i])
		if d < 0 {
			return nil, fmt.Errorf("invalid digit %q at position %d", s[i], i)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}
	return n, nil
}
