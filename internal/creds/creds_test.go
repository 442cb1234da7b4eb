package creds

import (
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{name: "zero", input: 0, expected: "0"},
		{name: "last single digit", input: 36, expected: "_"},
		{name: "first two digit value", input: 37, expected: "10"},
		{name: "radix boundary plus one", input: 38, expected: "11"},
		{name: "nine", input: 9, expected: "9"},
		{name: "ten", input: 10, expected: "A"},
		{name: "thirtyfive", input: 35, expected: "Z"},
		{name: "square of radix", input: 37 * 37, expected: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(big.NewInt(tt.input)))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Known edge values, then a spread of random 128-bit integers.
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(36),
		big.NewInt(37),
		new(big.Int).Lsh(big.NewInt(1), 127),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		values = append(values, new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 128)))
	}

	for _, v := range values {
		encoded := Encode(v)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Zero(t, v.Cmp(decoded), "round trip failed for %s (encoded %q)", v, encoded)
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)

	_, err = Decode("L0_abc") // lowercase is outside the alphabet
	assert.Error(t, err)

	_, err = Decode("12-34")
	assert.Error(t, err)
}

func TestDeriveIsDeterministic(t *testing.T) {
	identities := []string{
		"0123456789ABCDEF0123456789ABCDEF",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
		"00000000000000000000000000000000",
		"DEADBEEFDEADBEEFDEADBEEFDEADBEEF",
	}

	for _, id := range identities {
		login1, password1, err := Derive(id, "secret")
		require.NoError(t, err)
		login2, password2, err := Derive(id, "secret")
		require.NoError(t, err)

		assert.Equal(t, login1, login2)
		assert.Equal(t, password1, password2)
	}
}

func TestDeriveShape(t *testing.T) {
	login, password, err := Derive("0123456789ABCDEF0123456789ABCDEF", "key")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(login, "L0_"))
	assert.True(t, strings.HasPrefix(password, "P0_"))

	for _, token := range []string{login[3:], password[3:]} {
		require.NotEmpty(t, token)
		for i := 0; i < len(token); i++ {
			assert.Contains(t, Alphabet, string(token[i]))
		}
	}
}

func TestDeriveZeroIdentity(t *testing.T) {
	login, _, err := Derive("00000000000000000000000000000000", "key")
	require.NoError(t, err)
	assert.Equal(t, "L0_0", login)
}

func TestDeriveSecretChangesPasswordOnly(t *testing.T) {
	const id = "0123456789ABCDEF0123456789ABCDEF"

	login1, password1, err := Derive(id, "alpha")
	require.NoError(t, err)
	login2, password2, err := Derive(id, "beta")
	require.NoError(t, err)

	assert.Equal(t, login1, login2, "login depends only on the identity")
	assert.NotEqual(t, password1, password2, "password depends on the secret")
}

func TestDeriveRejectsNonHexIdentity(t *testing.T) {
	_, _, err := Derive("not-hex", "key")
	assert.Error(t, err)
}
