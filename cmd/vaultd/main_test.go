package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockr/internal/auth"
)

func TestKeygenThenToken(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"keygen"}, &out))

	keys := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, ok := strings.Cut(line, ": ")
		require.True(t, ok, line)
		keys[k] = v
	}
	require.Contains(t, keys, "jwt_public_key")
	require.Contains(t, keys, "private_key")

	t.Setenv("LOCKR_SIGNING_KEY", keys["private_key"])
	out.Reset()
	require.NoError(t, run([]string{"token", "--sub", "laptop", "--scope", "read"}, &out))

	pub, err := auth.DecodePublicKey(keys["jwt_public_key"])
	require.NoError(t, err)
	claims, err := auth.NewJWTVerifier(pub, "lockr-sync").ParseAndValidate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "laptop", claims.Sub)
	assert.Equal(t, []auth.Scope{auth.ScopeRead}, claims.Scopes)
}

func TestTokenErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"token"}, &out))

	t.Setenv("LOCKR_SIGNING_KEY", "")
	assert.Error(t, run([]string{"token", "--sub", "laptop"}, &out))

	_, err := parseScopes([]string{"read", "admin"})
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"migrate"}, &out))
	assert.Contains(t, out.String(), "vaultd commands")
}
