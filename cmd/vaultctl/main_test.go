package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockr/internal/vault"
)

type harness struct {
	dir      string
	password string
}

func newHarness(t *testing.T) *harness {
	return &harness{dir: t.TempDir(), password: "correct horse"}
}

func (h *harness) env(key string) string {
	if key == passwordEnv {
		return h.password
	}
	return ""
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--config", filepath.Join(h.dir, "lockr.yaml"),
		"--local", filepath.Join(h.dir, "openlockr.db"),
		"--remote", "dir",
		"--remote-dir", filepath.Join(h.dir, "remote"),
	}
	full := append([]string{args[0]}, append(base, args[1:]...)...)
	var out bytes.Buffer
	err := run(context.Background(), full, strings.NewReader(""), &out, h.env)
	return strings.TrimSpace(out.String()), err
}

func TestSealOpen(t *testing.T) {
	h := newHarness(t)

	env, err := h.run(t, "seal", "--value", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, env)

	got, err := h.run(t, "open", "--envelope", env)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	h.password = "wrong"
	got, err = h.run(t, "open", "--envelope", env)
	if err == nil {
		assert.NotEqual(t, "hunter2", got)
	}
}

func TestSealNeedsNoRemote(t *testing.T) {
	var out bytes.Buffer
	h := newHarness(t)
	args := []string{"seal", "--config", filepath.Join(h.dir, "absent.yaml"), "--value", "x"}
	require.NoError(t, run(context.Background(), args, strings.NewReader(""), &out, h.env))
	assert.NotEmpty(t, out.String())
}

func TestPutLoad(t *testing.T) {
	h := newHarness(t)

	id, err := h.run(t, "put", "--id", "acct-1", "--value", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)

	got, err := h.run(t, "load", "--id", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	_, err = h.run(t, "load", "--id", "acct-2")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestPutGeneratesID(t *testing.T) {
	h := newHarness(t)

	id, err := h.run(t, "put", "--value", "hunter2")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := h.run(t, "load", "--id", id)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestSaveThenLoadFromFreshCache(t *testing.T) {
	h := newHarness(t)

	env, err := h.run(t, "seal", "--value", "hunter2", "--format", "cbc-hmac")
	require.NoError(t, err)
	_, err = h.run(t, "save", "--id", "acct-1", "--envelope", env)
	require.NoError(t, err)

	cache, err := filepath.Glob(filepath.Join(h.dir, "openlockr.db*"))
	require.NoError(t, err)
	require.NotEmpty(t, cache)
	for _, f := range cache {
		require.NoError(t, os.Remove(f))
	}
	got, err := h.run(t, "load", "--id", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestConfigFileIsRead(t *testing.T) {
	h := newHarness(t)
	cfgPath := filepath.Join(h.dir, "lockr.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("remote:\n  kind: dir\n  dir: "+filepath.Join(h.dir, "shared")+"\nlocal:\n  path: "+filepath.Join(h.dir, "cache.db")+"\n"), 0o600))

	var out bytes.Buffer
	args := []string{"put", "--config", cfgPath, "--id", "acct-1", "--value", "hunter2"}
	require.NoError(t, run(context.Background(), args, strings.NewReader(""), &out, h.env))

	_, err := os.Stat(filepath.Join(h.dir, "cache.db"))
	assert.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(h.dir, "shared"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	h.password = ""
	var out bytes.Buffer
	args := []string{"seal", "--config", filepath.Join(h.dir, "lockr.yaml"), "--value", "hunter2"}
	require.NoError(t, run(context.Background(), args, strings.NewReader("correct horse\n"), &out, h.env))

	h.password = "correct horse"
	got, err := h.run(t, "open", "--envelope", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "frobnicate")
	assert.Error(t, err)

	_, err = h.run(t, "save", "--envelope", "ZW52")
	assert.ErrorIs(t, err, vault.ErrInvalidArgument)

	_, err = h.run(t, "seal", "--value", "x", "--format", "rot13")
	assert.Error(t, err)

	h.password = ""
	_, err = h.run(t, "seal", "--value", "x")
	assert.Error(t, err)
}
