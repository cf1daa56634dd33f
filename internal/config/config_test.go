package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockr/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "remote:\n  kind: dir\n  dir: /srv/lockr\n"))
	require.NoError(t, err)

	assert.Equal(t, "./openlockr.db", c.Local.Path)
	assert.Equal(t, "lockr", c.Remote.Database)
	assert.Equal(t, "entries", c.Remote.Collection)
	assert.Equal(t, 10*time.Second, c.Remote.Timeout)
	assert.Equal(t, "cbc", c.Envelope.Format)
	assert.Equal(t, "warn", c.LogLevel)
	assert.NoError(t, c.Validate())
	assert.NoError(t, c.ValidateRemote())
}

func TestLoadFull(t *testing.T) {
	c, err := Load(writeConfig(t, `
local:
  path: /var/lib/lockr/cache.db
remote:
  kind: http
  url: https://sync.example.com
  token: abc
  timeout: 3s
envelope:
  format: cbc-hmac
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/lockr/cache.db", c.Local.Path)
	assert.Equal(t, RemoteHTTP, c.Remote.Kind)
	assert.Equal(t, "https://sync.example.com", c.Remote.URL)
	assert.Equal(t, "abc", c.Remote.Token)
	assert.Equal(t, 3*time.Second, c.Remote.Timeout)
	assert.Equal(t, "cbc-hmac", c.Envelope.Format)
	require.NoError(t, c.Validate())
	require.NoError(t, c.ValidateRemote())

	l, err := c.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "remote: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate(), "defaults are valid without a remote")

	c.Envelope.Format = "gcm"
	assert.Error(t, c.Validate())

	c = Default()
	c.LogLevel = "chatty"
	assert.Error(t, c.Validate())
}

func TestValidateRemote(t *testing.T) {
	cases := map[string]func(c *Config){
		"no remote kind":    func(c *Config) {},
		"unknown kind":      func(c *Config) { c.Remote.Kind = "firestore" },
		"mongo without uri": func(c *Config) { c.Remote.Kind = RemoteMongo },
		"http without url":  func(c *Config) { c.Remote.Kind = RemoteHTTP },
		"dir without dir":   func(c *Config) { c.Remote.Kind = RemoteDir },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.ValidateRemote())
		})
	}
}

func TestOpenRemoteDir(t *testing.T) {
	c := Default()
	c.Remote.Kind = RemoteDir
	c.Remote.Dir = filepath.Join(t.TempDir(), "remote")
	require.NoError(t, c.ValidateRemote())

	remote, closeRemote, err := c.OpenRemote(context.Background())
	require.NoError(t, err)
	defer closeRemote()

	ctx := context.Background()
	require.NoError(t, remote.Put(ctx, "acct-1", "ZW52"))
	got, err := remote.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "ZW52", got)

	_, err = remote.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpenRemoteHTTP(t *testing.T) {
	c := Default()
	c.Remote.Kind = RemoteHTTP
	c.Remote.URL = "http://127.0.0.1:8080"

	remote, closeRemote, err := c.OpenRemote(context.Background())
	require.NoError(t, err)
	closeRemote()
	assert.IsType(t, &storage.HTTPStore{}, remote)
}
