package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"lockr/internal/storage"
	"lockr/internal/vault"
)

// Remote backend kinds.
const (
	RemoteMongo = "mongo"
	RemoteHTTP  = "http"
	RemoteDir   = "dir"
)

// Config is the vaultctl configuration file.
type Config struct {
	Local    LocalConfig    `yaml:"local"`
	Remote   RemoteConfig   `yaml:"remote"`
	Envelope EnvelopeConfig `yaml:"envelope"`
	LogLevel string         `yaml:"log_level"`
}

type LocalConfig struct {
	// Path of the SQLite cache file. Defaults to ./openlockr.db.
	Path string `yaml:"path"`
}

// RemoteConfig selects the authoritative store. Only the fields of the
// chosen kind are read.
type RemoteConfig struct {
	Kind string `yaml:"kind"`

	// mongo
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`

	// http
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// dir
	Dir string `yaml:"dir"`

	Timeout time.Duration `yaml:"timeout"`
}

type EnvelopeConfig struct {
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied and no remote.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads path. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c.setDefaults()
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Local.Path == "" {
		c.Local.Path = "./openlockr.db"
	}
	if c.Remote.Database == "" {
		c.Remote.Database = "lockr"
	}
	if c.Remote.Collection == "" {
		c.Remote.Collection = "entries"
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Envelope.Format == "" {
		c.Envelope.Format = string(vault.FormatSessionIV)
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks the settings every command uses.
func (c *Config) Validate() error {
	switch vault.Format(c.Envelope.Format) {
	case vault.FormatSessionIV, vault.FormatAuthenticated:
	default:
		return errors.Errorf("envelope.format: unknown format %q (supported: cbc, cbc-hmac)", c.Envelope.Format)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// ValidateRemote checks the remote section; only commands that sync need it.
func (c *Config) ValidateRemote() error {
	r := c.Remote
	switch strings.ToLower(r.Kind) {
	case RemoteMongo:
		if r.URI == "" {
			return errors.New("remote.uri is required for mongo remotes")
		}
	case RemoteHTTP:
		if r.URL == "" {
			return errors.New("remote.url is required for http remotes")
		}
	case RemoteDir:
		if r.Dir == "" {
			return errors.New("remote.dir is required for dir remotes")
		}
	case "":
		return errors.New("remote.kind is required")
	default:
		return errors.Errorf("remote.kind: unknown kind %q (supported: mongo, http, dir)", r.Kind)
	}
	return nil
}

// Logger builds the logger described by LogLevel, writing to stderr.
func (c *Config) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	return l, nil
}

// OpenRemote connects the configured remote store. The returned close
// function releases it and is never nil.
func (c *Config) OpenRemote(ctx context.Context) (storage.EntryStore, func(), error) {
	r := c.Remote
	switch strings.ToLower(r.Kind) {
	case RemoteMongo:
		m, err := storage.NewMongoStore(ctx, r.URI, r.Database, r.Collection, r.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close(context.Background()) }, nil
	case RemoteHTTP:
		h, err := storage.NewHTTPStore(r.URL, r.Token, r.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return h, func() {}, nil
	case RemoteDir:
		d, err := storage.NewDirStore(r.Dir)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	default:
		return nil, nil, errors.Errorf("remote.kind: unknown kind %q", r.Kind)
	}
}
