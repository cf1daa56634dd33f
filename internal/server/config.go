package server

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

type Config struct {
	Listen string `yaml:"listen"`

	Backend         string `yaml:"backend"`
	SQLitePath      string `yaml:"sqlite_path"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDB         string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`

	JWTIssuer    string `yaml:"jwt_issuer"`
	JWTPublicKey string `yaml:"jwt_public_key"` // base64 Ed25519

	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
	// TrustProxy takes the client address from X-Forwarded-For. Only set it
	// behind a proxy that overwrites the header.
	TrustProxy bool `yaml:"trust_proxy"`

	// Logger defaults to logrus.New().
	Logger *logrus.Logger `yaml:"-"`
}

func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "./vaultd.db"
	}
	if c.MongoDB == "" {
		c.MongoDB = "lockr"
	}
	if c.MongoCollection == "" {
		c.MongoCollection = "entries"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "lockr-sync"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 120
	}
	if c.Burst <= 0 {
		c.Burst = 30
	}
}
