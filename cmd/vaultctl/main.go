package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"lockr/internal/config"
	"lockr/internal/crypto"
	"lockr/internal/platform"
	"lockr/internal/storage"
	"lockr/internal/vault"
)

const passwordEnv = "LOCKR_PASSWORD"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Getenv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries what one invocation reads from its environment.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	getenv func(string) string
	log    *logrus.Logger
}

type commonFlags struct {
	configPath  string
	local       string
	remoteKind  string
	remoteURI   string
	remoteURL   string
	remoteToken string
	remoteDir   string
	format      string
	logLevel    string
}

func addCommonFlags(fs *pflag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "./lockr.yaml", "path to config file")
	fs.StringVar(&cf.local, "local", "", "path to the local SQLite cache")
	fs.StringVar(&cf.remoteKind, "remote", "", "remote store kind: mongo, http or dir")
	fs.StringVar(&cf.remoteURI, "mongo-uri", "", "MongoDB URI for a mongo remote")
	fs.StringVar(&cf.remoteURL, "sync-url", "", "vaultd base URL for an http remote")
	fs.StringVar(&cf.remoteToken, "sync-token", "", "bearer token for an http remote")
	fs.StringVar(&cf.remoteDir, "remote-dir", "", "directory for a dir remote")
	fs.StringVar(&cf.format, "format", "", "envelope format for new values: cbc or cbc-hmac")
	fs.StringVar(&cf.logLevel, "log-level", "", "log level")
	return cf
}

// load reads the config file and applies every flag the user set.
func (cf *commonFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	c, err := config.Load(cf.configPath)
	if err != nil {
		return nil, err
	}
	override := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	override("local", &c.Local.Path, cf.local)
	override("remote", &c.Remote.Kind, cf.remoteKind)
	override("mongo-uri", &c.Remote.URI, cf.remoteURI)
	override("sync-url", &c.Remote.URL, cf.remoteURL)
	override("sync-token", &c.Remote.Token, cf.remoteToken)
	override("remote-dir", &c.Remote.Dir, cf.remoteDir)
	override("format", &c.Envelope.Format, cf.format)
	override("log-level", &c.LogLevel, cf.logLevel)
	return c, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, getenv func(string) string) error {
	if len(args) < 1 {
		usage(stdout)
		return nil
	}

	c := &cli{stdin: stdin, stdout: stdout, getenv: getenv}
	cmd, rest := args[0], args[1:]
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	cf := addCommonFlags(fs)

	switch cmd {
	case "seal":
		value := fs.String("value", "", "plaintext to seal")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return c.withCipherOnly(ctx, fs, cf, func(v vault.Vault) error {
			env, err := v.SealValue(*value)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, env)
			return nil
		})

	case "open":
		envelope := fs.String("envelope", "", "envelope to open")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return c.withCipherOnly(ctx, fs, cf, func(v vault.Vault) error {
			pt, err := v.OpenEnvelope(*envelope)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, pt)
			return nil
		})

	case "save":
		id := fs.String("id", "", "entry id")
		envelope := fs.String("envelope", "", "envelope to store")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return c.withVault(ctx, fs, cf, func(v vault.Vault) error {
			return v.Save(ctx, *id, *envelope)
		})

	case "load":
		id := fs.String("id", "", "entry id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return c.withVault(ctx, fs, cf, func(v vault.Vault) error {
			pt, err := v.Load(ctx, *id)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, pt)
			return nil
		})

	case "put":
		id := fs.String("id", "", "entry id (default: a new UUID)")
		value := fs.String("value", "", "plaintext to seal and save")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id == "" {
			*id = uuid.NewString()
		}
		return c.withVault(ctx, fs, cf, func(v vault.Vault) error {
			env, err := v.SealValue(*value)
			if err != nil {
				return err
			}
			if err := v.Save(ctx, *id, env); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, *id)
			return nil
		})

	case "help", "-h", "--help":
		usage(stdout)
		return nil

	default:
		usage(stdout)
		return errors.Errorf("unknown command %q", cmd)
	}
}

// withCipherOnly runs fn against a vault whose stores are in memory, for
// commands that never touch storage.
func (c *cli) withCipherOnly(ctx context.Context, fs *pflag.FlagSet, cf *commonFlags, fn func(vault.Vault) error) error {
	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	if err := c.setup(cfg); err != nil {
		return err
	}
	v, err := vault.New(vault.Config{
		Local:  storage.NewMemoryStore(),
		Remote: storage.NewMemoryStore(),
		Format: vault.Format(cfg.Envelope.Format),
		Logger: c.log,
	})
	if err != nil {
		return err
	}
	return c.session(ctx, v, fn)
}

func (c *cli) withVault(ctx context.Context, fs *pflag.FlagSet, cf *commonFlags, fn func(vault.Vault) error) error {
	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	if err := c.setup(cfg); err != nil {
		return err
	}
	if err := cfg.ValidateRemote(); err != nil {
		return err
	}
	remote, closeRemote, err := cfg.OpenRemote(ctx)
	if err != nil {
		return errors.Wrap(err, "open remote store")
	}
	defer closeRemote()

	v, err := vault.New(vault.Config{
		Local:  storage.NewSQLiteStore(cfg.Local.Path, c.log),
		Remote: remote,
		Format: vault.Format(cfg.Envelope.Format),
		Logger: c.log,
	})
	if err != nil {
		return err
	}
	return c.session(ctx, v, fn)
}

func (c *cli) setup(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	c.log = log
	if err := platform.DisableCoreDumps(); err != nil {
		c.log.WithError(err).Warn("core dumps could not be disabled")
	}
	return nil
}

// session reads the master password once, runs fn and always ends the
// session.
func (c *cli) session(ctx context.Context, v vault.Vault, fn func(vault.Vault) error) error {
	pw, err := c.password()
	if err != nil {
		return err
	}
	err = v.Initialize(ctx, pw)
	crypto.Zero(pw)
	if err != nil {
		return err
	}
	defer v.Shutdown()
	return fn(v)
}

func (c *cli) password() ([]byte, error) {
	if pw := c.getenv(passwordEnv); pw != "" {
		return []byte(pw), nil
	}
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Master password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, errors.Wrap(err, "read password")
		}
		return pw, nil
	}
	return readLine(c.stdin)
}

func readLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return nil, errors.Wrap(err, "read password")
	}
	return []byte(strings.TrimRight(string(line), "\r\n")), nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `vaultctl commands:

  seal  --value <plaintext>
  open  --envelope <envelope>
  save  --id <ID> --envelope <envelope>
  load  --id <ID>
  put   [--id <ID>] --value <plaintext>

Common flags:
  --config ./lockr.yaml   --local ./openlockr.db   --format cbc|cbc-hmac
  --remote mongo|http|dir --mongo-uri URI --sync-url URL --sync-token TOKEN --remote-dir DIR
  --log-level warn

The master password is read from $LOCKR_PASSWORD, or prompted for.

Examples:
  vaultctl put --remote dir --remote-dir ~/Sync/lockr --id acct-1 --value hunter2
  vaultctl load --remote http --sync-url https://sync.example.com --sync-token $TOKEN --id acct-1
`)
}
