package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"lockr/internal/auth"
	"lockr/internal/server"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		usage(stdout)
		return nil
	}
	cmd, rest := args[0], args[1:]
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)

	switch cmd {
	case "serve":
		configPath := fs.String("config", "./vaultd.yaml", "path to config file")
		listen := fs.String("listen", "", "listen address (overrides config)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		cfg, err := server.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if fs.Changed("listen") {
			cfg.Listen = *listen
		}
		return serve(cfg)

	case "keygen":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		priv, pub, err := auth.GenerateEd25519()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "jwt_public_key: %s\nprivate_key: %s\n", auth.EncodePublicKey(pub), auth.EncodePrivateKey(priv))
		return nil

	case "token":
		keyEnv := fs.String("key-env", "LOCKR_SIGNING_KEY", "environment variable holding the base64 private key")
		issuer := fs.String("issuer", "lockr-sync", "token issuer, must match jwt_issuer")
		sub := fs.String("sub", "", "device or user the token is for")
		scope := fs.StringSlice("scope", []string{"read", "write"}, "granted scopes")
		ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *sub == "" {
			return errors.New("--sub is required")
		}
		priv, err := auth.DecodePrivateKey(os.Getenv(*keyEnv))
		if err != nil {
			return errors.Wrapf(err, "$%s", *keyEnv)
		}
		scopes, err := parseScopes(*scope)
		if err != nil {
			return err
		}
		tok, exp, err := auth.NewJWTSigner(priv, *issuer, *ttl).IssueToken(*sub, scopes)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, tok)
		fmt.Fprintln(os.Stderr, "expires", exp.UTC().Format(time.RFC3339))
		return nil

	case "help", "-h", "--help":
		usage(stdout)
		return nil

	default:
		usage(stdout)
		return errors.Errorf("unknown command %q", cmd)
	}
}

func parseScopes(in []string) ([]auth.Scope, error) {
	out := make([]auth.Scope, 0, len(in))
	for _, s := range in {
		switch sc := auth.Scope(strings.TrimSpace(s)); sc {
		case auth.ScopeRead, auth.ScopeWrite:
			out = append(out, sc)
		default:
			return nil, errors.Errorf("unknown scope %q (supported: read, write)", s)
		}
	}
	return out, nil
}

func serve(cfg server.Config) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("listen", cfg.Listen).Info("vaultd listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `vaultd commands:

  serve  [--config ./vaultd.yaml] [--listen :8080]
  keygen
  token  --sub <device> [--scope read,write] [--ttl 720h] [--issuer lockr-sync] [--key-env LOCKR_SIGNING_KEY]

Examples:
  vaultd keygen
  LOCKR_SIGNING_KEY=... vaultd token --sub laptop --scope read,write
  vaultd serve --config /etc/lockr/vaultd.yaml
`)
}
