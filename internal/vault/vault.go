package vault

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	cr "lockr/internal/crypto"
	"lockr/internal/storage"
)

// Format selects how SealValue builds new envelopes. Both formats are always
// accepted by OpenEnvelope.
type Format string

const (
	// FormatSessionIV encrypts every value under the session key and the
	// fixed all-zero session IV. Equal plaintexts give equal envelopes and
	// nothing detects tampering beyond the padding check.
	FormatSessionIV Format = "cbc"
	// FormatAuthenticated uses a random IV per value and an HMAC-SHA256 tag.
	FormatAuthenticated Format = "cbc-hmac"
)

type Vault interface {
	Initialize(ctx context.Context, password []byte) error
	Shutdown()
	Ready() bool
	SealValue(plaintext string) (string, error)
	OpenEnvelope(envelope string) (string, error)
	Save(ctx context.Context, id, envelope string) error
	Load(ctx context.Context, id string) (string, error)
}

type Config struct {
	// Local is opened by Initialize and closed by Shutdown.
	Local storage.LocalStore
	// Remote is the authoritative copy; it has no lifecycle of its own.
	Remote storage.EntryStore
	// Format defaults to FormatSessionIV.
	Format Format
	// Logger defaults to logrus.New().
	Logger *logrus.Logger
}

// vault serializes all operations on mu, so one Vault may be shared between
// goroutines even when its stores are not safe for concurrent use.
type vault struct {
	mu     sync.Mutex
	local  storage.LocalStore
	remote storage.EntryStore
	format Format
	log    *logrus.Logger

	sess session
}

func New(cfg Config) (Vault, error) {
	if cfg.Local == nil {
		return nil, errors.New("vault: local store is required")
	}
	if cfg.Remote == nil {
		return nil, errors.New("vault: remote store is required")
	}
	switch cfg.Format {
	case "":
		cfg.Format = FormatSessionIV
	case FormatSessionIV, FormatAuthenticated:
	default:
		return nil, errors.Errorf("vault: unknown envelope format %q", cfg.Format)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &vault{
		local:  cfg.Local,
		remote: cfg.Remote,
		format: cfg.Format,
		log:    cfg.Logger,
	}, nil
}

// Initialize derives the session key from password and opens the local
// store. On failure no key material is retained. Initializing a ready vault
// ends the current session first.
func (v *vault) Initialize(ctx context.Context, password []byte) error {
	const op = "initialize"
	if len(password) == 0 {
		return newError(op, ErrInvalidArgument, errors.New("empty master password"))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sess.ready {
		v.shutdownLocked()
	}

	if err := v.sess.derive(password); err != nil {
		v.sess.wipe()
		return newError(op, ErrKeyDerivation, err)
	}
	if err := v.local.Open(ctx); err != nil {
		v.sess.wipe()
		return newError(op, ErrStorage, err)
	}
	v.sess.ready = true

	v.log.WithFields(logrus.Fields{
		"format":      v.format,
		"memory_lock": v.sess.pinned,
	}).Debug("vault session initialized")
	return nil
}

// Shutdown closes the local store and zeroes the key material. It is safe to
// call at any time, any number of times.
func (v *vault) Shutdown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shutdownLocked()
}

func (v *vault) shutdownLocked() {
	if !v.sess.ready {
		return
	}
	if err := v.local.Close(); err != nil {
		v.log.WithError(err).Warn("closing local store")
	}
	v.sess.wipe()
	v.log.Debug("vault session shut down")
}

func (v *vault) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sess.ready
}

func (v *vault) SealValue(plaintext string) (string, error) {
	const op = "seal"
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.sess.ready {
		return "", newError(op, ErrNotInitialized, nil)
	}

	pt := []byte(plaintext)
	defer cr.Zero(pt)

	var (
		raw []byte
		err error
	)
	switch v.format {
	case FormatAuthenticated:
		raw, err = cr.SealAuthenticated(v.sess.key[:], pt)
	default:
		raw, err = cr.SealCBC(v.sess.key[:], v.sess.iv[:], pt)
	}
	if err != nil {
		return "", newError(op, ErrCipher, err)
	}
	return cr.Encode(raw), nil
}

func (v *vault) OpenEnvelope(envelope string) (string, error) {
	const op = "open"
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.sess.ready {
		return "", newError(op, ErrNotInitialized, nil)
	}
	return v.openLocked(op, envelope)
}

// openLocked decodes and decrypts envelope. Bytes that survive the padding
// check are returned as-is; a wrong key can yield garbage instead of an error.
func (v *vault) openLocked(op, envelope string) (string, error) {
	raw, err := cr.Decode(envelope)
	if err != nil {
		return "", newError(op, ErrDecode, err)
	}

	var pt []byte
	if cr.IsAuthenticated(raw) {
		pt, err = cr.OpenAuthenticated(v.sess.key[:], raw)
	} else {
		pt, err = cr.OpenCBC(v.sess.key[:], v.sess.iv[:], raw)
	}
	if err != nil {
		return "", newError(op, ErrCipher, err)
	}
	out := string(pt)
	cr.Zero(pt)
	return out, nil
}

// Save upserts the envelope locally and then remotely. A remote failure
// leaves the local copy in place and returns ErrSync; calling Save again is
// the way to finish the sync.
func (v *vault) Save(ctx context.Context, id, envelope string) error {
	const op = "save"
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.sess.ready {
		return newError(op, ErrNotInitialized, nil)
	}
	if id == "" {
		return newError(op, ErrInvalidArgument, errors.New("empty entry id"))
	}

	if err := v.local.Put(ctx, id, envelope); err != nil {
		return newError(op, ErrStorage, err)
	}
	if err := v.remote.Put(ctx, id, envelope); err != nil {
		v.log.WithFields(logrus.Fields{"id": id}).WithError(err).Warn("entry saved locally but not synced")
		return newError(op, ErrSync, err)
	}
	v.log.WithFields(logrus.Fields{"id": id}).Debug("entry saved")
	return nil
}

// Load returns the plaintext for id, reading the local store first and the
// remote store only on a local miss. A remote hit is written back locally.
func (v *vault) Load(ctx context.Context, id string) (string, error) {
	const op = "load"
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.sess.ready {
		return "", newError(op, ErrNotInitialized, nil)
	}
	if id == "" {
		return "", newError(op, ErrInvalidArgument, errors.New("empty entry id"))
	}

	envelope, err := v.local.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		envelope, err = v.remote.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return "", newError(op, ErrNotFound, errors.Errorf("no entry %q", id))
		}
		if err != nil {
			return "", newError(op, ErrSync, err)
		}
		// cache fill; failure is logged, never returned
		if err := v.local.Put(ctx, id, envelope); err != nil {
			v.log.WithFields(logrus.Fields{"id": id}).WithError(err).Warn("cache fill failed")
		}
	default:
		return "", newError(op, ErrStorage, err)
	}
	return v.openLocked(op, envelope)
}
