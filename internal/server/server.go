package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"lockr/internal/audit"
	"lockr/internal/auth"
	"lockr/internal/storage"
)

// Server is the vaultd sync service: the remote copy of every device's
// envelopes, keyed by entry id. It never sees plaintext or keys.
type Server struct {
	cfg Config

	mux        *http.ServeMux
	verifier   *auth.JWTVerifier
	store      storage.EntryStore
	closeStore func() error
	audit      *audit.Log
	logger     *logrus.Logger
	rlIP       *multiLimiter

	mu      sync.Mutex
	written map[string]int64
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	cfg.setDefaults()
	if cfg.JWTPublicKey == "" {
		return nil, errors.New("server: jwt_public_key required")
	}
	pub, err := auth.DecodePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "server: jwt_public_key")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	store, closeStore, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		verifier:   auth.NewJWTVerifier(pub, cfg.JWTIssuer),
		store:      store,
		closeStore: closeStore,
		audit:      audit.New(),
		logger:     logger,
		rlIP:       newMultiLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.Burst, 10*time.Minute),
		written:    map[string]int64{},
	}
	s.routes()

	logger.WithFields(logrus.Fields{
		"backend":             cfg.Backend,
		"requests_per_minute": cfg.RequestsPerMinute,
		"burst":               cfg.Burst,
	}).Info("sync service ready")
	return s, nil
}

func (s *Server) Close() error {
	return s.closeStore()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithField("panic", p).Error("handler panicked")
			http.Error(rec, "internal error", http.StatusInternalServerError)
		}
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("request")
	}()

	s.addDefaultHeaders(rec, r)
	if r.Method == http.MethodOptions {
		rec.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		if !s.rlIP.allow(getClientIP(r, s.cfg.TrustProxy)) {
			tooMany(rec, s.rlIP.retryAfter())
			return
		}
		if s.isPublic(path) {
			s.mux.ServeHTTP(rec, r)
			return
		}
		auth.AuthRequired(s.verifier)(s.mux).ServeHTTP(rec, r)
		return
	}
	s.mux.ServeHTTP(rec, r)
}

func (s *Server) Handler() http.Handler {
	return s
}

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,PUT,OPTIONS")
	w.Header().Set("Cache-Control", "no-store")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
