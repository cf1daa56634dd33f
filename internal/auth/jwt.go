package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTSigner struct {
	Priv ed25519.PrivateKey
	Iss  string        // issuer, e.g. "lockr-sync"
	TTL  time.Duration // e.g., 30 * 24 * time.Hour for a device token
}

func NewJWTSigner(priv ed25519.PrivateKey, iss string, ttl time.Duration) *JWTSigner {
	return &JWTSigner{Priv: priv, Iss: iss, TTL: ttl}
}

// JWTVerifier only holds the public half; vaultd never sees the signing key.
type JWTVerifier struct {
	Pub ed25519.PublicKey
	Iss string
}

func NewJWTVerifier(pub ed25519.PublicKey, iss string) *JWTVerifier {
	return &JWTVerifier{Pub: pub, Iss: iss}
}

func GenerateEd25519() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, pub, err
}

// EncodePublicKey and DecodePublicKey use standard base64, the format of the
// jwt_public_key config field.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode public key")
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.Errorf("public key is %d bytes, want %d", len(b), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(b), nil
}

func EncodePrivateKey(priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(priv.Seed())
}

// DecodePrivateKey accepts the base64 32-byte seed written by EncodePrivateKey.
func DecodePrivateKey(s string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	if len(b) != ed25519.SeedSize {
		return nil, errors.Errorf("private key seed is %d bytes, want %d", len(b), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(b), nil
}

func (s *JWTSigner) IssueToken(sub string, scopes []Scope) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.TTL)

	claims := jwt.MapClaims{
		"iss":    s.Iss,
		"sub":    sub,
		"iat":    now.Unix(),
		"exp":    exp.Unix(),
		"jti":    randomJTI(),
		"scopes": scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	ss, err := token.SignedString(s.Priv)
	return ss, exp, err
}

func (v *JWTVerifier) ParseAndValidate(tokenStr string) (*Claims, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodEdDSA {
			return nil, errors.New("unexpected signing method")
		}
		return v.Pub, nil
	}

	tok, err := jwt.ParseWithClaims(
		tokenStr,
		jwt.MapClaims{},
		keyFunc,
		jwt.WithIssuer(v.Iss),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	std := tok.Claims.(jwt.MapClaims)

	getString := func(k string) string {
		if v, ok := std[k].(string); ok {
			return v
		}
		return ""
	}
	getInt64 := func(k string) int64 {
		switch v := std[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		default:
			return 0
		}
	}
	var scopes []Scope
	if arr, ok := std["scopes"].([]any); ok {
		for _, a := range arr {
			if s, ok := a.(string); ok {
				scopes = append(scopes, Scope(s))
			}
		}
	}

	return &Claims{
		Sub:       getString("sub"),
		Scopes:    scopes,
		TokenID:   getString("jti"),
		IssuedAt:  getInt64("iat"),
		ExpiresAt: getInt64("exp"),
	}, nil
}

// base64url keeps the jti compact
func randomJTI() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
