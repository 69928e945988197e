// Package tokens issues and verifies the HS256 token pair the authorization
// pipeline runs on. Access tokens carry the principal snapshot, refresh tokens
// carry only the subject and a type marker so the two cannot be swapped.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
)

const TypeRefresh = "refresh"

var (
	ErrWrongTokenType = errors.New("unexpected token type")
	ErrMissingJTI     = errors.New("token has no jti")
)

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// AccessClaims is the access-token payload. TokenType is empty on issued
// access tokens; it exists so a refresh token presented at the access
// position is visible and can be rejected.
type AccessClaims struct {
	Email       string   `json:"email,omitempty"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Identity() identity.Identity {
	return identity.Identity{
		ID:          c.Subject,
		Email:       c.Email,
		Username:    c.Username,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
}

// RefreshClaims is the refresh-token payload.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string // empty means reuse AccessSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type Service struct {
	cfg Config
	now func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("tokens: access secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("tokens: token lifetimes must be positive")
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}

	return &Service{cfg: cfg, now: time.Now}, nil
}

func (s *Service) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssueAccessToken signs a fresh access token for id with a new jti.
func (s *Service) IssueAccessToken(id identity.Identity) (string, error) {
	now := s.now()
	claims := &AccessClaims{
		Email:       id.Email,
		Username:    id.Username,
		Roles:       id.Roles,
		Permissions: id.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    s.cfg.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token for subjectID with a new jti.
func (s *Service) IssueRefreshToken(subjectID string) (string, error) {
	now := s.now()
	claims := &RefreshClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    s.cfg.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature and expiry and rejects refresh tokens
// and tokens without a jti.
func (s *Service) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims := new(AccessClaims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.AccessSecret), nil
	}, jwt.WithValidMethods(validMethods))
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	if claims.TokenType == TypeRefresh {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" {
		return nil, ErrMissingJTI
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry against the refresh secret
// and requires the refresh type marker.
func (s *Service) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	claims := new(RefreshClaims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.RefreshSecret), nil
	}, jwt.WithValidMethods(validMethods))
	if err != nil {
		return nil, fmt.Errorf("parsing refresh token: %w", err)
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" {
		return nil, ErrMissingJTI
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking signature or expiry.
// For revocation bookkeeping and diagnostics only, never for authorization.
// Garbage input yields zero claims rather than an error.
func DecodeUnverified(raw string) *AccessClaims {
	claims := new(AccessClaims)
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return new(AccessClaims)
	}
	return claims
}

// RemainingLifetime reports how long a token with the given expiry is still
// valid at now, rounded up to whole seconds. Expired or unset expiries
// report zero.
func RemainingLifetime(exp *jwt.NumericDate, now time.Time) time.Duration {
	if exp == nil {
		return 0
	}
	rem := exp.Time.Sub(now)
	if rem <= 0 {
		return 0
	}
	if truncated := rem.Truncate(time.Second); truncated < rem {
		return truncated + time.Second
	}
	return rem
}
