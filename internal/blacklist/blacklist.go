// Package blacklist is the token deny-list. Revocations are TTL-bounded cache
// markers synchronized to token expiry, so an entry never outlives the token
// it guards against and nothing needs explicit cleanup.
//
// Lookups fail open: when the cache is unreachable a token is treated as not
// revoked. That trades strictness for availability and is deliberate; the
// failure is logged and counted so it cannot pass unnoticed.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeng7cd/go-api-boilerplate/internal/observability"
	"github.com/zeng7cd/go-api-boilerplate/internal/tokens"
)

// TokenKey is the cache key denying a single token id.
func TokenKey(jti string) string { return "blacklist:" + jti }

// SubjectKey is the cache key denying every outstanding token of a subject.
func SubjectKey(subjectID string) string { return "blacklist:user:" + subjectID }

type Store struct {
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

func NewStore(cache Cache, log *slog.Logger) *Store {
	return &Store{cache: cache, log: log, now: time.Now}
}

// RevokeToken denies raw for the remainder of its lifetime. The token is
// decoded without verification; a token without a jti cannot be individually
// revoked and an already-expired one needs no entry.
func (s *Store) RevokeToken(ctx context.Context, raw string) error {
	claims := tokens.DecodeUnverified(raw)
	if claims.ID == "" {
		return tokens.ErrMissingJTI
	}

	ttl := tokens.RemainingLifetime(claims.ExpiresAt, s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.cache.SetFlag(ctx, TokenKey(claims.ID), ttl); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	s.log.Info("token revoked", "jti", claims.ID, "ttl", ttl.String())
	return nil
}

// IsRevoked reports whether the token id is denied. Empty ids and failed
// lookups report false.
func (s *Store) IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}

	flagged, err := s.cache.HasFlag(ctx, TokenKey(jti))
	if err != nil {
		observability.RevocationCheckFailures.Inc()
		s.log.Error("deny-list lookup failed", "jti", jti, "error", err)
		return false
	}
	return flagged
}

// RevokeAllForSubject denies every token of subjectID for ttl. Callers pick
// ttl to cover the longest-lived outstanding token type, normally the
// refresh-token lifetime, so nothing outlives the marker.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, ttl time.Duration) error {
	if subjectID == "" {
		return errors.New("subject id is required")
	}
	if ttl <= 0 {
		return errors.New("revocation ttl must be positive")
	}

	if err := s.cache.SetFlag(ctx, SubjectKey(subjectID), ttl); err != nil {
		return fmt.Errorf("revoking tokens for subject %s: %w", subjectID, err)
	}
	s.log.Info("subject tokens revoked", "subject_id", subjectID, "ttl", ttl.String())
	return nil
}

// IsSubjectRevoked reports whether the subject-wide marker is set. Failed
// lookups report false.
func (s *Store) IsSubjectRevoked(ctx context.Context, subjectID string) bool {
	if subjectID == "" {
		return false
	}

	flagged, err := s.cache.HasFlag(ctx, SubjectKey(subjectID))
	if err != nil {
		observability.RevocationCheckFailures.Inc()
		s.log.Error("deny-list lookup failed", "subject_id", subjectID, "error", err)
		return false
	}
	return flagged
}
