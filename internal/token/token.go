// Package token issues and verifies the signed, expiring capability tokens
// behind share links. Tokens are stateless: validity is determined entirely
// by the HMAC signature and the embedded expiry instant.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/metrics"
)

const issuer = "videoverse"

// Service signs and verifies share tokens. It is explicitly constructed
// with its key; there is no process-wide signer state.
type Service struct {
	key []byte
	now func() time.Time
}

// New creates a token Service using the given signing key.
func New(key []byte) *Service {
	return &Service{key: key, now: time.Now}
}

// NewWithClock creates a Service with an injected clock, for tests.
func NewWithClock(key []byte, now func() time.Time) *Service {
	return &Service{key: key, now: now}
}

// Issue creates a signed token granting access to the given video until
// ttl has elapsed. A non-positive ttl is rejected before issuance.
func (s *Service) Issue(videoID string, ttl time.Duration) (string, error) {
	if videoID == "" {
		return "", apperr.E(apperr.KindInvalidInput, "video id is required")
	}
	if ttl <= 0 {
		return "", apperr.E(apperr.KindInvalidInput, "expiry duration must be positive, got %s", ttl)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   videoID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "failed to sign share token")
	}

	metrics.TokensIssuedTotal.Inc()
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the video id
// it grants access to. The signature check runs before the expiry check: a
// tampered token is reported as tampered regardless of its timestamps.
// Verification is stateless and idempotent; a token remains valid until
// its expiry instant, strictly before which it is accepted and strictly
// after which it is rejected.
func (s *Service) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(0),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			metrics.TokenVerificationsTotal.WithLabelValues("tampered").Inc()
			return "", apperr.Wrap(apperr.KindTokenTampered, err, "share token signature is invalid")
		case errors.Is(err, jwt.ErrTokenExpired):
			metrics.TokenVerificationsTotal.WithLabelValues("expired").Inc()
			return "", apperr.Wrap(apperr.KindTokenExpired, err, "share token has expired")
		default:
			// Malformed payloads, wrong algorithms and bad claims all
			// mean the token is not one we issued.
			metrics.TokenVerificationsTotal.WithLabelValues("tampered").Inc()
			return "", apperr.Wrap(apperr.KindTokenTampered, err, "share token is not valid")
		}
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		metrics.TokenVerificationsTotal.WithLabelValues("tampered").Inc()
		return "", apperr.E(apperr.KindTokenTampered, "share token carries no video id")
	}

	metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
	return claims.Subject, nil
}
