package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// EphemeralSecret mints a random signing key for development runs without a
// configured SECRET_KEY. Tokens signed with it do not survive restarts.
func EphemeralSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// AllowedAlgorithm is the only accepted JWT signing method. The algorithm
// name is configuration; it is never negotiated with clients.
const AllowedAlgorithm = "HS256"

// TokenService mints and verifies access tokens and refresh tokens.
// Access tokens are HS256 JWTs with sub = user id; refresh tokens are random
// UUIDv4 values tracked server-side in the sessions table.
type TokenService struct {
	secret        []byte
	adminPassword string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService.
func NewTokenService(secret []byte, adminPassword string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:        secret,
		adminPassword: adminPassword,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// MintAccessToken signs a JWT for userID expiring at now + access TTL.
func (s *TokenService) MintAccessToken(userID string, now time.Time) (string, time.Time, error) {
	const op = "security.MintAccessToken"

	expiresAt := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return token, expiresAt, nil
}

// ParseAccessToken validates the token signature, algorithm and expiry and
// returns the subject. The parser rejects any algorithm other than HS256 to
// prevent algorithm-confusion attacks.
func (s *TokenService) ParseAccessToken(tokenString string, now func() time.Time) (string, error) {
	const op = "security.ParseAccessToken"

	if now == nil {
		now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AllowedAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%s: invalid token: %w", op, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%s: empty subject", op)
	}
	return claims.Subject, nil
}

// MintRefreshToken returns a fresh random refresh token and its expiry.
func (s *TokenService) MintRefreshToken(now time.Time) (string, time.Time) {
	return uuid.NewString(), now.Add(s.refreshTTL)
}

// VerifyAdminToken validates the admin gate: a JWT whose subject equals the
// configured admin password. Validated fresh on every call, never cached.
func (s *TokenService) VerifyAdminToken(tokenString string, now func() time.Time) error {
	const op = "security.VerifyAdminToken"

	if s.adminPassword == "" {
		return fmt.Errorf("%s: admin access not configured", op)
	}

	sub, err := s.ParseAccessToken(tokenString, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub != s.adminPassword {
		return fmt.Errorf("%s: subject mismatch", op)
	}
	return nil
}
