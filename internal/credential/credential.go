// Package credential hashes passwords and issues the bearer tokens that identify a user.
package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword = errors.New("password is required")
	ErrUnauthorized  = errors.New("invalid or missing token")
)

// Service is safe for concurrent use.
type Service struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// New creates a Service signing HS256 tokens with secret. A zero ttl issues
// tokens without an expiry; a zero cost uses bcrypt.DefaultCost.
func New(secret string, ttl time.Duration, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		cost:   cost,
		now:    time.Now,
	}
}

// Hash returns a salted bcrypt digest of password.
func (s *Service) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest.
func (s *Service) Verify(digest, password string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// IssueToken signs a token whose subject is the user id.
func (s *Service) IssueToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ResolveToken verifies the signature and expiry and returns the user id.
// Every failure is reported as ErrUnauthorized.
func (s *Service) ResolveToken(token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrUnauthorized)
	}
	return userID, nil
}
