package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTokenTTL = 30 * time.Minute

// HashPassword returns a salted bcrypt digest of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.Invalid("password is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword never fails; a malformed digest simply does not match.
func VerifyPassword(password, digest string) bool {
	if password == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Credentials issues and verifies HMAC-signed access tokens.
type Credentials struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func NewCredentials(secret, algorithm string, ttl time.Duration) (*Credentials, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(defaultString(algorithm, "HS256")) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Credentials{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// IssueToken signs claims. A non-positive ttl uses the configured default.
func (c *Credentials) IssueToken(claims domain.Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", domain.Invalid("token subject is required")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now()
	token := jwt.NewWithClaims(c.method, tokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *Credentials) VerifyToken(token string) (domain.Claims, error) {
	parsed := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Claims{}, domain.Unauthenticated(err)
	}
	if parsed.Subject == "" {
		return domain.Claims{}, domain.Unauthenticated(errors.New("token has no subject"))
	}

	claims := domain.Claims{
		Subject: parsed.Subject,
		Email:   parsed.Email,
		Role:    domain.UserRole(parsed.Role),
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}

// TTL is the default token lifetime.
func (c *Credentials) TTL() time.Duration { return c.ttl }

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
