package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const defaultTokenTTL = 24 * time.Hour

// Claims is the payload of an access token. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTProvider implements ports.TokenProvider with HS256-signed JWTs. The
// secret, TTL and issuer are fixed at construction.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// JWTOption customises a JWTProvider.
type JWTOption func(*JWTProvider)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) JWTOption {
	return func(p *JWTProvider) { p.now = now }
}

// WithIssuer sets the iss claim and requires it on validation.
func WithIssuer(issuer string) JWTOption {
	return func(p *JWTProvider) { p.issuer = issuer }
}

func NewJWTProvider(secret string, ttl time.Duration, opts ...JWTOption) *JWTProvider {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	p := &JWTProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TTL reports how long issued tokens stay valid.
func (p *JWTProvider) TTL() time.Duration { return p.ttl }

func (p *JWTProvider) GenerateToken(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("generate token: empty identity")
	}

	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			ID:        uuid.NewString(),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.secret)
}

// ValidateToken checks signature, algorithm, expiry and issuer. Every failure
// collapses into domain.ErrInvalidToken.
func (p *JWTProvider) ValidateToken(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return "", domain.ErrInvalidToken
	}

	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return claims.Subject, nil
}
