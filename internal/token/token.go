// Package token mints short-lived access tokens after successful
// authentication. Tokens are HS256 JWTs carrying the fused decision context.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	fusionmodels "biogate/internal/fusion/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

const issuerName = "biogate"

// DefaultTTL bounds token validity when the caller does not configure one.
const DefaultTTL = 15 * time.Minute

// Claims carries the authentication context inside each token.
type Claims struct {
	jwt.RegisteredClaims
	Strategy   string   `json:"strategy"`
	Modalities []string `json:"modalities"`
	Confidence float64  `json:"confidence"`
}

type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for an authenticated subject.
func (i *Issuer) Issue(subject domain.SubjectID, strategy fusionmodels.Strategy, modalities []domain.Modality, confidence float64) (string, error) {
	now := i.now()
	names := make([]string, len(modalities))
	for j, m := range modalities {
		names[j] = m.String()
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Strategy:   strategy.String(),
		Modalities: names,
		Confidence: confidence,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	}, jwt.WithIssuer(issuerName), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "access token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid access token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid access token")
	}
	return claims, nil
}
