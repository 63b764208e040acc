// Package verification issues the signed tokens printed in doctor QR codes.
// Scanning a code opens the public verification route with the token, which
// is checked here before the registry is read.
package verification

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"docverify/internal/registry/models"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

// Claims are carried by a verification token. The subject is the license number.
type Claims struct {
	DoctorID string `json:"doctor_id"`
	jwt.RegisteredClaims
}

// Token is an issued verification token and the URL that embeds it.
type Token struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer signs and checks verification tokens with HS256.
type Issuer struct {
	signingKey []byte
	issuer     string
	baseURL    string
	ttl        time.Duration
}

func NewIssuer(signingKey, baseURL string, ttl time.Duration) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		issuer:     "docverify",
		baseURL:    baseURL,
		ttl:        ttl,
	}
}

// Issue signs a token for a verified doctor. The token never outlives the
// credential it vouches for.
func (i *Issuer) Issue(ctx context.Context, d *models.Doctor) (*Token, error) {
	if !d.IsVerified() || d.Verification == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "only verified doctors can be issued a verification code")
	}
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(i.ttl)
	if d.Verification.ExpiryDate.Before(expiresAt) {
		expiresAt = d.Verification.ExpiryDate
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeConflict, "credential has expired")
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DoctorID: d.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   d.LicenseNumber,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}).SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign verification token")
	}

	return &Token{
		Token:     signed,
		URL:       i.verifyURL(signed),
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// Validate checks the signature, issuer and expiry of a token.
func (i *Issuer) Validate(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "verification token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification token")
	}
	return claims, nil
}

func (i *Issuer) verifyURL(token string) string {
	return i.baseURL + "/verify?token=" + url.QueryEscape(token)
}
