package access

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidQRToken = errors.New("invalid qr token")

type qrClaims struct {
	TenantID int64 `json:"tid"`
	jwt.RegisteredClaims
}

// QRTokenCodec issues and resolves the opaque tokens shown as member QR codes.
type QRTokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewQRTokenCodec(secret, issuer string, ttl time.Duration) *QRTokenCodec {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QRTokenCodec{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (c *QRTokenCodec) Issue(tenantID, identityID int64, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.ttl)
	claims := qrClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identityID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign qr token: %w", err)
	}
	return signed, exp, nil
}

// Resolve returns the identity a token was issued for, judged against now. Tokens from
// another tenant, tokens expired at now, and anything not signed with our key are
// ErrInvalidQRToken.
func (c *QRTokenCodec) Resolve(token string, tenantID int64, now time.Time) (int64, error) {
	var claims qrClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQRToken, err)
	}
	if !claims.VerifyExpiresAt(now, true) {
		return 0, fmt.Errorf("%w: token expired", ErrInvalidQRToken)
	}
	if claims.TenantID != tenantID || (c.issuer != "" && claims.Issuer != c.issuer) {
		return 0, ErrInvalidQRToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidQRToken
	}
	return id, nil
}
