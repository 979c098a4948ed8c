// Package auth issues and verifies the HS256 tokens that bind a device to
// its profile. A token is first delivered through push as the MFA token and
// is then presented with every authenticated call.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the registered claim set plus the profile the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	ProfileID uint32 `json:"pid"`
}

func GenerateToken(profileID uint32, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(profileID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		ProfileID: profileID,
	})
	return token.SignedString(secretKey)
}

func GetProfileIDFromToken(tokenString string, secretKey []byte) (uint32, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ProfileID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.ProfileID, nil
}

// Issuer signs tokens with a fixed secret and validity.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewIssuer(secret []byte, validity time.Duration) *Issuer {
	return &Issuer{secret: secret, validity: validity, now: time.Now}
}

func (i *Issuer) Issue(profileID uint32) (string, error) {
	return GenerateToken(profileID, i.secret, i.validity, i.now())
}

func (i *Issuer) Verify(token string) (uint32, error) {
	return GetProfileIDFromToken(token, i.secret)
}
