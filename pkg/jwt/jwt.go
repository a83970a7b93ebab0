// Package jwt mints and checks the ES256 provider tokens APNs expects.
package jwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// MaxProviderTokenAge is how long APNs accepts a provider token after iat.
const MaxProviderTokenAge = time.Hour

var ErrTokenTooOld = errors.New("provider token too old")

type ProviderClaims struct {
	KeyID string `json:"-"`
	gojwt.RegisteredClaims
}

// ParseSigningKey reads a PEM encoded P-256 key, as downloaded from the
// Apple developer portal (.p8).
func ParseSigningKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	key, err := gojwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

func GenerateProviderToken(teamID, keyID string, issuedAt time.Time, key *ecdsa.PrivateKey) (string, error) {
	claims := ProviderClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:   teamID,
			IssuedAt: gojwt.NewNumericDate(issuedAt),
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodES256, claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign provider token: %w", err)
	}
	return signed, nil
}

// ValidateProviderToken verifies the signature and rejects tokens issued in
// the future or more than MaxProviderTokenAge ago.
func ValidateProviderToken(tokenString string, pub *ecdsa.PublicKey) (*ProviderClaims, error) {
	token, err := gojwt.ParseWithClaims(tokenString, &ProviderClaims{}, func(token *gojwt.Token) (interface{}, error) {
		return pub, nil
	}, gojwt.WithValidMethods([]string{gojwt.SigningMethodES256.Alg()}), gojwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("invalid provider token: %w", err)
	}

	claims, ok := token.Claims.(*ProviderClaims)
	if !ok || claims.IssuedAt == nil {
		return nil, errors.New("invalid provider token claims")
	}
	if time.Since(claims.IssuedAt.Time) > MaxProviderTokenAge {
		return nil, ErrTokenTooOld
	}

	claims.KeyID, _ = token.Header["kid"].(string)
	return claims, nil
}
