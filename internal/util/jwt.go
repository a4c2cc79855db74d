package util

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseRSAPublicKey parses a PEM-encoded RSA public key
func ParseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaPub, nil
}

// ValidateJWT verifies tokenString against keyMaterial. A PEM block selects
// RSA verification; anything else is treated as an HMAC secret.
func ValidateJWT(tokenString string, keyMaterial string) (*Claims, error) {
	var keyFunc jwt.Keyfunc
	var methods []string

	if strings.Contains(keyMaterial, "-----BEGIN") {
		publicKey, err := ParseRSAPublicKey(keyMaterial)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		methods = []string{"RS256", "RS384", "RS512"}
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			return publicKey, nil
		}
	} else {
		secret := []byte(keyMaterial)
		methods = []string{"HS256", "HS384", "HS512"}
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, jwt.WithValidMethods(methods))
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
