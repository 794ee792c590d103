package auth

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the pre-validated caller identity plus its claims. The
// services never re-check authorization; they consume this as-is.
type Identity struct {
	UserID string
	Name   string
	Admin  bool
}

// JWTVerifier verifies RS256 bearer tokens and extracts the caller identity.
type JWTVerifier struct {
	pub *rsa.PublicKey
}

func NewJWTVerifier(pubPath string) (*JWTVerifier, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{pub: pub}, nil
}

func (j *JWTVerifier) VerifyToken(token string) (*Identity, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.pub, nil
	})
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	id := &Identity{}
	// try common claim keys
	for _, key := range []string{"user_id", "uid", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			id.UserID = v
			break
		}
	}
	if id.UserID == "" {
		return nil, errors.New("user id not found in token")
	}
	if v, ok := claims["name"].(string); ok {
		id.Name = v
	}
	if v, ok := claims["admin"].(bool); ok {
		id.Admin = v
	}
	return id, nil
}
