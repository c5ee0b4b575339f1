// Package token issues and verifies the bearer tokens handed out after
// wallet authentication. Tokens are HS256 JWTs signed with a key derived
// from a master secret.
package token

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// DefaultExpiration matches the session lifetime users expect from the
// web client.
const DefaultExpiration = 24 * time.Hour

// sessionClaims is the JWT payload. The custom fields mirror
// interfaces.Claims so middleware can rebuild them without a profile
// lookup.
type sessionClaims struct {
	Address     string                 `json:"address"`
	Username    string                 `json:"username"`
	Role        string                 `json:"role"`
	Permissions interfaces.Permissions `json:"permissions"`
	jwt.RegisteredClaims
}

// Codec implements interfaces.TokenCodec with HS256 JWTs.
type Codec struct {
	signingKey []byte
	expiration time.Duration
	now        func() time.Time
}

// NewCodec derives the HMAC signing key from masterSecret via HKDF and
// returns a codec issuing tokens with the given lifetime (DefaultExpiration
// if zero).
func NewCodec(masterSecret []byte, expiration time.Duration) (*Codec, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("token master secret must not be empty")
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, masterSecret, nil, []byte("session-token-signing"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &Codec{
		signingKey: key,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

// Issue signs a token carrying the claims.
func (c *Codec) Issue(claims interfaces.Claims) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Address:     claims.Address.String(),
		Username:    claims.Username,
		Role:        string(claims.Role),
		Permissions: claims.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Address.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Expired,
// malformed or tampered tokens yield an authentication error.
func (c *Codec) Verify(tokenString string) (interfaces.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.signingKey, nil
		},
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		return interfaces.Claims{}, apperr.Auth("invalid token", err)
	}

	sc, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return interfaces.Claims{}, apperr.Auth("invalid token claims", nil)
	}

	address, err := interfaces.NewWalletAddressFromHex(sc.Address)
	if err != nil {
		return interfaces.Claims{}, apperr.Auth("invalid address in token", err)
	}
	role := interfaces.Role(sc.Role)
	if err := role.Validate(); err != nil {
		return interfaces.Claims{}, apperr.Auth("invalid role in token", err)
	}

	return interfaces.Claims{
		Address:     address,
		Username:    sc.Username,
		Role:        role,
		Permissions: sc.Permissions,
	}, nil
}
