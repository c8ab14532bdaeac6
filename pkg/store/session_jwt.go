package store

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"dardasha/internal/util"
)

const (
	defaultJWTIssuer   = "dardasha-auth"
	defaultJWTAudience = "dardasha-api"
)

var defaultJWTLeeway = 30 * time.Second

// JWTSessionStore issues and validates HS256 session tokens. Signing out
// places the token ID on the revoker's denylist until expiry.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker

	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTSessionStore builds an HS256 session store.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker) (*JWTSessionStore, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTSessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		revoker:  revoker,
		issuer:   defaultJWTIssuer,
		audience: defaultJWTAudience,
		leeway:   defaultJWTLeeway,
	}, nil
}

// NewSession creates a signed JWT for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserIDByToken validates a JWT and returns the subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", false, err
		}
		if revoked {
			return "", false, errors.New("token revoked")
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, errors.New("token subject missing")
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes the token until it expires.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *JWTSessionStore) parseAndVerify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}
