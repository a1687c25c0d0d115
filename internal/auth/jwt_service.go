package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenExpiry is the duration for which access tokens are valid.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the duration for which refresh tokens are valid.
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned when a token fails parsing or verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by session tokens. Authorities are resolved once at login and
// ride in the token for the session's lifetime, so access checks never go back
// to the directory.
type Claims struct {
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates session tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given signing secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// GenerateAccessToken creates a short-lived token carrying the principal's
// identity and authority set.
func (s *JWTService) GenerateAccessToken(p Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      p.UserID,
		Email:       p.Email,
		Authorities: p.Authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GenerateRefreshToken creates a long-lived token identified by a random token
// ID, which is also the key under which the session is stored server-side.
func (s *JWTService) GenerateRefreshToken(p Principal) (tokenID, signed string, err error) {
	now := time.Now()
	tokenID = uuid.NewString()
	claims := Claims{
		UserID: p.UserID,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err = token.SignedString(s.secret)
	return tokenID, signed, err
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractTokenID returns the token ID of a verified token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
