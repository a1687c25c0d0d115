package service

import (
	"context"
	"errors"
	"fmt"

	"accpanel/internal/auth"
	apperrors "accpanel/internal/errors"
	"accpanel/internal/metrics"
	"accpanel/internal/model"
)

// ErrInvalidRefreshToken is returned when a refresh token is invalid or expired.
var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// LoginResult is everything the web layer needs after a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	// RedirectTo is the role-dependent landing destination.
	RedirectTo string
	User       *model.User
}

// AuthService adapts the account directory into the credential-verification
// contract: load a principal by email, verify the password, hand out session
// tokens carrying the authority set.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	directory UserService
	hasher    auth.PasswordHasher
	jwt       *auth.JWTService
	tokens    auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(directory UserService, hasher auth.PasswordHasher, jwt *auth.JWTService, tokens auth.TokenStoreInterface) AuthService {
	return &authService{
		directory: directory,
		hasher:    hasher,
		jwt:       jwt,
		tokens:    tokens,
	}
}

// loadPrincipal looks up the account by email (the login key; the username is
// a separate display attribute) and derives its authority set.
func (s *authService) loadPrincipal(ctx context.Context, email string) (*auth.Principal, *model.User, error) {
	user, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.ErrPrincipalNotFound
		}
		return nil, nil, fmt.Errorf("load principal: %w", err)
	}
	principal := &auth.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Authorities:  s.directory.AuthoritiesFor(user),
	}
	return principal, user, nil
}

// Login verifies credentials and issues session tokens. An unknown email and a
// wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	principal, user, err := s.loadPrincipal(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrPrincipalNotFound) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, principal.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwt.GenerateAccessToken(*principal)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwt.GenerateRefreshToken(*principal)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	session := auth.StoredSession{
		UserID:      principal.UserID,
		Email:       principal.Email,
		Authorities: principal.Authorities,
	}
	if err := s.tokens.StoreRefreshToken(ctx, tokenID, session, auth.RefreshTokenExpiry); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RedirectTo:   auth.LandingPath(principal.Authorities),
		User:         user,
	}, nil
}

// Refresh validates a refresh token and issues a new access token with the
// authority set cached at login.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	tokenID, err := s.jwt.ExtractTokenID(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	session, err := s.tokens.GetRefreshToken(ctx, tokenID)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if session.UserID != claims.UserID || session.Email != claims.Email {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.jwt.GenerateAccessToken(auth.Principal{
		UserID:      session.UserID,
		Email:       session.Email,
		Authorities: session.Authorities,
	})
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwt.ExtractTokenID(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	return s.tokens.DeleteRefreshToken(ctx, tokenID)
}
