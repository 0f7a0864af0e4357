package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// TokenPair is an access/refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService issues and rotates tokens. Refresh tokens are stored
// only as hashes; rotation is a conditional update keyed on the
// previous hash, so a replayed refresh token loses the race and is
// rejected.
type AuthService struct {
	users    repositories.UserRepository
	sessions repositories.SessionRepository
	secret   []byte
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users repositories.UserRepository, sessions repositories.SessionRepository, jwtSecret string) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		secret:   []byte(jwtSecret),
		now:      time.Now,
	}
}

// Login issues a token pair and activates a session for the device
func (s *AuthService) Login(ctx context.Context, email, deviceID string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorizedError("account is deactivated")
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &entities.UserSession{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: hashToken(pair.RefreshToken),
		DeviceID:         deviceID,
		IsActive:         true,
		CreatedAt:        now,
	}
	if err := s.sessions.Activate(ctx, session); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh rotates a refresh token into a new pair. A token that was
// already rotated or revoked is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return nil, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid refresh token")
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	err = s.sessions.Rotate(ctx, user.ID, hashToken(refreshToken), hashToken(pair.RefreshToken), s.now().UTC())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, apperrors.NewUnauthorizedError("refresh token is no longer valid")
		}
		return nil, err
	}
	return pair, nil
}

// Logout terminates the user's active session
func (s *AuthService) Logout(ctx context.Context, principal entities.Principal) error {
	return s.sessions.Deactivate(ctx, principal.ID)
}

func (s *AuthService) issue(user *entities.User) (*TokenPair, error) {
	now := s.now().UTC()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       user.ID,
		"role":      string(user.Role),
		"token_use": "access",
		"iat":       now.Unix(),
		"exp":       now.Add(accessTokenTTL).Unix(),
	})
	accessToken, err := access.SignedString(s.secret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign access token", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       user.ID,
		"jti":       uuid.New().String(),
		"token_use": "refresh",
		"iat":       now.Unix(),
		"exp":       now.Add(refreshTokenTTL).Unix(),
	})
	refreshToken, err := refresh.SignedString(s.secret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign refresh token", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AuthService) parse(token, expectedUse string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["token_use"] != expectedUse {
		return nil, apperrors.NewUnauthorizedError("invalid token")
	}
	return claims, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
