package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// AuthConfig configures token signing.
type AuthConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// AuthService issues and validates HS256 access tokens. Identity is owned by the campus
// directory; this service never stores credentials.
type AuthService struct {
	config AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: cfg, logger: logger, now: time.Now}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// IssueToken signs an access token for the user.
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	if user == nil || user.ID == "" || !user.Role.Valid() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "user id and role are required")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	s.logger.Debug("token issued", zap.String("user_id", user.ID), zap.Time("expires_at", expiresAt))
	return signed, expiresAt, nil
}
