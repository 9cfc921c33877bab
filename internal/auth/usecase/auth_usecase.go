package usecase

import (
	"errors"
	"time"

	"loopchat-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// AuthUsecase verifies bearer tokens minted by the identity service.
type AuthUsecase interface {
	// ValidateToken returns the authenticated user ID or an error.
	ValidateToken(tokenString string) (string, error)
	// IssueToken mints a token for the given user. Used by tests and tooling;
	// production tokens come from the identity service.
	IssueToken(userID string, ttl time.Duration) (string, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	secret []byte
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(cfg *config.Config) AuthUsecase {
	return &authUsecase{secret: []byte(cfg.JWTSecret)}
}

func (u *authUsecase) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return u.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid token claims")
	}
	return userID, nil
}

func (u *authUsecase) IssueToken(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}
