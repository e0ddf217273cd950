package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/username/optifolio/src/config"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// TokenClaims is what a validated access token carries: the user id plus
// the tenant scope embedded at login time.
type TokenClaims struct {
	UserID     string
	ClientName string
	IsAdmin    bool
}

type AuthService struct {
	JWTSecret string
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{
		JWTSecret: secret,
	}
}

func (a *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *AuthService) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateToken signs a short-lived access token carrying the user's tenant
// scope so request handlers never have to hit the users table.
func (a *AuthService) GenerateToken(userID, clientName string, isAdmin bool) (string, error) {
	if config.Cfg == nil {
		return "", errors.New("configuration not loaded, cannot determine token expiry")
	}
	claims := jwt.MapClaims{
		"sub":    userID,
		"client": clientName,
		"admin":  isAdmin,
		"exp":    time.Now().Add(config.Cfg.AccessTokenExpiry).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthService) GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken checks the signature and expiry and extracts the claims.
func (a *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, errors.New("invalid token: 'sub' claim missing or not a string")
	}
	out := &TokenClaims{UserID: sub}
	if client, ok := claims["client"].(string); ok {
		out.ClientName = client
	}
	if admin, ok := claims["admin"].(bool); ok {
		out.IsAdmin = admin
	}
	return out, nil
}
