// Package token wraps JWT creation and parsing for the three token
// kinds the backend issues: login sessions, email verification links,
// and password reset links.
package token

import (
	"errors"
	"fmt"
	"studybuddy/backend/internal/config"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose distinguishes the token kinds so a verification link can
// never be replayed as a session token.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateSession creates a login token for a user ID. Sessions last
// seven days.
func GenerateSession(userID uint) (string, error) {
	return sign(jwt.MapClaims{
		"sub":     userID,
		"purpose": string(PurposeSession),
		"exp":     time.Now().Add(time.Hour * 24 * 7).Unix(),
		"iat":     time.Now().Unix(),
	})
}

// GenerateVerify creates an email verification token, valid for a day.
func GenerateVerify(email string) (string, error) {
	return sign(jwt.MapClaims{
		"email":   email,
		"purpose": string(PurposeVerify),
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
		"iat":     time.Now().Unix(),
	})
}

// GenerateReset creates a password reset token, valid for an hour.
func GenerateReset(userID uint) (string, error) {
	return sign(jwt.MapClaims{
		"sub":     userID,
		"purpose": string(PurposeReset),
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	})
}

func sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// Parse validates a token and checks it was issued for the expected
// purpose.
func Parse(tokenString string, purpose Purpose) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != string(purpose) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID extracts the subject user ID from parsed claims.
func UserID(claims jwt.MapClaims) (uint, error) {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return uint(sub), nil
}

// Email extracts the email claim from parsed claims.
func Email(claims jwt.MapClaims) (string, error) {
	email, ok := claims["email"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return email, nil
}
