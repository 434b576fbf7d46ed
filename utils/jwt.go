package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secretKey = []byte("supersecret")
	tokenTTL  = 2 * time.Hour
)

var (
	ErrTokenUnparseable = errors.New("could not parse token")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenClaims      = errors.New("invalid token claims")
)

// Configure sets the signing key and lifetime used by GenerateToken and
// VerifyToken. It is called once at startup.
func Configure(secret string, ttl time.Duration) {
	if secret != "" {
		secretKey = []byte(secret)
	}
	if ttl > 0 {
		tokenTTL = ttl
	}
}

// TokenClaims is the payload carried by an access token.
type TokenClaims struct {
	UserID int64
	Email  string
	Role   string
}

func GenerateToken(email string, userId int64, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":  email,
		"userId": userId,
		"role":   role,
		"exp":    time.Now().Add(tokenTTL).Unix(),
	})

	return token.SignedString(secretKey)
}

// VerifyToken checks the signature and expiry and returns the claims.
func VerifyToken(token string) (TokenClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		return TokenClaims{}, ErrTokenUnparseable
	}

	// 簽章正確也可能已過期
	if !parsedToken.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrTokenClaims
	}
	uid, ok := claims["userId"].(float64)
	if !ok {
		return TokenClaims{}, ErrTokenClaims
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return TokenClaims{UserID: int64(uid), Email: email, Role: role}, nil
}
