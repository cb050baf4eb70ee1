package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid. There is no
// revocation list; logout is client-side token deletion.
const TokenTTL = 7 * 24 * time.Hour

var jwtSecret []byte

// Init installs the signing secret. Called once at process start with
// the configured value; tokens cannot be issued or verified before it.
func Init(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT secret must not be empty")
	}
	jwtSecret = []byte(secret)
	return nil
}

// Identity is the payload carried by a verified token.
type Identity struct {
	ID       uint
	Email    string
	Username string
}

func GenerateJWT(userID uint, email, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"email":    email,
		"username": username,
		"exp":      time.Now().Add(TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// VerifyJWT checks signature and expiry. Any mismatch, malformed token,
// or expiry fails to "unauthenticated" and never to another identity.
func VerifyJWT(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)

	if !ok {
		return Identity{}, fmt.Errorf("invalid token claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)

	if !ok {
		return Identity{}, fmt.Errorf("invalid user ID in token claims")
	}

	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)

	return Identity{
		ID:       uint(userIDFloat),
		Email:    email,
		Username: username,
	}, nil
}
