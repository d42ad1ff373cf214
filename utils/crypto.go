package utils

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashToken produces the bcrypt hash stored in OPS_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if len(strings.TrimSpace(token)) < 16 {
		return "", fmt.Errorf("token must be at least 16 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckToken(hashedToken, token string) bool {
	if hashedToken == "" || token == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(token))
	return err == nil
}
