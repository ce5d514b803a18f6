package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the rest of the fleet uses
const DefaultBcryptCost = 10

// MinPasswordLength is the minimum required password length
const MinPasswordLength = 8

// ErrPasswordTooShort is returned when a password fails validation
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a password with its hash. bcrypt's comparison is
// constant-time over the derived key.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword validates a candidate password at registration time
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
