package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

func HashPassword(password string) (string, error) {
	trimmed := strings.TrimSpace(password)
	if trimmed == "" {
		return "", fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func VerifyPassword(password, hash string) bool {
	trimmedPassword := strings.TrimSpace(password)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedPassword == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedPassword)) == nil
}

func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// DashboardCredentials guards the dashboard API with a single shared login.
type DashboardCredentials struct {
	Username     string
	PasswordHash string
}

func (d DashboardCredentials) Enabled() bool {
	return strings.TrimSpace(d.PasswordHash) != ""
}

// Verify reports whether username and password match. The username
// comparison is constant time; the password goes through bcrypt.
func (d DashboardCredentials) Verify(username, password string) bool {
	if !d.Enabled() {
		return false
	}
	want := NormalizeUsername(d.Username)
	got := NormalizeUsername(username)
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return false
	}
	return VerifyPassword(password, d.PasswordHash)
}
