package users

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"mediaflow/internal/access"
)

// User is the persisted form of an access.Principal.
type User struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email,omitempty"`
	Organization string      `json:"organization"`
	Role         access.Role `json:"role"`
	TokenHash    string      `json:"-"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Principal returns the access-control view of the user.
func (u *User) Principal() access.Principal {
	return access.Principal{ID: u.ID, Organization: u.Organization, Role: u.Role}
}

// HashToken returns the hex SHA-256 digest stored for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken returns a random 32-byte token in hex form.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
