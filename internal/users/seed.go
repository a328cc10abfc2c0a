package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mediaflow/internal/access"
)

// SeedFile lists users to provision at startup.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser is one entry of the seed file. Token is the plain bearer token;
// only its digest is persisted.
type SeedUser struct {
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
	Organization string `yaml:"organization"`
	Role         string `yaml:"role"`
	Token        string `yaml:"token"`
}

// LoadSeedFile parses a YAML seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, entry := range seed.Users {
		if strings.TrimSpace(entry.Username) == "" {
			return nil, fmt.Errorf("seed file: users[%d]: username is required", i)
		}
		if strings.TrimSpace(entry.Organization) == "" {
			return nil, fmt.Errorf("seed file: users[%d]: organization is required", i)
		}
		if _, ok := access.ParseRole(entry.Role); !ok {
			return nil, fmt.Errorf("seed file: users[%d]: invalid role %q", i, entry.Role)
		}
	}
	return &seed, nil
}

// Apply upserts every seeded user and returns how many were written.
func (s *Store) Apply(ctx context.Context, seed *SeedFile) (int, error) {
	if seed == nil {
		return 0, errors.New("seed is nil")
	}
	count := 0
	for _, entry := range seed.Users {
		role, _ := access.ParseRole(entry.Role)
		user := &User{
			Username:     entry.Username,
			Email:        entry.Email,
			Organization: entry.Organization,
			Role:         role,
		}
		if token := strings.TrimSpace(entry.Token); token != "" {
			user.TokenHash = HashToken(token)
		}
		if err := s.Upsert(ctx, user); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
