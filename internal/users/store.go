package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/access"
	"mediaflow/internal/database"
)

const userColumns = "id, username, email, organization, role, token_hash, created_at, updated_at"

// Store manages user persistence.
type Store struct {
	db *database.DB
}

// NewStore binds a user store to an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Upsert creates a user or, when the username exists, refreshes its email,
// role and token digest. Organization is fixed at creation.
func (s *Store) Upsert(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	user.Username = strings.TrimSpace(user.Username)
	user.Organization = strings.TrimSpace(user.Organization)
	if user.Username == "" {
		return errors.New("upsert user: username is required")
	}
	if user.Organization == "" {
		return errors.New("upsert user: organization is required")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("upsert user: invalid role %q", user.Role)
	}

	existing, err := s.GetByUsername(ctx, user.Username)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing != nil {
		if existing.Organization != user.Organization {
			return fmt.Errorf("upsert user %s: organization is immutable (%s)", user.Username, existing.Organization)
		}
		tokenHash := user.TokenHash
		if tokenHash == "" {
			tokenHash = existing.TokenHash
		}
		if _, err := s.db.ExecContext(
			ctx,
			`UPDATE users SET email = ?, role = ?, token_hash = ?, updated_at = ? WHERE id = ?`,
			database.NullableString(user.Email),
			string(user.Role),
			database.NullableString(tokenHash),
			database.FormatTime(now),
			existing.ID,
		); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		user.ID = existing.ID
		user.TokenHash = tokenHash
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now
		return nil
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		database.NullableString(user.Email),
		user.Organization,
		string(user.Role),
		database.NullableString(user.TokenHash),
		database.FormatTime(now),
		database.FormatTime(now),
	); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get fetches a user by id. A missing user yields (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, "id", id)
}

// GetByUsername fetches a user by username. A missing user yields (nil, nil).
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getOne(ctx, "username", username)
}

// FindByToken resolves a bearer token to its user. Unknown tokens yield (nil, nil).
func (s *Store) FindByToken(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return s.getOne(ctx, "token_hash", HashToken(token))
}

func (s *Store) getOne(ctx context.Context, column, value string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListByOrganization returns users of one organization ordered by username.
// An empty organization lists everyone.
func (s *Store) ListByOrganization(ctx context.Context, organization string) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if organization != "" {
		query += ` WHERE organization = ?`
		args = append(args, organization)
	}
	query += ` ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// SetRole changes a user's role. Authorization is the caller's job.
func (s *Store) SetRole(ctx context.Context, id string, role access.Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("set role: invalid role %q", role)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role),
		database.FormatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		user       User
		email      sql.NullString
		role       string
		tokenHash  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&user.ID,
		&user.Username,
		&email,
		&user.Organization,
		&role,
		&tokenHash,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.Role = access.Role(role)
	user.TokenHash = tokenHash.String
	if created, err := database.ParseTime(createdRaw); err == nil {
		user.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		user.UpdatedAt = updated
	}
	return &user, nil
}
