package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mediaflow/internal/access"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/users"
)

// UserStore abstracts user persistence needed for administration.
type UserStore interface {
	Get(ctx context.Context, id string) (*users.User, error)
	ListByOrganization(ctx context.Context, organization string) ([]*users.User, error)
	SetRole(ctx context.Context, id string, role access.Role) (*users.User, error)
}

// UserService exposes organization-scoped user administration.
type UserService struct {
	store  UserStore
	logger *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store UserStore, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logging.NewComponentLogger(logger, "api")}
}

// List returns the users of p's organization. Only admins may list.
func (s *UserService) List(ctx context.Context, p access.Principal) ([]*users.User, error) {
	if err := access.AuthorizeUser(p, p.Organization, access.OpListUsers).Err(); err != nil {
		return nil, services.Wrap(err, "api", "list users", "admin role required", nil)
	}
	return s.store.ListByOrganization(ctx, p.Organization)
}

// ChangeRole sets the role of a user in p's organization. Users of other
// organizations are reported as not found.
func (s *UserService) ChangeRole(ctx context.Context, p access.Principal, userID, role string) (*users.User, error) {
	parsed, ok := access.ParseRole(role)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "change role", fmt.Sprintf("unknown role %q", role), nil)
	}
	target, err := s.store.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if target == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "change role", "user not found", nil)
	}
	switch decision := access.AuthorizeUser(p, target.Organization, access.OpChangeRole); decision {
	case access.Allowed:
	case access.DeniedNotFound:
		return nil, services.Wrap(decision.Err(), "api", "change role", "user not found", nil)
	default:
		return nil, services.Wrap(decision.Err(), "api", "change role", "admin role required", nil)
	}

	updated, err := s.store.SetRole(ctx, target.ID, parsed)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	if updated == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "change role", "user not found", nil)
	}
	logging.WithContext(services.WithOrganization(ctx, p.Organization), s.logger).Info("user role changed",
		logging.String(logging.FieldPrincipal, p.ID),
		logging.String("user_id", updated.ID),
		logging.String("role", string(updated.Role)),
		logging.String(logging.FieldEventType, "user_role_changed"),
	)
	return updated, nil
}
