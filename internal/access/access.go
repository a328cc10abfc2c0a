package access

import (
	"strings"

	"mediaflow/internal/services"
)

// Role is a principal's capability level inside its organization.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleViewer, RoleEditor, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes a role name.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.Valid()
}

// Principal is the authenticated actor of a request.
type Principal struct {
	ID           string `json:"id"`
	Organization string `json:"organization"`
	Role         Role   `json:"role"`
}

// Resource is the access-relevant view of a job.
type Resource struct {
	Organization string
	OwnerID      string
}

// Operation is an action on a job.
type Operation string

const (
	OpRead   Operation = "read"
	OpDelete Operation = "delete"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allowed Decision = iota
	DeniedNotFound
	DeniedForbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedNotFound:
		return "denied_not_found"
	case DeniedForbidden:
		return "denied_forbidden"
	default:
		return "unknown"
	}
}

// OK reports whether the operation may proceed.
func (d Decision) OK() bool { return d == Allowed }

// Err maps a denial to the sentinel the HTTP layer understands. Allowed maps
// to nil.
func (d Decision) Err() error {
	switch d {
	case Allowed:
		return nil
	case DeniedNotFound:
		return services.ErrNotFound
	default:
		return services.ErrForbidden
	}
}

func sameOrganization(p Principal, org string) bool {
	return p.Organization != "" && p.Organization == org
}

// Authorize decides whether p may perform op on r.
//
// Read is allowed within the organization. Delete additionally requires the
// admin role or ownership. Unknown operations are forbidden.
func Authorize(p Principal, r Resource, op Operation) Decision {
	if !sameOrganization(p, r.Organization) {
		return DeniedNotFound
	}
	switch op {
	case OpRead:
		return Allowed
	case OpDelete:
		if p.Role == RoleAdmin || (p.ID != "" && p.ID == r.OwnerID) {
			return Allowed
		}
		return DeniedForbidden
	default:
		return DeniedForbidden
	}
}

// CanSubmit reports whether p may create new jobs.
func CanSubmit(p Principal) Decision {
	if p.Organization == "" {
		return DeniedForbidden
	}
	switch p.Role {
	case RoleEditor, RoleAdmin:
		return Allowed
	default:
		return DeniedForbidden
	}
}

// UserOperation is an administrative action on user records.
type UserOperation string

const (
	OpListUsers  UserOperation = "list_users"
	OpChangeRole UserOperation = "change_role"
)

// AuthorizeUser decides whether p may administer users of targetOrg. Only
// admins of the same organization may; other tenants' users are not-found.
func AuthorizeUser(p Principal, targetOrg string, op UserOperation) Decision {
	if !sameOrganization(p, targetOrg) {
		return DeniedNotFound
	}
	switch op {
	case OpListUsers, OpChangeRole:
		if p.Role == RoleAdmin {
			return Allowed
		}
		return DeniedForbidden
	default:
		return DeniedForbidden
	}
}
