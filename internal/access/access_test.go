package access_test

import (
	"errors"
	"fmt"
	"testing"

	"mediaflow/internal/access"
	"mediaflow/internal/services"
)

func TestAuthorizeExhaustive(t *testing.T) {
	job := access.Resource{Organization: "acme", OwnerID: "owner"}
	orgs := []string{"acme", "beta", ""}
	ids := []string{"owner", "someone-else"}
	ops := []access.Operation{access.OpRead, access.OpDelete, access.Operation("rename")}
	roles := append([]access.Role{access.Role("")}, access.Roles...)

	for _, org := range orgs {
		for _, id := range ids {
			for _, role := range roles {
				for _, op := range ops {
					p := access.Principal{ID: id, Organization: org, Role: role}
					got := access.Authorize(p, job, op)
					want := expectedDecision(p, job, op)
					if got != want {
						t.Fatalf("Authorize(%+v, %s) = %s, want %s", p, op, got, want)
					}
				}
			}
		}
	}
}

func expectedDecision(p access.Principal, r access.Resource, op access.Operation) access.Decision {
	if p.Organization != r.Organization || p.Organization == "" {
		return access.DeniedNotFound
	}
	switch op {
	case access.OpRead:
		return access.Allowed
	case access.OpDelete:
		if p.Role == access.RoleAdmin || p.ID == r.OwnerID {
			return access.Allowed
		}
	}
	return access.DeniedForbidden
}

func TestCrossOrganizationReadLooksLikeMissing(t *testing.T) {
	p := access.Principal{ID: "b1", Organization: "beta", Role: access.RoleAdmin}
	d := access.Authorize(p, access.Resource{Organization: "acme", OwnerID: "a1"}, access.OpRead)
	if !errors.Is(d.Err(), services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", d.Err())
	}
	if errors.Is(d.Err(), services.ErrForbidden) {
		t.Fatal("cross-organization access must not be reported as forbidden")
	}
}

func TestDeleteByNonOwnerEditorIsForbidden(t *testing.T) {
	job := access.Resource{Organization: "acme", OwnerID: "e1"}
	e2 := access.Principal{ID: "e2", Organization: "acme", Role: access.RoleEditor}
	if d := access.Authorize(e2, job, access.OpDelete); !errors.Is(d.Err(), services.ErrForbidden) {
		t.Fatalf("expected forbidden, got %s", d)
	}
	admin := access.Principal{ID: "a", Organization: "acme", Role: access.RoleAdmin}
	if d := access.Authorize(admin, job, access.OpDelete); !d.OK() || d.Err() != nil {
		t.Fatalf("expected admin delete allowed, got %s", d)
	}
}

func TestCanSubmit(t *testing.T) {
	cases := []struct {
		role access.Role
		org  string
		want bool
	}{
		{access.RoleViewer, "acme", false},
		{access.RoleEditor, "acme", true},
		{access.RoleAdmin, "acme", true},
		{access.RoleEditor, "", false},
		{access.Role("owner"), "acme", false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", tc.role, tc.org), func(t *testing.T) {
			got := access.CanSubmit(access.Principal{ID: "x", Organization: tc.org, Role: tc.role}).OK()
			if got != tc.want {
				t.Fatalf("CanSubmit = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorizeUser(t *testing.T) {
	admin := access.Principal{ID: "a", Organization: "acme", Role: access.RoleAdmin}
	editor := access.Principal{ID: "e", Organization: "acme", Role: access.RoleEditor}

	if d := access.AuthorizeUser(admin, "acme", access.OpChangeRole); !d.OK() {
		t.Fatalf("admin change role: %s", d)
	}
	if d := access.AuthorizeUser(editor, "acme", access.OpChangeRole); d != access.DeniedForbidden {
		t.Fatalf("editor change role: %s", d)
	}
	if d := access.AuthorizeUser(admin, "beta", access.OpListUsers); d != access.DeniedNotFound {
		t.Fatalf("cross-org admin: %s", d)
	}
	if d := access.AuthorizeUser(admin, "acme", access.UserOperation("purge")); d != access.DeniedForbidden {
		t.Fatalf("unknown op: %s", d)
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := access.ParseRole(" Admin "); !ok || r != access.RoleAdmin {
		t.Fatalf("ParseRole = %q, %v", r, ok)
	}
	if _, ok := access.ParseRole("root"); ok {
		t.Fatal("expected unknown role rejected")
	}
}
