// Package access is the tenant access guard.
//
// Every function here is pure: a decision depends only on the principal, the
// resource and the operation. Cross-organization requests are denied as
// not-found so callers answer them exactly like a missing job; same-tenant
// requests lacking rights are denied as forbidden.
package access
