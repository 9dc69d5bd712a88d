// Package actor identifies who performs a stock-changing action. The API
// gateway authenticates users and forwards their identity in headers.
package actor

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medflow/pharmacy-backend/pkg/permissions"
)

// Gateway headers carrying the authenticated user
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
	// HeaderUserPermissions carries a JSON array of granted permissions.
	HeaderUserPermissions = "X-User-Permissions"
)

const systemID = "system"

// Actor is the user or process performing an action
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	Permissions []string `json:"permissions,omitempty"`
}

// Identifier is the value recorded as performedBy in the ledger.
// Email is preferred because it stays readable after the user is removed.
func (a *Actor) Identifier() string {
	switch {
	case a == nil:
		return systemID
	case a.Email != "":
		return a.Email
	case a.ID != "":
		return a.ID
	default:
		return systemID
	}
}

// IsSystem returns true if the actor represents the service itself.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == systemID
}

// Can reports whether the actor was granted permission.
func (a *Actor) Can(permission string) bool {
	if a == nil {
		return false
	}
	return permissions.HasPermission(a.Permissions, permission)
}

// System is the actor for scheduled and other service-initiated work.
func System() *Actor {
	return &Actor{ID: systemID, Name: "System", Permissions: []string{permissions.FullAccess}}
}

// FromHeaders reads the gateway identity headers. It returns nil when no
// user id is present. A malformed permissions header grants nothing.
func FromHeaders(h http.Header) *Actor {
	id := h.Get(HeaderUserID)
	if id == "" {
		return nil
	}
	a := &Actor{
		ID:    id,
		Name:  h.Get(HeaderUserName),
		Email: h.Get(HeaderUserEmail),
		Role:  h.Get(HeaderUserRole),
	}
	if raw := h.Get(HeaderUserPermissions); raw != "" {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err == nil {
			a.Permissions = perms
		}
	}
	return a
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context, nil if absent.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorContextKey).(*Actor)
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}
