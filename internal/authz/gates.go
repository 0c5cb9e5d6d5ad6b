package authz

import (
	"context"
	"errors"
)

// Guard evaluates the pre-check gates against contact state. Both gates are
// read-only and reject before the guarded operation runs; neither lets an
// internal error escape as anything other than ErrForbidden.
type Guard struct {
	contacts         ContactStore
	activityContacts ActivityContactStore
	registry         *Registry
}

// NewGuard constructs a Guard over the contact resolvers and the resource
// registry used by the ownership gate.
func NewGuard(contacts ContactStore, activityContacts ActivityContactStore, registry *Registry) (*Guard, error) {
	if contacts == nil || activityContacts == nil || registry == nil {
		return nil, errors.New("authz: contact stores and registry are required")
	}
	return &Guard{contacts: contacts, activityContacts: activityContacts, registry: registry}, nil
}

// RequireElevated passes when the caller holds ScopeAll, or appears on the
// activity's contact list as PRIMARY or ADMIN. ScopeAll short-circuits
// without touching the store. Every other outcome, including a lookup
// failure, is ErrForbidden.
func (g *Guard) RequireElevated(ctx context.Context, auth Authorization, activityID string) error {
	if auth.HasScope(ScopeAll) {
		return nil
	}
	role, err := g.roleOnActivity(ctx, auth.UserID(), activityID)
	if err != nil {
		return ErrForbidden
	}
	if role == RolePrimary || role == RoleAdmin {
		return nil
	}
	return ErrForbidden
}

// RequireOwnership applies only when the caller is restricted to own
// records; a caller without ScopeSelf already holds broader access by
// virtue of clearing policy resolution. A missing target resolves to
// ErrForbidden rather than a not-found, so existence never leaks.
func (g *Guard) RequireOwnership(ctx context.Context, auth Authorization, kind, id string) error {
	if !auth.HasScope(ScopeSelf) {
		return nil
	}
	if id == "" {
		return ErrForbidden
	}
	activityID, err := g.registry.Resolve(ctx, kind, id)
	if err != nil {
		return ErrForbidden
	}
	if _, err := g.roleOnActivity(ctx, auth.UserID(), activityID); err != nil {
		return ErrForbidden
	}
	return nil
}

// RequireHandoff authorizes a PRIMARY hand-off: the caller must hold
// ScopeAll or currently be the activity's PRIMARY contact.
func (g *Guard) RequireHandoff(ctx context.Context, auth Authorization, activityID string) error {
	if auth.HasScope(ScopeAll) {
		return nil
	}
	role, err := g.roleOnActivity(ctx, auth.UserID(), activityID)
	if err != nil || role != RolePrimary {
		return ErrForbidden
	}
	return nil
}

func (g *Guard) roleOnActivity(ctx context.Context, userID, activityID string) (string, error) {
	contact, err := g.contacts.ContactForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	links, err := g.activityContacts.ContactsForActivity(ctx, activityID)
	if err != nil {
		return "", err
	}
	for _, l := range links {
		if l.ContactID == contact.ID {
			return l.Role, nil
		}
	}
	return "", ErrNotFound
}
