package authz

import (
	"context"
	"errors"
)

// Owned is implemented by response payloads that belong to an activity.
type Owned interface {
	OwningActivityID() string
}

// Masker applies the post-hoc visibility mask to read results. Unlike the
// pre-check gates it never rejects: under ScopeSelf the caller simply sees
// less, down to nothing at all. Write paths must not use it.
type Masker struct {
	contacts         ContactStore
	activityContacts ActivityContactStore
}

func NewMasker(contacts ContactStore, activityContacts ActivityContactStore) (*Masker, error) {
	if contacts == nil || activityContacts == nil {
		return nil, errors.New("authz: contact stores are required")
	}
	return &Masker{contacts: contacts, activityContacts: activityContacts}, nil
}

// callerContact resolves the caller's contact id once per masked response.
func (m *Masker) callerContact(ctx context.Context, auth Authorization) (string, bool) {
	contact, err := m.contacts.ContactForUser(ctx, auth.UserID())
	if err != nil {
		return "", false
	}
	return contact.ID, true
}

// visible reports whether the activity's contact list includes the caller's
// contact. A lookup failure masks the item.
func (m *Masker) visible(ctx context.Context, contactID, activityID string) bool {
	links, err := m.activityContacts.ContactsForActivity(ctx, activityID)
	if err != nil {
		return false
	}
	for _, l := range links {
		if l.ContactID == contactID {
			return true
		}
	}
	return false
}

// FilterOwned keeps the elements whose activity lists the caller as a
// contact. Without ScopeSelf the input passes through unmodified.
func FilterOwned[T Owned](ctx context.Context, m *Masker, auth Authorization, items []T) []T {
	if !auth.HasScope(ScopeSelf) {
		return items
	}
	contactID, ok := m.callerContact(ctx, auth)
	if !ok {
		return []T{}
	}
	// Activities repeat across items; resolve each contact list once.
	byActivity := make(map[string]bool)
	out := make([]T, 0, len(items))
	for _, item := range items {
		activityID := item.OwningActivityID()
		v, cached := byActivity[activityID]
		if !cached {
			v = m.visible(ctx, contactID, activityID)
			byActivity[activityID] = v
		}
		if v {
			out = append(out, item)
		}
	}
	return out
}

// MaskOwned reports whether a singular result is visible to the caller. On
// a mask the caller receives an empty object, not an error; reads degrade
// instead of rejecting.
func MaskOwned[T Owned](ctx context.Context, m *Masker, auth Authorization, item T) (T, bool) {
	if !auth.HasScope(ScopeSelf) {
		return item, true
	}
	var zero T
	contactID, ok := m.callerContact(ctx, auth)
	if !ok {
		return zero, false
	}
	if !m.visible(ctx, contactID, item.OwningActivityID()) {
		return zero, false
	}
	return item, true
}
