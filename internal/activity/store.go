package activity

import (
	"context"

	"permitdesk.org/internal/authz"
)

// Store describes persistence required by the activity service.
type Store interface {
	// CreateActivity inserts the activity and links the creator's contact
	// as PRIMARY, both writes in one transaction. An activity must never be
	// observable without its PRIMARY contact.
	CreateActivity(ctx context.Context, a *Activity, primaryContactID string) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	ListActivities(ctx context.Context, initiative string, limit int) ([]Activity, error)
	UpdateActivity(ctx context.Context, id string, upd Update) (Activity, error)

	ListContacts(ctx context.Context, activityID string) ([]authz.ActivityContact, error)
	UpsertContact(ctx context.Context, activityID, contactID, role string) error
	// SetPrimaryContact demotes the current PRIMARY (if any) to ADMIN and
	// promotes the given contact, both writes inside one transaction. At no
	// observable point may an activity hold two PRIMARY contacts.
	SetPrimaryContact(ctx context.Context, activityID, contactID string) error
	RemoveContact(ctx context.Context, activityID, contactID string) error
}

// Update carries the mutable activity fields; nil means unchanged.
type Update struct {
	Title  *string
	Status *string
}
