package authz

import "context"

// Directory resolves external token subjects to internal user ids. The
// identity provider tag is optional; an empty value matches any provider.
type Directory interface {
	ResolveSubject(ctx context.Context, subject, identityProvider string) (string, error)
}

// GroupStore resolves group membership.
type GroupStore interface {
	GroupsForUser(ctx context.Context, userID string) ([]Group, error)
}

// PolicyStore resolves policies granting an action on a resource.
// PoliciesForGroupName serves the aggregator initiative, where groups of the
// same name across initiatives collapse into one lookup.
type PolicyStore interface {
	PoliciesForGroup(ctx context.Context, groupID, resource, action, initiative string) ([]Policy, error)
	PoliciesForGroupName(ctx context.Context, groupName, resource, action string) ([]Policy, error)
}

// AttributeStore resolves the attributes attached to a policy.
type AttributeStore interface {
	AttributesForPolicy(ctx context.Context, policyID string) ([]Attribute, error)
}

// ContactStore resolves the contact record owned by a user.
type ContactStore interface {
	ContactForUser(ctx context.Context, userID string) (Contact, error)
}

// ActivityContactStore lists the contacts linked to an activity.
type ActivityContactStore interface {
	ContactsForActivity(ctx context.Context, activityID string) ([]ActivityContact, error)
}
