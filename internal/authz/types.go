package authz

// Initiatives partition groups, policies and activities. One reserved code
// aggregates across all of them: policy resolution under it collapses groups
// by name, because the same group name may exist once per initiative.
const InitiativeAll = "ALL"

// DeveloperGroup is the universal bypass. Membership grants ScopeAll without
// consulting policies at all.
const DeveloperGroup = "Developer"

// Scope tokens granted by policy resolution.
const (
	// ScopeAll grants unrestricted access to the requested resource.
	ScopeAll = "scope:all"
	// ScopeSelf restricts the caller to activities it is a contact of.
	ScopeSelf = "scope:self"
)

// Contact roles on an activity. At most one contact per activity holds
// RolePrimary at any time.
const (
	RolePrimary = "PRIMARY"
	RoleAdmin   = "ADMIN"
	RoleMember  = "MEMBER"
)

// Group is long-lived reference data administered outside this service.
type Group struct {
	ID         string `json:"id"`
	Initiative string `json:"initiative"`
	Name       string `json:"name"`
	Label      string `json:"label,omitempty"`
}

// Policy is a resolved view row: the group may perform Action on Resource
// within Initiative.
type Policy struct {
	GroupID    string
	Initiative string
	PolicyID   string
	Resource   string
	Action     string
}

// Attribute is a capability token attached to a policy. An empty GroupIDs
// set means the attribute applies to every group the policy matched for;
// otherwise it applies only to subjects whose groups intersect it.
type Attribute struct {
	ID       string
	Name     string
	GroupIDs []string
}

// Contact is the person record a user acts through.
type Contact struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// ActivityContact links a contact to an activity with a role.
type ActivityContact struct {
	ActivityID string `json:"activity_id"`
	ContactID  string `json:"contact_id"`
	Role       string `json:"role"`
}
