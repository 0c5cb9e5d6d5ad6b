package authz

import (
	"context"
	"sort"
)

// Authorization is the request-scoped outcome of policy resolution: the
// scope tokens the subject holds plus the groups it resolved through. It is
// built once per request, never cached across requests, and immutable after
// construction.
type Authorization struct {
	userID     string
	attributes map[string]struct{}
	groups     []Group
}

// NewAuthorization builds an Authorization. Duplicate attribute tokens
// collapse; nothing downstream depends on multiplicity.
func NewAuthorization(userID string, attributes []string, groups []Group) Authorization {
	set := make(map[string]struct{}, len(attributes))
	for _, a := range attributes {
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	gs := make([]Group, len(groups))
	copy(gs, groups)
	return Authorization{userID: userID, attributes: set, groups: gs}
}

// UserID returns the internal user the subject resolved to.
func (a Authorization) UserID() string { return a.userID }

// HasScope reports whether the given scope token was granted.
func (a Authorization) HasScope(token string) bool {
	_, ok := a.attributes[token]
	return ok
}

// Attributes returns the granted scope tokens, sorted.
func (a Authorization) Attributes() []string {
	out := make([]string, 0, len(a.attributes))
	for k := range a.attributes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Groups returns a copy of the resolved groups.
func (a Authorization) Groups() []Group {
	out := make([]Group, len(a.groups))
	copy(out, a.groups)
	return out
}

type authorizationContextKey struct{}

// ContextWithAuthorization attaches the resolved authorization to the
// request context.
func ContextWithAuthorization(ctx context.Context, auth Authorization) context.Context {
	return context.WithValue(ctx, authorizationContextKey{}, auth)
}

// AuthorizationFromContext extracts the authorization attached by the
// capability interceptor.
func AuthorizationFromContext(ctx context.Context) (Authorization, bool) {
	if ctx == nil {
		return Authorization{}, false
	}
	v, ok := ctx.Value(authorizationContextKey{}).(Authorization)
	return v, ok
}
