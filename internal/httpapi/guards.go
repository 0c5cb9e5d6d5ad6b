package httpapi

import (
	"context"
	"net/http"
	"strings"

	"permitdesk.org/internal/authn"
	"permitdesk.org/internal/authz"
	"permitdesk.org/internal/obs"
)

// Resource and action names for capability checks.
const (
	resourceActivity = "activity"

	actionRead           = "read"
	actionCreate         = "create"
	actionUpdate         = "update"
	actionManageContacts = "manage_contacts"
)

const initiativeHeader = "X-Initiative"

// Problem is the error payload for authorization denials.
type Problem struct {
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, status, Problem{
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// authorize runs the capability gate: it assembles the caller's authorization
// for the given resource and action, stores it in the request context and
// reports whether the caller may proceed. Every failure mode denies.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, resource, action string) (context.Context, authz.Authorization, bool) {
	ctx := r.Context()
	subject, ok := authn.SubjectFromContext(ctx)
	if !ok {
		obs.AuthzDecision("capability", "deny")
		writeProblem(w, r, http.StatusForbidden, "forbidden")
		return ctx, authz.Authorization{}, false
	}
	initiative := strings.TrimSpace(r.Header.Get(initiativeHeader))

	auth, err := a.builder.Build(ctx, subject, authn.IdentityProviderFromContext(ctx), resource, action, initiative)
	if err != nil {
		obs.AuthzDecision("capability", "deny")
		writeProblem(w, r, http.StatusForbidden, "forbidden")
		return ctx, authz.Authorization{}, false
	}
	obs.AuthzDecision("capability", "allow")
	return authz.ContextWithAuthorization(ctx, auth), auth, true
}

// requireOwnAccess runs the ownership pre-check for a resource of the given
// kind before a mutation touches it. Callers without a self-scoped grant
// pass through untouched.
func (a *API) requireOwnAccess(w http.ResponseWriter, r *http.Request, ctx context.Context, auth authz.Authorization, kind, id string) bool {
	if err := a.guard.RequireOwnership(ctx, auth, kind, id); err != nil {
		obs.AuthzDecision("ownership", "deny")
		writeProblem(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	obs.AuthzDecision("ownership", "allow")
	return true
}

// requireElevated enforces the elevated-role gate for contact management on
// an activity.
func (a *API) requireElevated(w http.ResponseWriter, r *http.Request, ctx context.Context, auth authz.Authorization, activityID string) bool {
	if err := a.guard.RequireElevated(ctx, auth, activityID); err != nil {
		obs.AuthzDecision("elevated", "deny")
		writeProblem(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	obs.AuthzDecision("elevated", "allow")
	return true
}
