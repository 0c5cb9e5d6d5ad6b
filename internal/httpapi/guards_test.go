package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"permitdesk.org/internal/authn"
	"permitdesk.org/internal/authz"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestAuthorizeDeniesUnknownSubject(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req = req.WithContext(authn.ContextWithSubject(req.Context(), "okta|stranger", "okta"))
	rr := httptest.NewRecorder()

	_, _, ok := f.api.authorize(rr, req, resourceActivity, actionRead)
	if ok {
		t.Fatal("expected denial for unknown subject")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	p := decodeProblem(t, rr)
	if p.Status != http.StatusForbidden || p.Detail != "forbidden" || p.Instance != "/v1/activities" {
		t.Fatalf("unexpected problem payload: %+v", p)
	}
}

func TestAuthorizeDeniesWithoutSubject(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	rr := httptest.NewRecorder()

	if _, _, ok := f.api.authorize(rr, req, resourceActivity, actionRead); ok {
		t.Fatal("expected denial without an authenticated subject")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAuthorizeAttachesAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seedUser("okta|alice", "u-alice", "Navigator", authz.ScopeSelf)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set(initiativeHeader, "HOUSING")
	req = req.WithContext(authn.ContextWithSubject(req.Context(), "okta|alice", "okta"))
	rr := httptest.NewRecorder()

	ctx, auth, ok := f.api.authorize(rr, req, resourceActivity, actionRead)
	if !ok {
		t.Fatalf("expected grant, got %d: %s", rr.Code, rr.Body.String())
	}
	if auth.UserID() != "u-alice" {
		t.Fatalf("unexpected user id: %s", auth.UserID())
	}
	if !auth.HasScope(authz.ScopeSelf) {
		t.Fatalf("expected self scope, got %v", auth.Attributes())
	}
	stored, found := authz.AuthorizationFromContext(ctx)
	if !found || stored.UserID() != "u-alice" {
		t.Fatal("expected authorization stored in context")
	}
}

func TestRequireElevatedDeniesMember(t *testing.T) {
	f := newFixture(t)
	f.seedUser("okta|alice", "u-alice", "Navigator", authz.ScopeSelf)
	f.seedActivity("a1", "Duplex conversion",
		authz.ActivityContact{ActivityID: "a1", ContactID: "c-u-alice", Role: authz.RoleMember})

	auth := authz.NewAuthorization("u-alice", []string{authz.ScopeSelf}, nil)
	req := httptest.NewRequest(http.MethodPut, "/v1/activities/a1/contacts/c-x", nil)
	rr := httptest.NewRecorder()

	if f.api.requireElevated(rr, req, context.Background(), auth, "a1") {
		t.Fatal("expected MEMBER to be denied")
	}
	p := decodeProblem(t, rr)
	if p.Status != http.StatusForbidden || p.Instance != "/v1/activities/a1/contacts/c-x" {
		t.Fatalf("unexpected problem payload: %+v", p)
	}
}

func TestRequireOwnAccessPassesWithoutSelfScope(t *testing.T) {
	f := newFixture(t)

	auth := authz.NewAuthorization("u-root", []string{authz.ScopeAll}, nil)
	req := httptest.NewRequest(http.MethodPatch, "/v1/activities/a1", nil)
	rr := httptest.NewRecorder()

	if !f.api.requireOwnAccess(rr, req, context.Background(), auth, authz.KindActivity, "a1") {
		t.Fatal("expected pass without self scope")
	}
}

func TestRequireOwnAccessDeniesOutsider(t *testing.T) {
	f := newFixture(t)
	f.seedUser("okta|alice", "u-alice", "Navigator", authz.ScopeSelf)
	f.seedActivity("a2", "Substation upgrade")

	auth := authz.NewAuthorization("u-alice", []string{authz.ScopeSelf}, nil)
	req := httptest.NewRequest(http.MethodPatch, "/v1/activities/a2", nil)
	rr := httptest.NewRecorder()

	if f.api.requireOwnAccess(rr, req, context.Background(), auth, authz.KindActivity, "a2") {
		t.Fatal("expected denial for caller outside the activity")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
