package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"permitdesk.org/internal/activity"
	"permitdesk.org/internal/authz"
)

const defaultListLimit = 50

type updateActivityRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

type assignContactRequest struct {
	Role string `json:"role"`
}

// contactItem adapts an activity contact link for response masking.
type contactItem struct {
	authz.ActivityContact
}

func (c contactItem) OwningActivityID() string { return c.ActivityID }

func (a *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listActivities(w, r)
	case http.MethodPost:
		a.createActivity(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listActivities(w http.ResponseWriter, r *http.Request) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionRead)
	if !ok {
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.activities.List(ctx, r.Header.Get(initiativeHeader), limit)
	if err != nil {
		handleActivityError(w, r, err)
		return
	}
	items = authz.FilterOwned(ctx, a.masker, auth, items)
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": items,
	})
}

func (a *API) createActivity(w http.ResponseWriter, r *http.Request) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionCreate)
	if !ok {
		return
	}
	var in activity.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.activities.Create(ctx, auth, in)
	if err != nil {
		handleActivityError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/activities/%s", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleActivityScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	activityID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleActivity(w, r, activityID)
	case len(parts) == 2 && parts[1] == "contacts":
		a.handleActivityContacts(w, r, activityID)
	case len(parts) == 3 && parts[1] == "contacts":
		a.handleActivityContact(w, r, activityID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	switch r.Method {
	case http.MethodGet:
		a.getActivity(w, r, activityID)
	case http.MethodPatch:
		a.updateActivity(w, r, activityID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionRead)
	if !ok {
		return
	}
	found, err := a.activities.Get(ctx, activityID)
	if err != nil {
		handleActivityError(w, r, err)
		return
	}
	// Reads degrade rather than reject: a caller outside the activity
	// receives an empty body, not a 403.
	masked, visible := authz.MaskOwned(ctx, a.masker, auth, found)
	if !visible {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, masked)
}

func (a *API) updateActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionUpdate)
	if !ok {
		return
	}
	if !a.requireOwnAccess(w, r, ctx, auth, authz.KindActivity, activityID) {
		return
	}
	var req updateActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.activities.Update(ctx, activityID, activity.Update{
		Title:  req.Title,
		Status: req.Status,
	})
	if err != nil {
		handleActivityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleActivityContacts(w http.ResponseWriter, r *http.Request, activityID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionRead)
	if !ok {
		return
	}
	links, err := a.activities.ListContacts(ctx, activityID)
	if err != nil {
		handleActivityError(w, r, err)
		return
	}
	items := make([]contactItem, 0, len(links))
	for _, link := range links {
		items = append(items, contactItem{link})
	}
	items = authz.FilterOwned(ctx, a.masker, auth, items)
	writeJSON(w, http.StatusOK, map[string]any{
		"contacts": items,
	})
}

func (a *API) handleActivityContact(w http.ResponseWriter, r *http.Request, activityID, contactID string) {
	switch r.Method {
	case http.MethodPut:
		a.assignContact(w, r, activityID, contactID)
	case http.MethodDelete:
		a.unassignContact(w, r, activityID, contactID)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) assignContact(w http.ResponseWriter, r *http.Request, activityID, contactID string) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionManageContacts)
	if !ok {
		return
	}
	if !a.requireElevated(w, r, ctx, auth, activityID) {
		return
	}
	var req assignContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.activities.AssignContact(ctx, auth, activityID, contactID, req.Role); err != nil {
		handleActivityError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) unassignContact(w http.ResponseWriter, r *http.Request, activityID, contactID string) {
	ctx, auth, ok := a.authorize(w, r, resourceActivity, actionManageContacts)
	if !ok {
		return
	}
	if !a.requireElevated(w, r, ctx, auth, activityID) {
		return
	}
	if err := a.activities.UnassignContact(ctx, activityID, contactID); err != nil {
		handleActivityError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
