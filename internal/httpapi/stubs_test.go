package httpapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"permitdesk.org/internal/activity"
	"permitdesk.org/internal/authn"
	"permitdesk.org/internal/authz"
)

// fakeDirectory backs every authz resolver interface with in-memory maps so
// handler tests can exercise the full gate chain without a database.
type fakeDirectory struct {
	mu         sync.Mutex
	users      map[string]string // subject -> user id
	groups     map[string][]authz.Group
	policies   map[string][]authz.Policy // group id -> policies
	attributes map[string][]authz.Attribute
	contacts   map[string]authz.Contact // user id -> contact
	links      map[string][]authz.ActivityContact
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:      make(map[string]string),
		groups:     make(map[string][]authz.Group),
		policies:   make(map[string][]authz.Policy),
		attributes: make(map[string][]authz.Attribute),
		contacts:   make(map[string]authz.Contact),
		links:      make(map[string][]authz.ActivityContact),
	}
}

func (d *fakeDirectory) ResolveSubject(_ context.Context, subject, _ string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[subject], nil
}

func (d *fakeDirectory) GroupsForUser(_ context.Context, userID string) ([]authz.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.groups[userID], nil
}

func (d *fakeDirectory) PoliciesForGroup(_ context.Context, groupID, resource, action, _ string) ([]authz.Policy, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []authz.Policy
	for _, p := range d.policies[groupID] {
		if p.Resource == resource && p.Action == action {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *fakeDirectory) PoliciesForGroupName(ctx context.Context, groupName, resource, action string) ([]authz.Policy, error) {
	d.mu.Lock()
	var ids []string
	for _, groups := range d.groups {
		for _, g := range groups {
			if g.Name == groupName {
				ids = append(ids, g.ID)
			}
		}
	}
	d.mu.Unlock()
	var out []authz.Policy
	for _, id := range ids {
		rows, err := d.PoliciesForGroup(ctx, id, resource, action, "")
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (d *fakeDirectory) AttributesForPolicy(_ context.Context, policyID string) ([]authz.Attribute, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attributes[policyID], nil
}

func (d *fakeDirectory) ContactForUser(_ context.Context, userID string) (authz.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contacts[userID]
	if !ok {
		return authz.Contact{}, authz.ErrNotFound
	}
	return c, nil
}

func (d *fakeDirectory) ContactsForActivity(_ context.Context, activityID string) ([]authz.ActivityContact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]authz.ActivityContact, len(d.links[activityID]))
	copy(out, d.links[activityID])
	return out, nil
}

// memStore keeps activities in memory and writes contact links through to the
// shared directory so gate lookups observe mutations immediately.
type memStore struct {
	mu         sync.Mutex
	dir        *fakeDirectory
	activities map[string]activity.Activity
}

func newMemStore(dir *fakeDirectory) *memStore {
	return &memStore{dir: dir, activities: make(map[string]activity.Activity)}
}

func (s *memStore) CreateActivity(ctx context.Context, a *activity.Activity, primaryContactID string) error {
	s.mu.Lock()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.activities[a.ID] = *a
	s.mu.Unlock()
	return s.UpsertContact(ctx, a.ID, primaryContactID, authz.RolePrimary)
}

func (s *memStore) GetActivity(_ context.Context, id string) (activity.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	return a, nil
}

func (s *memStore) ListActivities(_ context.Context, initiative string, limit int) ([]activity.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []activity.Activity
	for _, a := range s.activities {
		if initiative != "" && a.Initiative != initiative {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateActivity(_ context.Context, id string, upd activity.Update) (activity.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	if upd.Title != nil {
		a.Title = *upd.Title
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	a.UpdatedAt = time.Now().UTC()
	s.activities[id] = a
	return a, nil
}

func (s *memStore) ListContacts(ctx context.Context, activityID string) ([]authz.ActivityContact, error) {
	return s.dir.ContactsForActivity(ctx, activityID)
}

func (s *memStore) UpsertContact(_ context.Context, activityID, contactID, role string) error {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	links := s.dir.links[activityID]
	for i, l := range links {
		if l.ContactID == contactID {
			links[i].Role = role
			return nil
		}
	}
	s.dir.links[activityID] = append(links, authz.ActivityContact{ActivityID: activityID, ContactID: contactID, Role: role})
	return nil
}

func (s *memStore) SetPrimaryContact(ctx context.Context, activityID, contactID string) error {
	s.dir.mu.Lock()
	links := s.dir.links[activityID]
	for i, l := range links {
		if l.Role == authz.RolePrimary && l.ContactID != contactID {
			links[i].Role = authz.RoleAdmin
		}
	}
	s.dir.mu.Unlock()
	return s.UpsertContact(ctx, activityID, contactID, authz.RolePrimary)
}

func (s *memStore) RemoveContact(_ context.Context, activityID, contactID string) error {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	links := s.dir.links[activityID]
	for i, l := range links {
		if l.ContactID == contactID {
			s.dir.links[activityID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return activity.ErrNotFound
}

type fixture struct {
	api   *API
	dir   *fakeDirectory
	store *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := newFakeDirectory()
	store := newMemStore(dir)

	builder, err := authz.NewBuilder(dir, dir, dir, dir)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	guard, err := authz.NewGuard(dir, dir, authz.NewRegistry())
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	masker, err := authz.NewMasker(dir, dir)
	if err != nil {
		t.Fatalf("NewMasker: %v", err)
	}
	svc, err := activity.NewService(store, guard, dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &fixture{
		api:   New(ReadyProbe{}, "test", builder, guard, masker, svc),
		dir:   dir,
		store: store,
	}
}

// seedUser registers a subject with one group and a contact record, granting
// the given scope attribute for every activity action.
func (f *fixture) seedUser(subject, userID, groupName, scope string) {
	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()
	groupID := "g-" + userID
	f.dir.users[subject] = userID
	f.dir.groups[userID] = []authz.Group{{ID: groupID, Initiative: "HOUSING", Name: groupName}}
	f.dir.contacts[userID] = authz.Contact{ID: "c-" + userID, UserID: userID, Name: userID}
	if groupName == authz.DeveloperGroup {
		return
	}
	for _, action := range []string{actionRead, actionCreate, actionUpdate, actionManageContacts} {
		policyID := fmt.Sprintf("p-%s-%s", userID, action)
		f.dir.policies[groupID] = append(f.dir.policies[groupID], authz.Policy{
			GroupID:    groupID,
			Initiative: "HOUSING",
			PolicyID:   policyID,
			Resource:   resourceActivity,
			Action:     action,
		})
		f.dir.attributes[policyID] = []authz.Attribute{{ID: "attr-" + policyID, Name: scope}}
	}
}

func (f *fixture) seedActivity(id, title string, links ...authz.ActivityContact) {
	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()
	now := time.Now().UTC()
	f.store.activities[id] = activity.Activity{
		ID:         id,
		Initiative: "HOUSING",
		Kind:       activity.KindProject,
		Title:      title,
		Status:     activity.StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, l := range links {
		f.dir.links[l.ActivityID] = append(f.dir.links[l.ActivityID], l)
	}
}

func setAuthSecret(t *testing.T) {
	t.Helper()
	authn.ResetSecretForTests()
	t.Setenv("PERMITDESK_AUTH_SECRET", "handler-test-secret")
	t.Cleanup(authn.ResetSecretForTests)
}

func testToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := authn.GenerateToken(subject, "okta", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}
