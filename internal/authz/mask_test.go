package authz

import (
	"context"
	"errors"
	"testing"
)

type ownedItem struct {
	ID         string
	ActivityID string
}

func (o ownedItem) OwningActivityID() string { return o.ActivityID }

func newTestMasker(t *testing.T, contacts ContactStore, links ActivityContactStore) *Masker {
	t.Helper()
	m, err := NewMasker(contacts, links)
	if err != nil {
		t.Fatalf("NewMasker: %v", err)
	}
	return m
}

func linksByActivity(byActivity map[string][]ActivityContact) *stubActivityContacts {
	return &stubActivityContacts{listFn: func(_ context.Context, activityID string) ([]ActivityContact, error) {
		return byActivity[activityID], nil
	}}
}

func TestFilterOwnedWithoutSelfScopePassesThrough(t *testing.T) {
	contacts := &stubContacts{contactFn: func(context.Context, string) (Contact, error) {
		return Contact{}, errors.New("store must not be touched")
	}}
	m := newTestMasker(t, contacts, activityWith())

	items := []ownedItem{{ID: "1", ActivityID: "a1"}, {ID: "2", ActivityID: "a2"}}
	got := FilterOwned(context.Background(), m, authWith("u1", ScopeAll), items)
	if len(got) != 2 {
		t.Fatalf("expected pass-through, got %d items", len(got))
	}
	if contacts.calls != 0 {
		t.Fatalf("mask must not resolve contacts without the own-records token")
	}
}

func TestFilterOwnedKeepsCallerActivities(t *testing.T) {
	links := linksByActivity(map[string][]ActivityContact{
		"a1": {{ActivityID: "a1", ContactID: "c1", Role: RoleMember}},
		"a2": {{ActivityID: "a2", ContactID: "c-other", Role: RolePrimary}},
	})
	m := newTestMasker(t, contactOf("u1", "c1"), links)

	items := []ownedItem{
		{ID: "1", ActivityID: "a1"},
		{ID: "2", ActivityID: "a2"},
		{ID: "3", ActivityID: "a1"},
	}
	got := FilterOwned(context.Background(), m, authWith("u1", ScopeSelf), items)
	if len(got) != 2 {
		t.Fatalf("expected 2 visible items, got %d", len(got))
	}
	for _, item := range got {
		if item.ActivityID != "a1" {
			t.Fatalf("unexpected item %+v", item)
		}
	}
}

func TestFilterOwnedResolvesEachActivityOnce(t *testing.T) {
	links := linksByActivity(map[string][]ActivityContact{
		"a1": {{ActivityID: "a1", ContactID: "c1", Role: RoleMember}},
	})
	m := newTestMasker(t, contactOf("u1", "c1"), links)

	items := []ownedItem{{ActivityID: "a1"}, {ActivityID: "a1"}, {ActivityID: "a1"}}
	FilterOwned(context.Background(), m, authWith("u1", ScopeSelf), items)
	if links.calls != 1 {
		t.Fatalf("expected a single contact-list lookup, got %d", links.calls)
	}
}

func TestFilterOwnedUnresolvableCallerSeesNothing(t *testing.T) {
	contacts := &stubContacts{contactFn: func(context.Context, string) (Contact, error) {
		return Contact{}, errors.New("directory down")
	}}
	m := newTestMasker(t, contacts, activityWith())

	got := FilterOwned(context.Background(), m, authWith("u1", ScopeSelf), []ownedItem{{ActivityID: "a1"}})
	if len(got) != 0 {
		t.Fatalf("lookup failure must mask everything, got %d items", len(got))
	}
}

func TestMaskOwnedSingular(t *testing.T) {
	links := linksByActivity(map[string][]ActivityContact{
		"a1": {{ActivityID: "a1", ContactID: "c1", Role: RoleMember}},
	})
	m := newTestMasker(t, contactOf("u1", "c1"), links)
	auth := authWith("u1", ScopeSelf)

	if _, ok := MaskOwned(context.Background(), m, auth, ownedItem{ID: "1", ActivityID: "a1"}); !ok {
		t.Fatalf("caller-owned item must stay visible")
	}
	masked, ok := MaskOwned(context.Background(), m, auth, ownedItem{ID: "2", ActivityID: "a2"})
	if ok {
		t.Fatalf("foreign item must be masked")
	}
	if masked != (ownedItem{}) {
		t.Fatalf("masked item must be zeroed, got %+v", masked)
	}
}
