package authz

import (
	"context"
	"database/sql"
	"errors"
)

var (
	_ Directory            = (*PGStore)(nil)
	_ GroupStore           = (*PGStore)(nil)
	_ PolicyStore          = (*PGStore)(nil)
	_ AttributeStore       = (*PGStore)(nil)
	_ ContactStore         = (*PGStore)(nil)
	_ ActivityContactStore = (*PGStore)(nil)
)

// PGStore implements the resolver interfaces over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ResolveSubject(ctx context.Context, subject, identityProvider string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		select id from users
		where subject = $1 and ($2 = '' or identity_provider = $2)
	`, subject, identityProvider)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id, nil
}

func (s *PGStore) GroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		select g.id, g.initiative, g.name, g.label
		from groups g
		join group_members m on m.group_id = g.id
		where m.user_id = $1
		order by g.initiative, g.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Initiative, &g.Name, &g.Label); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *PGStore) PoliciesForGroup(ctx context.Context, groupID, resource, action, initiative string) ([]Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		select gp.group_id, g.initiative, p.id, p.resource, p.action
		from group_policies gp
		join groups g on g.id = gp.group_id
		join policies p on p.id = gp.policy_id
		where gp.group_id = $1 and p.resource = $2 and p.action = $3
		  and ($4 = '' or g.initiative = $4)
	`, groupID, resource, action, initiative)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (s *PGStore) PoliciesForGroupName(ctx context.Context, groupName, resource, action string) ([]Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct gp.group_id, g.initiative, p.id, p.resource, p.action
		from group_policies gp
		join groups g on g.id = gp.group_id
		join policies p on p.id = gp.policy_id
		where g.name = $1 and p.resource = $2 and p.action = $3
	`, groupName, resource, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows *sql.Rows) ([]Policy, error) {
	var policies []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.GroupID, &p.Initiative, &p.PolicyID, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// AttributesForPolicy returns one Attribute per attribute row, folding the
// optional restricting groups from the left join.
func (s *PGStore) AttributesForPolicy(ctx context.Context, policyID string) ([]Attribute, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.name, ag.group_id
		from attributes a
		join policy_attributes pa on pa.attribute_id = a.id
		left join attribute_groups ag on ag.attribute_id = a.id
		where pa.policy_id = $1
		order by a.id
	`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		attrs   []Attribute
		current *Attribute
	)
	for rows.Next() {
		var (
			id, name string
			groupID  sql.NullString
		)
		if err := rows.Scan(&id, &name, &groupID); err != nil {
			return nil, err
		}
		if current == nil || current.ID != id {
			attrs = append(attrs, Attribute{ID: id, Name: name})
			current = &attrs[len(attrs)-1]
		}
		if groupID.Valid {
			current.GroupIDs = append(current.GroupIDs, groupID.String)
		}
	}
	return attrs, rows.Err()
}

func (s *PGStore) ContactForUser(ctx context.Context, userID string) (Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, full_name, email from contacts where user_id = $1
	`, userID)
	var c Contact
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	return c, nil
}

func (s *PGStore) ContactsForActivity(ctx context.Context, activityID string) ([]ActivityContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		select activity_id, contact_id, role
		from activity_contacts
		where activity_id = $1
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []ActivityContact
	for rows.Next() {
		var l ActivityContact
		if err := rows.Scan(&l.ActivityID, &l.ContactID, &l.Role); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Per-kind owning-activity resolvers -----------------------------------------

type documentResolver struct{ db *sql.DB }

func (r documentResolver) OwningActivity(ctx context.Context, id string) (string, error) {
	return scanActivityID(r.db.QueryRowContext(ctx,
		`select activity_id from documents where id = $1`, id))
}

type permitResolver struct{ db *sql.DB }

func (r permitResolver) OwningActivity(ctx context.Context, id string) (string, error) {
	return scanActivityID(r.db.QueryRowContext(ctx,
		`select activity_id from permits where id = $1`, id))
}

// activityKindResolver serves resource kinds that are activities themselves
// (projects, enquiries); it verifies the row exists under the expected kind.
type activityKindResolver struct {
	db   *sql.DB
	kind string
}

func (r activityKindResolver) OwningActivity(ctx context.Context, id string) (string, error) {
	return scanActivityID(r.db.QueryRowContext(ctx,
		`select id from activities where id = $1 and kind = $2`, id, r.kind))
}

func scanActivityID(row *sql.Row) (string, error) {
	var activityID string
	if err := row.Scan(&activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return activityID, nil
}

// NewPGRegistry wires the owning-activity resolver for every resource kind
// stored in PostgreSQL.
func NewPGRegistry(db *sql.DB) *Registry {
	reg := NewRegistry()
	reg.Register("project", activityKindResolver{db: db, kind: "project"})
	reg.Register("enquiry", activityKindResolver{db: db, kind: "enquiry"})
	reg.Register("document", documentResolver{db: db})
	reg.Register("permit", permitResolver{db: db})
	return reg
}
