package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"permitdesk.org/internal/activity"
	"permitdesk.org/internal/authz"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements activity.Store over PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ activity.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// CreateActivity inserts the activity row and its PRIMARY contact link in
// one transaction, so a failure between the two writes never leaves an
// activity without contacts.
func (s *Store) CreateActivity(ctx context.Context, a *activity.Activity, primaryContactID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into activities(id, initiative, kind, title, status)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, a.ID, a.Initiative, a.Kind, a.Title, a.Status)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return activity.ErrConflict
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into activity_contacts(activity_id, contact_id, role)
		values ($1, $2, $3)
	`, a.ID, primaryContactID, authz.RolePrimary); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return activity.ErrNotFound
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, initiative, kind, title, status, created_at, updated_at
		from activities where id = $1
	`, id)
	var a activity.Activity
	if err := row.Scan(&a.ID, &a.Initiative, &a.Kind, &a.Title, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return activity.Activity{}, activity.ErrNotFound
		}
		return activity.Activity{}, err
	}
	return a, nil
}

func (s *Store) ListActivities(ctx context.Context, initiative string, limit int) ([]activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, initiative, kind, title, status, created_at, updated_at
		from activities
		where ($1 = '' or initiative = $1)
		order by created_at desc
		limit $2
	`, initiative, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []activity.Activity
	for rows.Next() {
		var a activity.Activity
		if err := rows.Scan(&a.ID, &a.Initiative, &a.Kind, &a.Title, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) UpdateActivity(ctx context.Context, id string, upd activity.Update) (activity.Activity, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Status != nil {
		args = append(args, *upd.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		update activities set %s
		where id = $1
		returning id, initiative, kind, title, status, created_at, updated_at
	`, strings.Join(sets, ", ")), args...)
	var a activity.Activity
	if err := row.Scan(&a.ID, &a.Initiative, &a.Kind, &a.Title, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return activity.Activity{}, activity.ErrNotFound
		}
		return activity.Activity{}, err
	}
	return a, nil
}

func (s *Store) ListContacts(ctx context.Context, activityID string) ([]authz.ActivityContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		select activity_id, contact_id, role
		from activity_contacts
		where activity_id = $1
		order by role, contact_id
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []authz.ActivityContact
	for rows.Next() {
		var l authz.ActivityContact
		if err := rows.Scan(&l.ActivityID, &l.ContactID, &l.Role); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) UpsertContact(ctx context.Context, activityID, contactID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into activity_contacts(activity_id, contact_id, role)
		values ($1, $2, $3)
		on conflict (activity_id, contact_id) do update set role = excluded.role
	`, activityID, contactID, role)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			// The partial unique index on PRIMARY fired.
			return activity.ErrConflict
		case pgErrForeignKeyViolation:
			return activity.ErrNotFound
		}
	}
	return err
}

// SetPrimaryContact performs the hand-off as one transaction: demote the
// incumbent PRIMARY to ADMIN, then promote the new contact. The order
// matters; the partial unique index would reject the promotion first.
func (s *Store) SetPrimaryContact(ctx context.Context, activityID, contactID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		update activity_contacts set role = $3
		where activity_id = $1 and role = $2 and contact_id <> $4
	`, activityID, authz.RolePrimary, authz.RoleAdmin, contactID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into activity_contacts(activity_id, contact_id, role)
		values ($1, $2, $3)
		on conflict (activity_id, contact_id) do update set role = excluded.role
	`, activityID, contactID, authz.RolePrimary); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return activity.ErrNotFound
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) RemoveContact(ctx context.Context, activityID, contactID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from activity_contacts
		where activity_id = $1 and contact_id = $2 and role <> $3
	`, activityID, contactID, authz.RolePrimary)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return activity.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
