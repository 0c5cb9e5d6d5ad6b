package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"permitdesk.org/internal/activity"
	"permitdesk.org/internal/authz"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestSetPrimaryContactRunsInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update activity_contacts set role").
		WithArgs("act-1", authz.RolePrimary, authz.RoleAdmin, "c2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into activity_contacts").
		WithArgs("act-1", "c2", authz.RolePrimary).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SetPrimaryContact(context.Background(), "act-1", "c2"); err != nil {
		t.Fatalf("SetPrimaryContact: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetPrimaryContactRollsBackOnPromotionFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update activity_contacts set role").
		WithArgs("act-1", authz.RolePrimary, authz.RoleAdmin, "c2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into activity_contacts").
		WithArgs("act-1", "c2", authz.RolePrimary).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := store.SetPrimaryContact(context.Background(), "act-1", "c2"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveContactIgnoresPrimary(t *testing.T) {
	store, mock := newMockStore(t)

	// The delete carries a role guard; a PRIMARY row matches zero rows.
	mock.ExpectExec("delete from activity_contacts").
		WithArgs("act-1", "c1", authz.RolePrimary).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RemoveContact(context.Background(), "act-1", "c1"); !errors.Is(err, activity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateActivityLinksPrimaryInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into activities").
		WithArgs("act-1", "HOUSING", "project", "Infill development", "open").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into activity_contacts").
		WithArgs("act-1", "c-1", authz.RolePrimary).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	a := activity.Activity{ID: "act-1", Initiative: "HOUSING", Kind: "project", Title: "Infill development", Status: "open"}
	if err := store.CreateActivity(context.Background(), &a, "c-1"); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}
	if !a.CreatedAt.Equal(now) {
		t.Fatalf("expected returned timestamps, got %v", a.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateActivityRollsBackWhenLinkFails(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into activities").
		WithArgs("act-1", "HOUSING", "project", "Infill development", "open").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into activity_contacts").
		WithArgs("act-1", "c-missing", authz.RolePrimary).
		WillReturnError(errors.New("contact insert failed"))
	mock.ExpectRollback()

	a := activity.Activity{ID: "act-1", Initiative: "HOUSING", Kind: "project", Title: "Infill development", Status: "open"}
	if err := store.CreateActivity(context.Background(), &a, "c-missing"); err == nil {
		t.Fatal("expected create to fail when the PRIMARY link cannot be written")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetActivityNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, initiative, kind, title, status, created_at, updated_at").
		WithArgs("act-missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.GetActivity(context.Background(), "act-missing"); !errors.Is(err, activity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
