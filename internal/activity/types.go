package activity

import (
	"errors"
	"time"
)

// Activity kinds tracked by the intake process.
const (
	KindProject = "project"
	KindEnquiry = "enquiry"
)

// Activity statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Activity is the tracked unit of work: a project or enquiry to which
// contacts, documents and permits attach.
type Activity struct {
	ID         string    `json:"id"`
	Initiative string    `json:"initiative"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OwningActivityID implements authz.Owned so activity payloads can pass
// through the response mask.
func (a Activity) OwningActivityID() string { return a.ID }

var (
	ErrNotFound     = errors.New("activity: not found")
	ErrInvalidInput = errors.New("activity: invalid input")
	ErrConflict     = errors.New("activity: resource conflict")

	// ErrPrimaryContact rejects direct removal of the PRIMARY contact; the
	// role must be handed off first.
	ErrPrimaryContact = errors.New("activity: primary contact cannot be removed directly")
)
