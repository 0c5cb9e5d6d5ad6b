package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"permitdesk.org/internal/audit"
	"permitdesk.org/internal/authz"
	"permitdesk.org/internal/ids"
)

// Service owns the activity lifecycle and the activity-contact role state
// machine. All mutations run under the single-writer isolation of the
// backing store; the hand-off in particular is delegated to the store as
// one transactional scope.
type Service struct {
	store    Store
	guard    *authz.Guard
	contacts authz.ContactStore
}

func NewService(store Store, guard *authz.Guard, contacts authz.ContactStore) (*Service, error) {
	if store == nil || guard == nil || contacts == nil {
		return nil, errors.New("activity: store, guard and contact resolver are required")
	}
	return &Service{store: store, guard: guard, contacts: contacts}, nil
}

// CreateInput carries the fields for a new activity.
type CreateInput struct {
	Initiative string `json:"initiative"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
}

// Create stores a new activity and links the creator's contact as PRIMARY.
func (s *Service) Create(ctx context.Context, auth authz.Authorization, in CreateInput) (Activity, error) {
	in.Initiative = strings.TrimSpace(in.Initiative)
	in.Kind = strings.TrimSpace(strings.ToLower(in.Kind))
	in.Title = strings.TrimSpace(in.Title)
	if in.Initiative == "" || in.Title == "" {
		return Activity{}, fmt.Errorf("%w: initiative and title are required", ErrInvalidInput)
	}
	if in.Kind != KindProject && in.Kind != KindEnquiry {
		return Activity{}, fmt.Errorf("%w: unsupported kind %s", ErrInvalidInput, in.Kind)
	}

	contact, err := s.contacts.ContactForUser(ctx, auth.UserID())
	if err != nil {
		return Activity{}, fmt.Errorf("%w: creator has no contact record", ErrInvalidInput)
	}

	a := Activity{
		ID:         ids.New(),
		Initiative: in.Initiative,
		Kind:       in.Kind,
		Title:      in.Title,
		Status:     StatusOpen,
	}
	if err := s.store.CreateActivity(ctx, &a, contact.ID); err != nil {
		return Activity{}, err
	}
	_ = audit.LogEvent(ctx, "activity.create", map[string]any{
		"activity_id": a.ID,
		"initiative":  a.Initiative,
		"kind":        a.Kind,
	})
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (Activity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Activity{}, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	return s.store.GetActivity(ctx, id)
}

func (s *Service) List(ctx context.Context, initiative string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	initiative = strings.TrimSpace(initiative)
	// Stored rows carry a concrete initiative, never the aggregator code;
	// listing under it means listing across all of them.
	if initiative == authz.InitiativeAll {
		initiative = ""
	}
	return s.store.ListActivities(ctx, initiative, limit)
}

func (s *Service) Update(ctx context.Context, id string, upd Update) (Activity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Activity{}, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	if upd.Title != nil {
		trimmed := strings.TrimSpace(*upd.Title)
		if trimmed == "" {
			return Activity{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		upd.Title = &trimmed
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != StatusOpen && status != StatusClosed {
			return Activity{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	return s.store.UpdateActivity(ctx, id, upd)
}

func (s *Service) ListContacts(ctx context.Context, activityID string) ([]authz.ActivityContact, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	return s.store.ListContacts(ctx, activityID)
}

// AssignContact sets a contact's role on an activity. ADMIN and MEMBER
// assignments are plain writes (the elevated gate already ran upstream).
// PRIMARY assignment is the guarded hand-off: the caller must hold the
// universal scope or currently be the activity's PRIMARY; the incumbent is
// demoted to ADMIN before the promotion. An unauthorized attempt mutates
// nothing.
func (s *Service) AssignContact(ctx context.Context, auth authz.Authorization, activityID, contactID, role string) error {
	activityID = strings.TrimSpace(activityID)
	contactID = strings.TrimSpace(contactID)
	if activityID == "" || contactID == "" {
		return fmt.Errorf("%w: activity and contact ids are required", ErrInvalidInput)
	}
	switch role {
	case authz.RoleAdmin, authz.RoleMember:
		if err := s.store.UpsertContact(ctx, activityID, contactID, role); err != nil {
			return err
		}
	case authz.RolePrimary:
		if err := s.guard.RequireHandoff(ctx, auth, activityID); err != nil {
			_ = audit.LogEvent(ctx, "activity.handoff.denied", map[string]any{
				"activity_id": activityID,
				"contact_id":  contactID,
			})
			return err
		}
		if err := s.store.SetPrimaryContact(ctx, activityID, contactID); err != nil {
			return err
		}
		_ = audit.LogEvent(ctx, "activity.handoff", map[string]any{
			"activity_id": activityID,
			"contact_id":  contactID,
		})
		return nil
	default:
		return fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}
	_ = audit.LogEvent(ctx, "activity.contact.assign", map[string]any{
		"activity_id": activityID,
		"contact_id":  contactID,
		"role":        role,
	})
	return nil
}

// LinkRelated joins a contact from a related record (e.g. an enquiry that
// became a project) as MEMBER.
func (s *Service) LinkRelated(ctx context.Context, activityID, contactID string) error {
	activityID = strings.TrimSpace(activityID)
	contactID = strings.TrimSpace(contactID)
	if activityID == "" || contactID == "" {
		return fmt.Errorf("%w: activity and contact ids are required", ErrInvalidInput)
	}
	return s.store.UpsertContact(ctx, activityID, contactID, authz.RoleMember)
}

// UnassignContact removes a MEMBER or ADMIN link. The PRIMARY link can only
// leave through a hand-off.
func (s *Service) UnassignContact(ctx context.Context, activityID, contactID string) error {
	activityID = strings.TrimSpace(activityID)
	contactID = strings.TrimSpace(contactID)
	if activityID == "" || contactID == "" {
		return fmt.Errorf("%w: activity and contact ids are required", ErrInvalidInput)
	}
	links, err := s.store.ListContacts(ctx, activityID)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.ContactID != contactID {
			continue
		}
		if l.Role == authz.RolePrimary {
			return ErrPrimaryContact
		}
		if err := s.store.RemoveContact(ctx, activityID, contactID); err != nil {
			return err
		}
		_ = audit.LogEvent(ctx, "activity.contact.unassign", map[string]any{
			"activity_id": activityID,
			"contact_id":  contactID,
		})
		return nil
	}
	return ErrNotFound
}
