package emergency

import (
	"context"
	"time"

	"bloodfinder/internal/model"
)

// Request is an open call for blood of one group.
type Request struct {
	ID            string           `json:"id"`
	RequesterName *string          `json:"requester_name"`
	BloodGroup    model.BloodGroup `json:"blood_group"`
	UnitsNeeded   int              `json:"units_needed"`
	Hospital      *string          `json:"hospital"`
	Location      *string          `json:"location"`
	ContactPhone  *string          `json:"contact_phone"`
	NeedBy        *time.Time       `json:"need_by"`
	Status        model.Status     `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Repository persists emergency requests.
type Repository interface {
	Insert(ctx context.Context, r Request) (Request, error)
	ListOpen(ctx context.Context) ([]Request, error)
	// UpdateStatus reports ErrNoRows when no request has the id.
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	CountOpen(ctx context.Context) (int, error)
}

// Alerter broadcasts a newly created request.
type Alerter interface {
	Alert(ctx context.Context, r Request) error
}
