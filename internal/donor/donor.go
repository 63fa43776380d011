package donor

import (
	"context"
	"math"
	"time"

	"bloodfinder/internal/model"
)

const (
	DefaultLimit = 25
	MaxLimit     = 500
)

// Donor is a registered blood donor.
type Donor struct {
	ID           string           `json:"id"`
	FullName     string           `json:"full_name"`
	Role         model.Role       `json:"role"`
	Branch       string           `json:"branch"`
	ClassYear    *int             `json:"class_year"`
	BloodGroup   model.BloodGroup `json:"blood_group"`
	PhoneE164    string           `json:"phone_e164"`
	Availability bool             `json:"availability"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Filter selects donors for listing. Page is zero-based; a page covers
// records [Page*Limit, (Page+1)*Limit).
type Filter struct {
	BloodGroup    model.BloodGroup
	Branch        string
	AvailableOnly bool
	Page          int
	Limit         int
}

// DefaultFilter lists available donors of any group, first page.
func DefaultFilter() Filter {
	return Filter{AvailableOnly: true, Limit: DefaultLimit}
}

func (f Filter) normalized() Filter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// MaxPage is the largest page whose offset still fits in an int.
func (f Filter) MaxPage() int { return math.MaxInt / f.normalized().Limit }

// Offset is the index of the first record on the page. Pages past MaxPage clamp to
// MaxInt so they read as empty instead of wrapping.
func (f Filter) Offset() int {
	f = f.normalized()
	if f.Page > f.MaxPage() {
		return math.MaxInt
	}
	return f.Page * f.Limit
}

// Page is one slice of a donor listing together with the total match count.
type Page struct {
	Donors []Donor `json:"donors"`
	Count  int     `json:"count"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// Repository persists donors.
type Repository interface {
	Insert(ctx context.Context, d Donor) (Donor, error)
	List(ctx context.Context, f Filter) ([]Donor, int, error)
	All(ctx context.Context) ([]Donor, error)
	Count(ctx context.Context, availableOnly bool) (int, error)
	Branches(ctx context.Context, prefix string, limit int) ([]string, error)
}
