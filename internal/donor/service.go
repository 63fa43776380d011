package donor

import (
	"context"
	"strings"

	"bloodfinder/internal/apperr"
	"bloodfinder/internal/model"
	"bloodfinder/internal/phone"
)

const suggestionLimit = 5

// Registration is the donor sign-up form.
type Registration struct {
	FullName     string `json:"full_name" binding:"required"`
	Role         string `json:"role" binding:"required"`
	Branch       string `json:"branch" binding:"required"`
	ClassYear    *int   `json:"class_year"`
	BloodGroup   string `json:"blood_group" binding:"required"`
	Phone        string `json:"phone_e164" binding:"required"`
	Availability *bool  `json:"availability"`
}

// Service validates donor input and queries the repository.
type Service struct {
	repo        Repository
	countryCode string
}

// NewService creates a service. countryCode is prepended to phone numbers that lack it.
func NewService(repo Repository, countryCode string) *Service {
	return &Service{repo: repo, countryCode: countryCode}
}

// Register validates the form, normalizes the phone number and stores the donor.
func (s *Service) Register(ctx context.Context, reg Registration) (Donor, error) {
	d, err := s.validate(reg)
	if err != nil {
		return Donor{}, err
	}
	saved, err := s.repo.Insert(ctx, d)
	if err != nil {
		return Donor{}, apperr.Transport(err, "register donor")
	}
	return saved, nil
}

func (s *Service) validate(reg Registration) (Donor, error) {
	name := strings.TrimSpace(reg.FullName)
	if name == "" {
		return Donor{}, apperr.Validation("full name is required")
	}
	role, err := model.ParseRole(reg.Role)
	if err != nil {
		return Donor{}, err
	}
	branch := strings.TrimSpace(reg.Branch)
	if branch == "" {
		return Donor{}, apperr.Validation("branch is required")
	}
	group, err := model.ParseBloodGroup(reg.BloodGroup)
	if err != nil {
		return Donor{}, err
	}
	number := phone.Normalize(reg.Phone, s.countryCode)
	if number == "" {
		return Donor{}, apperr.Validation("phone number is required")
	}
	if !phone.Shaped(number) {
		return Donor{}, apperr.Validation("phone number must have %d to %d digits", phone.MinDigits, phone.MaxDigits)
	}

	var classYear *int
	if role == model.Student && reg.ClassYear != nil {
		if *reg.ClassYear < 1 || *reg.ClassYear > 5 {
			return Donor{}, apperr.Validation("class year must be between 1 and 5")
		}
		y := *reg.ClassYear
		classYear = &y
	}
	available := true
	if reg.Availability != nil {
		available = *reg.Availability
	}

	return Donor{
		FullName:     name,
		Role:         role,
		Branch:       branch,
		ClassYear:    classYear,
		BloodGroup:   group,
		PhoneE164:    number,
		Availability: available,
	}, nil
}

// List returns the requested page of donors matching f.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()
	if f.Page > f.MaxPage() {
		return Page{}, apperr.Validation("page must be at most %d for limit %d", f.MaxPage(), f.Limit)
	}
	f.Branch = strings.TrimSpace(f.Branch)
	donors, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, apperr.Transport(err, "list donors")
	}
	if donors == nil {
		donors = []Donor{}
	}
	return Page{Donors: donors, Count: total, Page: f.Page, Limit: f.Limit}, nil
}

// BranchSuggestions returns up to five branch names for autocomplete. Prefixes shorter
// than two characters return nothing.
func (s *Service) BranchSuggestions(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) < 2 {
		return []string{}, nil
	}
	branches, err := s.repo.Branches(ctx, prefix, suggestionLimit)
	if err != nil {
		return nil, apperr.Transport(err, "branch suggestions")
	}
	if branches == nil {
		branches = []string{}
	}
	return branches, nil
}

// All returns every donor, for exports and aggregate views.
func (s *Service) All(ctx context.Context) ([]Donor, error) {
	donors, err := s.repo.All(ctx)
	if err != nil {
		return nil, apperr.Transport(err, "fetch donors")
	}
	return donors, nil
}

// Count returns the number of donors, optionally only those available.
func (s *Service) Count(ctx context.Context, availableOnly bool) (int, error) {
	n, err := s.repo.Count(ctx, availableOnly)
	if err != nil {
		return 0, apperr.Transport(err, "count donors")
	}
	return n, nil
}
