package dashboard

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"bloodfinder/internal/donor"
	"bloodfinder/internal/model"
)

// DonorSource is the part of the donor layer the dashboard reads.
type DonorSource interface {
	Count(ctx context.Context, availableOnly bool) (int, error)
	All(ctx context.Context) ([]donor.Donor, error)
}

// EmergencySource counts open emergency requests.
type EmergencySource interface {
	CountOpen(ctx context.Context) (int, error)
}

// Stats is the dashboard headline.
type Stats struct {
	TotalDonors            int `json:"total_donors"`
	AvailableDonors        int `json:"available_donors"`
	OpenEmergencies        int `json:"open_emergencies"`
	AvailabilityPercentage int `json:"availability_percentage"`
}

// Bucket is one slice of a chart.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Distribution backs the blood group and branch charts.
type Distribution struct {
	BloodGroups []Bucket `json:"blood_groups"`
	Branches    []Bucket `json:"branches"`
}

// Service computes dashboard aggregates.
type Service struct {
	donors      DonorSource
	emergencies EmergencySource
}

func NewService(donors DonorSource, emergencies EmergencySource) *Service {
	return &Service{donors: donors, emergencies: emergencies}
}

// Stats runs the three counts concurrently and derives the availability percentage.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.donors.Count(gctx, false)
		st.TotalDonors = n
		return err
	})
	g.Go(func() error {
		n, err := s.donors.Count(gctx, true)
		st.AvailableDonors = n
		return err
	})
	g.Go(func() error {
		n, err := s.emergencies.CountOpen(gctx)
		st.OpenEmergencies = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	st.AvailabilityPercentage = Percentage(st.AvailableDonors, st.TotalDonors)
	return st, nil
}

// Percentage is round(100*part/total), or 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// Distribution counts donors per blood group (non-empty groups, fixed order) and per
// branch (largest first, empty branch reported as Unknown).
func (s *Service) Distribution(ctx context.Context) (Distribution, error) {
	donors, err := s.donors.All(ctx)
	if err != nil {
		return Distribution{}, err
	}

	groups := map[model.BloodGroup]int{}
	branches := map[string]int{}
	for _, d := range donors {
		groups[d.BloodGroup]++
		b := d.Branch
		if b == "" {
			b = "Unknown"
		}
		branches[b]++
	}

	out := Distribution{BloodGroups: []Bucket{}, Branches: []Bucket{}}
	for _, g := range model.BloodGroups {
		if n := groups[g]; n > 0 {
			out.BloodGroups = append(out.BloodGroups, Bucket{Name: string(g), Value: n})
		}
	}
	for name, n := range branches {
		out.Branches = append(out.Branches, Bucket{Name: name, Value: n})
	}
	sort.Slice(out.Branches, func(i, j int) bool {
		if out.Branches[i].Value != out.Branches[j].Value {
			return out.Branches[i].Value > out.Branches[j].Value
		}
		return out.Branches[i].Name < out.Branches[j].Name
	})
	return out, nil
}
