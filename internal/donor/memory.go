package donor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps donors in process memory. Used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	donors []Donor
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Insert(_ context.Context, d Donor) (Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now().UTC()
	}
	r.donors = append(r.donors, d)
	return d, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Donor, int, error) {
	f = f.normalized()
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Donor
	for _, d := range r.sorted() {
		if matches(d, f) {
			matched = append(matched, d)
		}
	}
	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := total
	if total-start > f.Limit {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) All(_ context.Context) ([]Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(), nil
}

func (r *MemoryRepository) Count(_ context.Context, availableOnly bool) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !availableOnly {
		return len(r.donors), nil
	}
	n := 0
	for _, d := range r.donors {
		if d.Availability {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Branches(_ context.Context, prefix string, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, d := range r.donors {
		if d.Branch == "" || !hasPrefixFold(d.Branch, prefix) {
			continue
		}
		if _, ok := seen[d.Branch]; ok {
			continue
		}
		seen[d.Branch] = struct{}{}
		out = append(out, d.Branch)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sorted returns a copy ordered like the Postgres repository: created_at, then id.
func (r *MemoryRepository) sorted() []Donor {
	out := make([]Donor, len(r.donors))
	copy(out, r.donors)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(d Donor, f Filter) bool {
	if f.AvailableOnly && !d.Availability {
		return false
	}
	if f.BloodGroup != "" && d.BloodGroup != f.BloodGroup {
		return false
	}
	if f.Branch != "" && !hasPrefixFold(d.Branch, f.Branch) {
		return false
	}
	return true
}

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}
