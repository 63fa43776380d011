package emergency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bloodfinder/internal/model"
)

// MemoryRepository keeps requests in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Request
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: map[string]Request{}, now: time.Now}
}

func (r *MemoryRepository) Insert(_ context.Context, req Request) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.StatusOpen
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.now().UTC()
	}
	r.requests[req.ID] = req
	return req, nil
}

func (r *MemoryRepository) ListOpen(_ context.Context) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for _, req := range r.requests {
		if req.Status == model.StatusOpen {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return ErrNoRows
	}
	req.Status = status
	r.requests[id] = req
	return nil
}

func (r *MemoryRepository) CountOpen(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, req := range r.requests {
		if req.Status == model.StatusOpen {
			n++
		}
	}
	return n, nil
}
