package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"bloodfinder/internal/apperr"
)

// Registry holds live conversations in memory, keyed by id. Conversations idle for
// longer than the TTL are dropped when a new one is created.
type Registry struct {
	newController func() *Controller
	ttl           time.Duration
	now           func() time.Time

	mu    sync.Mutex
	convs map[string]*Controller
}

// NewRegistry creates a registry. ttl <= 0 keeps conversations forever.
func NewRegistry(asker Asker, ttl time.Duration, opts ...Option) *Registry {
	return &Registry{
		newController: func() *Controller { return NewController(asker, opts...) },
		ttl:           ttl,
		now:           time.Now,
		convs:         map[string]*Controller{},
	}
}

// Create starts a conversation and returns its id.
func (r *Registry) Create() (string, *Controller) {
	ctl := r.newController()
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	r.convs[id] = ctl
	return id, ctl
}

// Get returns the conversation with id.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctl, ok := r.convs[id]
	if !ok {
		return nil, apperr.NotFound("conversation %q not found", id)
	}
	return ctl, nil
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

func (r *Registry) pruneLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for id, ctl := range r.convs {
		if ctl.lastTouched().Before(cutoff) {
			delete(r.convs, id)
		}
	}
}
