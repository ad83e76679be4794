package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"sessionguard/internal/lockout"
	"sessionguard/internal/platform/storage"
	"sessionguard/internal/user/domain"
)

// MemoryRepository is an in-process Repository. Safe for concurrent use.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.User
	nowF func() time.Time
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*domain.User),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// GetByID returns a copy of the user for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

// GetByUsername returns a copy of the user with username, or nil if not found.
func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

// Create stores the user with version 1.
func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	username := strings.ToLower(u.Username)
	for _, existing := range r.byID {
		if existing.Username == username {
			return ErrAlreadyExists
		}
	}
	if _, ok := r.byID[u.ID]; ok {
		return ErrAlreadyExists
	}
	stored := cloneUser(u)
	stored.Username = username
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowF()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.byID[u.ID] = stored
	u.Version = 1
	return nil
}

// UpdateSecurity performs a version-conditional update of the security state and enabled flag.
func (r *MemoryRepository) UpdateSecurity(ctx context.Context, id string, expectedVersion int64, state lockout.SecurityState, enabled bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Version != expectedVersion {
		return 0, storage.ErrConflict
	}
	u.Security = cloneState(state)
	u.Enabled = enabled
	u.Version++
	u.UpdatedAt = r.nowF()
	return u.Version, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Security = cloneState(u.Security)
	return &c
}

func cloneState(s lockout.SecurityState) lockout.SecurityState {
	if s.LockedUntil != nil {
		t := *s.LockedUntil
		s.LockedUntil = &t
	}
	return s
}
