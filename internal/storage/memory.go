package storage

import (
	"context"
	"sync"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

type memory struct {
	mu     sync.RWMutex
	nonces map[string]model.Nonce
	users  map[string]model.User
}

// NewMemory returns a concurrency-safe in-memory implementation of Store.
// Useful for tests, demos, or as a default ephemeral backend.
func NewMemory() Store {
	return &memory{
		nonces: make(map[string]model.Nonce),
		users:  make(map[string]model.User),
	}
}

// Upsert stores or overwrites the nonce keyed by its subject. Last writer
// wins; only the most recent issuance is honorable.
func (m *memory) Upsert(ctx context.Context, nonce model.Nonce) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[nonce.SubjectID] = nonce
	return nil
}

// Get retrieves the pending nonce for subjectID. Returns ErrNotFound when no
// nonce is pending.
func (m *memory) Get(ctx context.Context, subjectID string) (model.Nonce, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nonce, ok := m.nonces[subjectID]
	if !ok {
		return model.Nonce{}, ErrNotFound
	}
	return nonce, nil
}

// Delete removes the nonce for subjectID.
func (m *memory) Delete(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nonces, subjectID)
	return nil
}

// GetUserByID retrieves a directory record. Returns ErrNotFound when the
// subject is unknown.
func (m *memory) GetUserByID(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

// PutUser stores or overwrites the record keyed by its id.
func (m *memory) PutUser(ctx context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}
