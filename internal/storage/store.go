// Package storage provides interfaces and in-memory implementations for the
// external collaborators of the authentication service: the nonce store and
// the user directory lookup.
package storage

import (
	"context"
	"errors"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// NonceStore manages the challenge lifecycle for authentication. One nonce is
// active per subject; Upsert overwrites any prior value, which permanently
// invalidates it.
type NonceStore interface {
	// Upsert stores the nonce keyed by its subject, replacing a prior one.
	Upsert(ctx context.Context, nonce model.Nonce) error
	// Get retrieves the pending nonce for subjectID. Returns ErrNotFound
	// when none is pending.
	Get(ctx context.Context, subjectID string) (model.Nonce, error)
	// Delete removes the nonce for subjectID so a replay fails. Deleting an
	// absent nonce is a no-op.
	Delete(ctx context.Context, subjectID string) error
}

// UserStore is the narrow lookup interface over the user directory. The
// directory itself is maintained elsewhere; authentication only reads it as
// the primary source of a subject's public key.
type UserStore interface {
	// GetUserByID retrieves the directory record for id. Returns ErrNotFound
	// when the subject is unknown.
	GetUserByID(ctx context.Context, id string) (model.User, error)
	// PutUser stores or overwrites the record keyed by its id.
	PutUser(ctx context.Context, user model.User) error
}

// Store aggregates the persistence capabilities the authentication service
// requires.
type Store interface {
	NonceStore
	UserStore
}
