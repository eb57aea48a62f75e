package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

type revision struct {
	doc       []byte // marshaled document, copied on resolve
	messageID string
}

type memory struct {
	mu   sync.RWMutex
	dids map[string]revision
}

// NewMemory returns a concurrency-safe in-memory Client. It keeps only the
// latest revision per DID and assigns a fresh message id on every publish.
// Useful for tests, demos, or as a default ephemeral backend.
func NewMemory() Client {
	return &memory{dids: make(map[string]revision)}
}

// Resolve returns the latest published document for did. Documents are
// round-tripped through JSON so callers never alias ledger state.
func (m *memory) Resolve(ctx context.Context, did string) (model.Document, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rev, ok := m.dids[did]
	if !ok {
		return model.Document{}, "", fmt.Errorf("%w: %s", ErrNotFound, did)
	}
	var doc model.Document
	if err := json.Unmarshal(rev.doc, &doc); err != nil {
		return model.Document{}, "", fmt.Errorf("%w: corrupt revision for %s: %v", ErrUnavailable, did, err)
	}
	return doc, rev.messageID, nil
}

// Publish stores the document as the latest revision of its DID. The ledger
// is last-writer-wins: no compare-and-swap against the previous pointer, so
// concurrent publishers can supersede each other (see the registry docs).
func (m *memory) Publish(ctx context.Context, doc model.Document) (string, error) {
	if doc.ID == "" {
		return "", fmt.Errorf("%w: document has no id", ErrUnavailable)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	messageID := uuid.NewString()
	m.mu.Lock()
	m.dids[doc.ID] = revision{doc: raw, messageID: messageID}
	m.mu.Unlock()
	return messageID, nil
}
