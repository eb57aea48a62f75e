package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/ledger"
	"github.com/trustmesh/ssi-bridge/internal/model"
)

// Manager maintains the revocation bitmap services of issuer documents. The
// tag is the configured prefix used to derive service ids deterministically
// as "{did}#{tag}-{bitmapIndex}".
type Manager struct {
	registry *identity.Registry
	tag      string
	logger   *slog.Logger
}

// NewManager creates a Manager over the given registry. tag must be
// non-empty; the default configuration uses "revocation".
func NewManager(registry *identity.Registry, tag string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, tag: tag, logger: logger}
}

// ServiceID derives the deterministic service id for an issuer's bitmap.
func (m *Manager) ServiceID(didID string, bitmapIndex uint32) string {
	return fmt.Sprintf("%s#%s-%d", didID, m.tag, bitmapIndex)
}

// EnsureBitmapService guarantees that a revocation bitmap service with the
// derived id exists on the identity's current document. Idempotent: when the
// service is already present it is returned unchanged; otherwise an empty
// bitmap is appended as a service entry and the updated document is
// republished, chained to the identity's current version pointer. The
// identity's document and pointer are refreshed in place on success.
func (m *Manager) EnsureBitmapService(ctx context.Context, ident *model.Identity, bitmapIndex uint32) (model.ServiceEntry, error) {
	doc, pointer, err := m.registry.Resolve(ctx, ident.ID)
	if err != nil {
		return model.ServiceEntry{}, fmt.Errorf("ensure bitmap for %s: %w", ident.ID, err)
	}

	serviceID := m.ServiceID(ident.ID, bitmapIndex)
	if entry, ok := doc.FindService(serviceID); ok {
		ident.Document = doc
		ident.VersionPointer = pointer
		return entry, nil
	}

	endpoint, err := NewBitmap().Encode()
	if err != nil {
		return model.ServiceEntry{}, err
	}
	entry := model.ServiceEntry{
		ID:       serviceID,
		Type:     model.RevocationBitmapType,
		Endpoint: endpoint,
	}
	doc.Services = append(doc.Services, entry)

	newPointer, err := m.registry.Publish(ctx, doc, ident.Key, pointer)
	if err != nil {
		return model.ServiceEntry{}, fmt.Errorf("ensure bitmap for %s: %w", ident.ID, err)
	}
	ident.Document = doc
	ident.VersionPointer = newPointer
	m.logger.Info("revocation bitmap created", "did", ident.ID, "service", serviceID)
	return entry, nil
}

// Revoke sets the bit at position in the identity's bitmap service and
// republishes the document. Setting an already-set bit is a no-op and skips
// the republish. Fails with ledger.ErrNotFound when the bitmap service does
// not exist on the current document.
func (m *Manager) Revoke(ctx context.Context, ident *model.Identity, bitmapIndex uint32, position uint32) error {
	doc, pointer, err := m.registry.Resolve(ctx, ident.ID)
	if err != nil {
		return fmt.Errorf("revoke %d on %s: %w", position, ident.ID, err)
	}

	serviceID := m.ServiceID(ident.ID, bitmapIndex)
	entry, ok := doc.FindService(serviceID)
	if !ok {
		return fmt.Errorf("revoke %d on %s: bitmap service %s: %w", position, ident.ID, serviceID, ledger.ErrNotFound)
	}

	bitmap, err := DecodeBitmap(entry.Endpoint)
	if err != nil {
		return fmt.Errorf("revoke %d on %s: %w", position, ident.ID, err)
	}
	if bitmap.IsSet(position) {
		ident.Document = doc
		ident.VersionPointer = pointer
		return nil
	}
	bitmap.Set(position)

	endpoint, err := bitmap.Encode()
	if err != nil {
		return fmt.Errorf("revoke %d on %s: %w", position, ident.ID, err)
	}
	for i := range doc.Services {
		if doc.Services[i].ID == serviceID {
			doc.Services[i].Endpoint = endpoint
		}
	}

	newPointer, err := m.registry.Publish(ctx, doc, ident.Key, pointer)
	if err != nil {
		return fmt.Errorf("revoke %d on %s: %w", position, ident.ID, err)
	}
	ident.Document = doc
	ident.VersionPointer = newPointer
	m.logger.Info("credential revoked", "did", ident.ID, "service", serviceID, "position", position)
	return nil
}

// IsRevoked resolves the issuer's current document and reads the bit at
// position in the named bitmap service. A missing document or service is
// reported as not revoked rather than as an error: verification stays
// non-fatal when no revocation information exists. A bitmap that exists but
// cannot be decoded is still an error.
func (m *Manager) IsRevoked(ctx context.Context, issuerDID, bitmapServiceID string, position uint32) (bool, error) {
	doc, _, err := m.registry.Resolve(ctx, issuerDID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revocation check for %s: %w", issuerDID, err)
	}
	entry, ok := doc.FindService(bitmapServiceID)
	if !ok {
		return false, nil
	}
	bitmap, err := DecodeBitmap(entry.Endpoint)
	if err != nil {
		return false, fmt.Errorf("revocation check for %s: %w", issuerDID, err)
	}
	return bitmap.IsSet(position), nil
}
