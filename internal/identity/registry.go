// Package identity resolves and publishes identity documents against the
// ledger abstraction and assembles new identities from fresh key material.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"

	"github.com/trustmesh/ssi-bridge/internal/did"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/ledger"
	"github.com/trustmesh/ssi-bridge/internal/model"
)

// ProofType names the signature suite used for document and credential
// proofs: ed25519 over the sha256 digest of the JSON form without the proof.
const ProofType = "JcsEd25519Signature2020"

const signingMethodType = "Ed25519VerificationKey2020"

// Registry publishes and resolves identity documents. It holds the ledger
// client handle and is constructed once at process startup, then passed by
// reference to all dependents.
type Registry struct {
	client ledger.Client
	logger *slog.Logger
	clock  func() time.Time
}

// NewRegistry creates a Registry using the supplied ledger client.
func NewRegistry(client ledger.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client: client,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Resolve fetches the latest published document for didID together with the
// version pointer callers must chain their next publish to. Returns
// ledger.ErrNotFound when the identifier has never been published.
func (r *Registry) Resolve(ctx context.Context, didID string) (model.Document, string, error) {
	doc, pointer, err := r.client.Resolve(ctx, didID)
	if err != nil {
		return model.Document{}, "", err
	}
	return doc, pointer, nil
}

// Publish signs doc with signingKey over its default signing method, links
// the revision to previousPointer, submits it to the ledger, and returns the
// new version pointer. previousPointer must be the pointer obtained from the
// most recent resolve; the ledger offers no compare-and-swap, so a stale
// pointer can silently supersede concurrent changes. Callers that need
// strict serialization must queue mutations per identity themselves.
func (r *Registry) Publish(ctx context.Context, doc model.Document, signingKey model.KeyPair, previousPointer string) (string, error) {
	doc.Metadata.PreviousMessageID = previousPointer
	doc.Metadata.Updated = r.clock().Format(time.RFC3339)

	method, ok := doc.DefaultSigningMethod()
	if !ok {
		return "", fmt.Errorf("document %s has no signing method", doc.ID)
	}

	signed, err := signDocument(doc, signingKey, method.ID)
	if err != nil {
		return "", fmt.Errorf("sign document %s: %w", doc.ID, err)
	}

	pointer, err := r.client.Publish(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("publish document %s: %w", doc.ID, err)
	}
	r.logger.Info("document published", "did", doc.ID, "pointer", pointer)
	return pointer, nil
}

// Create generates a fresh ed25519 key pair, derives its permanent DID,
// constructs a minimal document naming that key as the default signing
// method, publishes it as the genesis revision, and returns the assembled
// identity.
func (r *Registry) Create(ctx context.Context) (model.Identity, error) {
	key, err := keyvault.Generate(model.SchemeEd25519)
	if err != nil {
		return model.Identity{}, err
	}

	didID := did.FromPublicKey(key.PublicKey)
	methodID := didID + "#key-1"
	doc := model.Document{
		ID: didID,
		SigningMethods: []model.SigningMethod{{
			ID:                 methodID,
			Type:               signingMethodType,
			Controller:         didID,
			PublicKeyMultibase: keyvault.MultibaseEncode(key.PublicKey),
		}},
	}

	// Genesis publish: no previous pointer.
	pointer, err := r.Publish(ctx, doc, key, "")
	if err != nil {
		return model.Identity{}, err
	}

	r.logger.Info("identity created", "did", didID)
	return model.Identity{
		ID:             didID,
		Document:       doc,
		Key:            key,
		VersionPointer: pointer,
	}, nil
}

// Restore decodes stored key material and resolves the current document for
// its identifier. Fails with keyvault.ErrInvalidKeyMaterial when decoding
// fails and ledger.ErrNotFound when the document is missing.
func (r *Registry) Restore(ctx context.Context, encoded model.EncodedIdentity) (model.Identity, error) {
	key, err := keyvault.Decode(encoded.Key)
	if err != nil {
		return model.Identity{}, fmt.Errorf("restore %s: %w", encoded.ID, err)
	}
	doc, pointer, err := r.Resolve(ctx, encoded.ID)
	if err != nil {
		return model.Identity{}, fmt.Errorf("restore %s: %w", encoded.ID, err)
	}
	return model.Identity{
		ID:             encoded.ID,
		Document:       doc,
		Key:            key,
		VersionPointer: pointer,
	}, nil
}

// signDocument attaches a proof over the document digest. The digest is
// computed with the proof field cleared so verification can recompute it.
func signDocument(doc model.Document, key model.KeyPair, methodID string) (model.Document, error) {
	doc.Proof = nil
	digest, err := keyvault.Digest(doc)
	if err != nil {
		return model.Document{}, err
	}
	sig, err := keyvault.Sign(key, digest)
	if err != nil {
		return model.Document{}, err
	}
	doc.Proof = &model.Proof{
		Type:               ProofType,
		VerificationMethod: methodID,
		SignatureValue:     base58.Encode(sig),
	}
	return doc, nil
}
