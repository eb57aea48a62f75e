// Package credential issues and verifies verifiable credentials: signed,
// structured claims made by one identity about a subject, carrying a
// revocation reference into the issuer's bitmap.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/model"
	"github.com/trustmesh/ssi-bridge/internal/revocation"
)

// ErrIssuance indicates signing or publishing failed while issuing or
// revoking a credential.
var ErrIssuance = errors.New("credential issuance failed")

// credentialContext is the base JSON-LD context of issued credentials.
const credentialContext = "https://www.w3.org/2018/credentials/v1"

// IssueRequest describes one credential to issue. When ID is empty a
// deterministic identifier is derived from issuer, subject and revocation
// slot so callers can detect re-issuance; the issuer does not enforce global
// uniqueness itself.
type IssueRequest struct {
	SubjectID      string
	CredentialType string
	SubjectType    string
	BitmapIndex    uint32
	Position       uint32
	Claims         map[string]any
	ID             string
}

// Issuer builds and signs verifiable credentials for an issuer identity.
type Issuer struct {
	registry *identity.Registry
	bitmaps  *revocation.Manager
	logger   *slog.Logger
	clock    func() time.Time
}

// NewIssuer creates an Issuer over the given registry and bitmap manager.
func NewIssuer(registry *identity.Registry, bitmaps *revocation.Manager, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		registry: registry,
		bitmaps:  bitmaps,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue guarantees a revocation slot exists for the request's bitmap index,
// constructs the credential body with its status pointing at that slot,
// signs the credential digest with the issuer's default signing method, and
// returns the signed credential. Fails with ErrIssuance when the issuer has
// no signing method or signing or publishing fails.
func (i *Issuer) Issue(ctx context.Context, issuer *model.Identity, req IssueRequest) (model.VerifiableCredential, error) {
	entry, err := i.bitmaps.EnsureBitmapService(ctx, issuer, req.BitmapIndex)
	if err != nil {
		return model.VerifiableCredential{}, fmt.Errorf("%w: %v", ErrIssuance, err)
	}

	method, ok := issuer.Document.DefaultSigningMethod()
	if !ok {
		return model.VerifiableCredential{}, fmt.Errorf("%w: issuer %s has no signing method", ErrIssuance, issuer.ID)
	}

	id := req.ID
	if id == "" {
		id = DeriveID(issuer.ID, req.SubjectID, req.BitmapIndex, req.Position)
	}

	vc := model.VerifiableCredential{
		Context:      []string{credentialContext},
		ID:           id,
		Type:         []string{"VerifiableCredential", req.CredentialType},
		Issuer:       issuer.ID,
		IssuanceDate: i.clock().Format(time.RFC3339),
		CredentialSubject: model.Subject{
			ID:     req.SubjectID,
			Type:   req.SubjectType,
			Claims: req.Claims,
		},
		CredentialStatus: model.CredentialStatus{
			ID:              entry.ID,
			Type:            model.RevocationBitmapType,
			RevocationIndex: req.Position,
		},
	}

	digest, err := keyvault.Digest(vc)
	if err != nil {
		return model.VerifiableCredential{}, fmt.Errorf("%w: %v", ErrIssuance, err)
	}
	sig, err := keyvault.Sign(issuer.Key, digest)
	if err != nil {
		return model.VerifiableCredential{}, fmt.Errorf("%w: %v", ErrIssuance, err)
	}
	vc.Proof = &model.Proof{
		Type:               identity.ProofType,
		VerificationMethod: method.ID,
		SignatureValue:     base58.Encode(sig),
	}

	i.logger.Info("credential issued",
		"id", vc.ID,
		"issuer", issuer.ID,
		"subject", req.SubjectID,
		"position", req.Position,
	)
	return vc, nil
}

// DeriveID computes the deterministic credential identifier for a given
// issuer, subject and revocation slot.
func DeriveID(issuerDID, subjectDID string, bitmapIndex, position uint32) string {
	seed := fmt.Sprintf("%s|%s|%d|%d", issuerDID, subjectDID, bitmapIndex, position)
	sum := blake2b.Sum256([]byte(seed))
	return "urn:credential:" + base58.Encode(sum[:])
}
