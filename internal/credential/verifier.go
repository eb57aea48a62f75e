package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mr-tron/base58"

	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/model"
	"github.com/trustmesh/ssi-bridge/internal/revocation"
	"github.com/trustmesh/ssi-bridge/internal/trust"
)

// Verifier checks credentials against the issuer's current document, its
// revocation bitmap, and the verifying party's trust registry.
type Verifier struct {
	registry *identity.Registry
	bitmaps  *revocation.Manager
	trusted  *trust.Registry
	logger   *slog.Logger
}

// NewVerifier creates a Verifier over the given collaborators.
func NewVerifier(registry *identity.Registry, bitmaps *revocation.Manager, trusted *trust.Registry, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{registry: registry, bitmaps: bitmaps, trusted: trusted, logger: logger}
}

// Verify reports the three independent validity dimensions of vc. A
// signature that cannot be checked, including an unresolvable issuer, yields
// SignatureValid=false rather than an error; the revocation bitmap is only
// consulted when the signature holds. Trust membership is always reported so
// callers can distinguish failure causes. Only infrastructure failures
// (ledger transport, trust store) surface as errors.
func (v *Verifier) Verify(ctx context.Context, vc model.VerifiableCredential) (model.VerificationResult, error) {
	var result model.VerificationResult

	result.SignatureValid = v.signatureValid(ctx, vc)

	if result.SignatureValid {
		revoked, err := v.bitmaps.IsRevoked(ctx, vc.Issuer, vc.CredentialStatus.ID, vc.CredentialStatus.RevocationIndex)
		if err != nil {
			return model.VerificationResult{}, fmt.Errorf("verify %s: %w", vc.ID, err)
		}
		result.Revoked = revoked
	}

	trusted, err := v.trusted.IsTrusted(ctx, vc.Issuer)
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("verify %s: %w", vc.ID, err)
	}
	result.Trusted = trusted

	v.logger.Info("credential verified",
		"id", vc.ID,
		"issuer", vc.Issuer,
		"signatureValid", result.SignatureValid,
		"revoked", result.Revoked,
		"trusted", result.Trusted,
	)
	return result, nil
}

// signatureValid recomputes the credential digest and checks the embedded
// proof against the issuer's signing method public key.
func (v *Verifier) signatureValid(ctx context.Context, vc model.VerifiableCredential) bool {
	if vc.Proof == nil {
		return false
	}
	doc, _, err := v.registry.Resolve(ctx, vc.Issuer)
	if err != nil {
		v.logger.Warn("issuer resolution failed during verification", "issuer", vc.Issuer, "error", err)
		return false
	}

	method, ok := findMethod(doc, vc.Proof.VerificationMethod)
	if !ok {
		return false
	}
	publicKey, err := keyvault.MultibaseDecode(method.PublicKeyMultibase)
	if err != nil {
		return false
	}
	sig, err := base58.Decode(vc.Proof.SignatureValue)
	if err != nil {
		return false
	}

	unsigned := vc
	unsigned.Proof = nil
	digest, err := keyvault.Digest(unsigned)
	if err != nil {
		return false
	}
	return keyvault.Verify(model.SchemeEd25519, publicKey, digest, sig)
}

// findMethod locates the signing method the proof names, falling back to the
// document's default method when the proof does not name one.
func findMethod(doc model.Document, methodID string) (model.SigningMethod, bool) {
	if methodID == "" {
		return doc.DefaultSigningMethod()
	}
	for _, m := range doc.SigningMethods {
		if m.ID == methodID {
			return m, true
		}
	}
	return model.SigningMethod{}, false
}
