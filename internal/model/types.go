// Package model defines the data shapes shared by the SSI bridge services.
// Internal types are used by the registries and services, while the JSON tags
// describe how the same shapes are serialized on the wire and on the ledger.
package model

import "time"

// Signature schemes supported for identity key material.
const (
	SchemeEd25519 = "ed25519"
	SchemeX25519  = "x25519"
)

// EncodingBase58 is the portable encoding used when key material is exported.
const EncodingBase58 = "base58"

// Credential types issued by the bridge. Callers may append their own type
// next to the base type in VerifiableCredential.Type.
const (
	CredentialTypeBasicIdentity = "BasicIdentityCredential"
	CredentialTypeVerified      = "VerifiedIdentityCredential"
)

// User roles carried inside session tokens.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// RevocationBitmapType is the service type under which revocation bitmaps are
// embedded into identity documents.
const RevocationBitmapType = "RevocationBitmap2022"

// SigningMethod describes one verification method of an identity document.
// PublicKeyMultibase carries the raw public key as "z" + base58.
type SigningMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// ServiceEntry is a generic extension point on an identity document. The
// revocation bitmap is one instance of it, with the encoded bitmap stored in
// Endpoint.
type ServiceEntry struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Endpoint string `json:"serviceEndpoint"`
}

// DocumentMetadata chains a published document revision to its predecessor.
// PreviousMessageID must equal the version pointer obtained from the most
// recent resolve; publishing with a stale pointer risks superseding
// concurrent changes.
type DocumentMetadata struct {
	PreviousMessageID string `json:"previousMessageId,omitempty"`
	Updated           string `json:"updated,omitempty"` // RFC3339
}

// Document is the resolvable, versioned record describing an identity's
// signing methods and service entries.
type Document struct {
	ID             string           `json:"id"`
	SigningMethods []SigningMethod  `json:"verificationMethod"`
	Services       []ServiceEntry   `json:"service,omitempty"`
	Metadata       DocumentMetadata `json:"metadata"`
	Proof          *Proof           `json:"proof,omitempty"`
}

// DefaultSigningMethod returns the document's first signing method, which by
// construction is the key the identity was created with. The second return
// value is false when the document carries no methods at all.
func (d Document) DefaultSigningMethod() (SigningMethod, bool) {
	if len(d.SigningMethods) == 0 {
		return SigningMethod{}, false
	}
	return d.SigningMethods[0], true
}

// FindService returns the service entry with the given id.
func (d Document) FindService(id string) (ServiceEntry, bool) {
	for _, s := range d.Services {
		if s.ID == id {
			return s, true
		}
	}
	return ServiceEntry{}, false
}

// KeyPair holds raw asymmetric key material together with its scheme tag.
// The private key never leaves the issuing process except through an
// explicit KeyVault encode for persistence.
type KeyPair struct {
	Scheme     string
	PublicKey  []byte
	PrivateKey []byte
}

// EncodedKeyPair is the portable, losslessly encoded form of a KeyPair.
type EncodedKeyPair struct {
	Public   string `json:"public"`
	Secret   string `json:"secret"`
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
}

// Identity bundles a DID, its current document, and the key pair that
// controls it. Identifiers are permanent; only the document is ever
// republished.
type Identity struct {
	ID       string
	Document Document
	Key      KeyPair
	// VersionPointer identifies the last published revision of Document and
	// must accompany the next publish.
	VersionPointer string
}

// EncodedIdentity is the storable form of an Identity's key material.
type EncodedIdentity struct {
	ID  string         `json:"id"`
	Key EncodedKeyPair `json:"key"`
}

// CredentialStatus points a credential at its revocation slot: the bitmap
// service on the issuer's document and the bit position assigned to this
// credential.
type CredentialStatus struct {
	ID              string `json:"id"` // "{issuer}#{tag}-{bitmapIndex}"
	Type            string `json:"type"`
	RevocationIndex uint32 `json:"revocationBitmapIndex"`
}

// Proof is the detached signature attached to a document or credential.
// SignatureValue is base58 over the signature bytes; VerificationMethod names
// the signing method whose public key verifies it.
type Proof struct {
	Type               string `json:"type"`
	VerificationMethod string `json:"verificationMethod"`
	SignatureValue     string `json:"signatureValue"`
}

// Subject is the credentialSubject body: the subject DID plus arbitrary
// structured claims.
type Subject struct {
	ID     string         `json:"id"`
	Type   string         `json:"type,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
}

// VerifiableCredential is a signed claim issued by one identity about a
// subject. It is immutable once signed; its validity is a function of the
// issuer's current document and bitmap, not of embedded state.
type VerifiableCredential struct {
	Context           []string         `json:"@context"`
	ID                string           `json:"id"`
	Type              []string         `json:"type"`
	Issuer            string           `json:"issuer"`
	IssuanceDate      string           `json:"issuanceDate"` // RFC3339
	CredentialSubject Subject          `json:"credentialSubject"`
	CredentialStatus  CredentialStatus `json:"credentialStatus"`
	Proof             *Proof           `json:"proof,omitempty"`
}

// VerificationResult reports the three independent dimensions of credential
// validity so callers can distinguish failure causes instead of receiving a
// single collapsed boolean.
type VerificationResult struct {
	SignatureValid bool `json:"signatureValid"`
	Revoked        bool `json:"revoked"`
	Trusted        bool `json:"trusted"`
}

// Valid reports full validity: a genuine signature, no revocation recorded,
// and an issuer the verifying party trusts.
func (r VerificationResult) Valid() bool {
	return r.SignatureValid && !r.Revoked && r.Trusted
}

// Nonce is a single-use random challenge bound to a subject. One nonce is
// active per subject; re-issuance overwrites it.
type Nonce struct {
	SubjectID string
	Value     string
	IssuedAt  time.Time
}

// User is the directory record for an authenticating subject. PublicKey is
// the multibase-encoded key used to verify signed nonces.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
	Role      string `json:"role"`
}

// TokenVerification is the outcome of session token validation. Error holds
// the failure reason when IsValid is false; validation never panics.
type TokenVerification struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}
