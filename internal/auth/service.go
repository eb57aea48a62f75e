// Package auth implements the challenge-response authentication flow: nonce
// issuance, signed-nonce verification, and minting and validation of signed,
// time-limited session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/model"
	"github.com/trustmesh/ssi-bridge/internal/storage"
)

var (
	// ErrAuthentication covers a missing identity, a missing or mismatched
	// nonce, and a bad signature.
	ErrAuthentication = errors.New("authentication failed")
	// ErrConfiguration indicates the server secret is not configured.
	ErrConfiguration = errors.New("service misconfigured")
)

// Service drives the per-subject challenge state machine:
// NoNonce -> NonceIssued -> (Consumed | Overwritten).
type Service struct {
	users    storage.UserStore
	nonces   storage.NonceStore
	registry *identity.Registry
	secret   []byte
	expiry   time.Duration
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService creates a Service. secret signs session tokens and expiry bounds
// their lifetime; an empty secret is only rejected when a token is minted, so
// the nonce flow stays usable in read-only deployments.
func NewService(users storage.UserStore, nonces storage.NonceStore, registry *identity.Registry, secret string, expiry time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		nonces:   nonces,
		registry: registry,
		secret:   []byte(secret),
		expiry:   expiry,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// GetNonce generates a fresh random challenge for subjectID and stores it,
// replacing any prior nonce. The prior nonce becomes permanently unusable.
func (s *Service) GetNonce(ctx context.Context, subjectID string) (string, error) {
	value := generateNonce()
	nonce := model.Nonce{
		SubjectID: subjectID,
		Value:     value,
		IssuedAt:  s.clock(),
	}
	if err := s.nonces.Upsert(ctx, nonce); err != nil {
		return "", fmt.Errorf("store nonce for %s: %w", subjectID, err)
	}
	s.logger.Info("nonce issued", "subject", subjectID)
	return value, nil
}

// Authenticate verifies a signed nonce and mints a session token. The
// subject's public key comes from the user directory when a record exists,
// otherwise from resolving the identity document directly. On success the
// nonce is consumed so a replay fails with ErrAuthentication.
func (s *Service) Authenticate(ctx context.Context, subjectID, signedNonce string) (string, error) {
	user, err := s.lookupUser(ctx, subjectID)
	if err != nil {
		return "", err
	}

	nonce, err := s.nonces.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: no nonce pending for %s", ErrAuthentication, subjectID)
		}
		return "", fmt.Errorf("fetch nonce for %s: %w", subjectID, err)
	}

	publicKey, err := keyvault.MultibaseDecode(user.PublicKey)
	if err != nil {
		return "", fmt.Errorf("%w: stored public key for %s is unusable", ErrAuthentication, subjectID)
	}
	sig, err := base64.StdEncoding.DecodeString(signedNonce)
	if err != nil {
		return "", fmt.Errorf("%w: signed nonce is not base64", ErrAuthentication)
	}
	if !keyvault.Verify(model.SchemeEd25519, publicKey, []byte(nonce.Value), sig) {
		return "", fmt.Errorf("%w: signed nonce is not valid", ErrAuthentication)
	}

	// Consume before minting so the same nonce can never authenticate twice.
	if err := s.nonces.Delete(ctx, subjectID); err != nil {
		return "", fmt.Errorf("consume nonce for %s: %w", subjectID, err)
	}

	token, err := s.mintToken(user)
	if err != nil {
		return "", err
	}
	s.logger.Info("subject authenticated", "subject", subjectID, "role", user.Role)
	return token, nil
}

// VerifyToken validates a session token's signature and expiry against the
// server secret. An optional "Bearer " prefix is stripped first. It never
// fails hard: the outcome always arrives as a result value with the failure
// reason as a message.
func (s *Service) VerifyToken(token string) model.TokenVerification {
	if strings.HasPrefix(token, "Bearer") {
		parts := strings.Split(token, "Bearer ")
		if len(parts) != 2 {
			return model.TokenVerification{IsValid: false, Error: "could not separate Bearer from token"}
		}
		token = parts[1]
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithExpirationRequired())
	if err != nil {
		s.logger.Warn("token verification failed", "error", err)
		return model.TokenVerification{IsValid: false, Error: err.Error()}
	}
	if !parsed.Valid {
		return model.TokenVerification{IsValid: false, Error: "token is not valid"}
	}
	return model.TokenVerification{IsValid: true}
}

// lookupUser resolves the authenticating identity: directory record first,
// then the ledger document, synthesizing a minimal user record from its
// default signing method.
func (s *Service) lookupUser(ctx context.Context, subjectID string) (model.User, error) {
	user, err := s.users.GetUserByID(ctx, subjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.User{}, fmt.Errorf("user lookup for %s: %w", subjectID, err)
	}

	doc, _, err := s.registry.Resolve(ctx, subjectID)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: no identity with id %s found", ErrAuthentication, subjectID)
	}
	method, ok := doc.DefaultSigningMethod()
	if !ok {
		return model.User{}, fmt.Errorf("%w: no identity with id %s found", ErrAuthentication, subjectID)
	}
	return model.User{
		ID:        subjectID,
		Username:  subjectID,
		PublicKey: method.PublicKeyMultibase,
		Role:      model.RoleUser,
	}, nil
}

// mintToken signs a session token embedding the user record.
func (s *Service) mintToken(user model.User) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("%w: no server secret set", ErrConfiguration)
	}
	now := s.clock()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"user": user,
		"iat":  now.Unix(),
		"exp":  now.Add(s.expiry).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// SignNonce is the client half of the challenge: it signs the raw nonce value
// with the subject's private key and encodes the signature for transport.
func SignNonce(key model.KeyPair, nonce string) (string, error) {
	sig, err := keyvault.Sign(key, []byte(nonce))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// generateNonce creates a cryptographically secure random challenge value,
// encoded base64 URL-safe without padding.
func generateNonce() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
