// Package server wires the bridge services into HTTP endpoints using
// net/http. Routing and request validation stay thin; all trust decisions
// live in the service packages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/trustmesh/ssi-bridge/internal/auth"
	"github.com/trustmesh/ssi-bridge/internal/config"
	"github.com/trustmesh/ssi-bridge/internal/credential"
	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/ledger"
	"github.com/trustmesh/ssi-bridge/internal/model"
	"github.com/trustmesh/ssi-bridge/internal/revocation"
	"github.com/trustmesh/ssi-bridge/internal/trust"
)

type contextKey string

const (
	contextKeyCorrelationID contextKey = "correlationId"

	headerContentType   = "Content-Type"
	headerCorrelationID = "X-Correlation-Id"
	headerAuthorization = "Authorization"

	contentTypeJSON = "application/json"
)

// Services bundles the constructed service objects the handler dispatches to.
type Services struct {
	Registry *identity.Registry
	Bitmaps  *revocation.Manager
	Issuer   *credential.Issuer
	Verifier *credential.Verifier
	Trusted  *trust.Registry
	Auth     *auth.Service
}

// Handler wires HTTP endpoints using net/http.
type Handler struct {
	cfg    config.Config
	svc    Services
	logger *slog.Logger
	router *http.ServeMux
}

// New creates a Handler using the supplied dependencies.
func New(cfg config.Config, svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		router: http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// Router returns the *http.ServeMux with all routes registered.
func (h *Handler) Router() *http.ServeMux {
	return h.router
}

func (h *Handler) registerRoutes() {
	h.router.Handle("/health", http.HandlerFunc(h.health))
	h.router.Handle("/metrics", h.metricsHandler())

	h.router.Handle("POST /v1/identities", h.wrap(h.handleIdentityCreate))
	h.router.Handle("GET /v1/identities/{did}", h.wrap(h.handleIdentityResolve))

	// Challenge-response flow: GET issues a nonce, POST proves key ownership.
	h.router.Handle("GET /v1/authentication/{id}", h.wrap(h.handleGetNonce))
	h.router.Handle("POST /v1/authentication/{id}", h.wrap(h.handleAuthenticate))
	h.router.Handle("POST /v1/authentication/verify-jwt", h.wrap(h.handleVerifyToken))

	h.router.Handle("POST /v1/verification/create-credential", h.wrap(h.handleCreateCredential))
	h.router.Handle("POST /v1/verification/check-credential", h.wrap(h.handleCheckCredential))
	h.router.Handle("POST /v1/verification/revoke-credential", h.wrap(h.handleRevokeCredential))

	h.router.Handle("GET /v1/verification/trusted-roots", h.wrap(h.handleListTrustedRoots))
	h.router.Handle("POST /v1/verification/trusted-roots", h.wrap(h.handleAddTrustedRoot))
	h.router.Handle("DELETE /v1/verification/trusted-roots/{did}", h.wrap(h.handleRemoveTrustedRoot))
}

type responseEnvelope struct {
	Data  any            `json:"data,omitempty"`
	Error *errorEnvelope `json:"error,omitempty"`
}

type errorEnvelope struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleIdentityCreate(w http.ResponseWriter, r *http.Request) {
	ident, err := h.svc.Registry.Create(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	// The private key leaves the process exactly once, encoded for the
	// caller to persist; the bridge keeps no copy.
	h.writeSuccess(w, r, http.StatusCreated, model.EncodedIdentity{
		ID:  ident.ID,
		Key: keyvault.Encode(ident.Key),
	})
}

func (h *Handler) handleIdentityResolve(w http.ResponseWriter, r *http.Request) {
	didID := r.PathValue("did")
	doc, pointer, err := h.svc.Registry.Resolve(r.Context(), didID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, map[string]any{
		"document":       doc,
		"versionPointer": pointer,
	})
}

func (h *Handler) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	nonce, err := h.svc.Auth.GetNonce(r.Context(), subjectID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	nonceIssuanceCount.Inc()
	h.writeSuccess(w, r, http.StatusOK, map[string]any{"nonce": nonce})
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	var input struct {
		SignedNonce string `json:"signedNonce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
		return
	}
	token, err := h.svc.Auth.Authenticate(r.Context(), subjectID, input.SignedNonce)
	if err != nil {
		authenticationCount.WithLabelValues("failure").Inc()
		h.writeServiceError(w, r, err)
		return
	}
	authenticationCount.WithLabelValues("success").Inc()
	h.writeSuccess(w, r, http.StatusOK, map[string]any{"jwt": token})
}

func (h *Handler) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(headerAuthorization))
	if token == "" {
		var input struct {
			JWT string `json:"jwt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
			return
		}
		token = input.JWT
	}
	h.writeSuccess(w, r, http.StatusOK, h.svc.Auth.VerifyToken(token))
}

type credentialRequest struct {
	Issuer         model.EncodedIdentity `json:"issuer"`
	SubjectID      string                `json:"subjectId"`
	CredentialType string                `json:"credentialType"`
	SubjectType    string                `json:"subjectType"`
	BitmapIndex    uint32                `json:"bitmapIndex"`
	Position       uint32                `json:"position"`
	Claims         map[string]any        `json:"claims"`
}

func (h *Handler) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var input credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
		return
	}
	ident, err := h.svc.Registry.Restore(r.Context(), input.Issuer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	vc, err := h.svc.Issuer.Issue(r.Context(), &ident, credential.IssueRequest{
		SubjectID:      input.SubjectID,
		CredentialType: input.CredentialType,
		SubjectType:    input.SubjectType,
		BitmapIndex:    input.BitmapIndex,
		Position:       input.Position,
		Claims:         input.Claims,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	credentialIssuanceCount.Inc()
	h.writeSuccess(w, r, http.StatusCreated, vc)
}

func (h *Handler) handleCheckCredential(w http.ResponseWriter, r *http.Request) {
	var vc model.VerifiableCredential
	if err := json.NewDecoder(r.Body).Decode(&vc); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
		return
	}
	result, err := h.svc.Verifier.Verify(r.Context(), vc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	credentialVerificationCount.WithLabelValues(verificationLabel(result)).Inc()
	h.writeSuccess(w, r, http.StatusOK, result)
}

func (h *Handler) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Issuer      model.EncodedIdentity `json:"issuer"`
		BitmapIndex uint32                `json:"bitmapIndex"`
		Position    uint32                `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
		return
	}
	ident, err := h.svc.Registry.Restore(r.Context(), input.Issuer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Bitmaps.Revoke(r.Context(), &ident, input.BitmapIndex, input.Position); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	credentialRevocationCount.Inc()
	h.writeSuccess(w, r, http.StatusOK, map[string]any{"revoked": true})
}

func (h *Handler) handleListTrustedRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.svc.Trusted.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, map[string]any{"trustedRoots": roots})
}

func (h *Handler) handleAddTrustedRoot(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TrustedRoot string `json:"trustedRoot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", "invalid JSON body")
		return
	}
	if err := h.svc.Trusted.Add(r.Context(), input.TrustedRoot); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "BRIDGE_VALIDATION", err.Error())
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, map[string]any{"trustedRoot": input.TrustedRoot})
}

func (h *Handler) handleRemoveTrustedRoot(w http.ResponseWriter, r *http.Request) {
	didID := r.PathValue("did")
	if err := h.svc.Trusted.Remove(r.Context(), didID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "BRIDGE_NOT_FOUND", err.Error())
	case errors.Is(err, keyvault.ErrInvalidKeyMaterial):
		h.writeError(w, r, http.StatusUnprocessableEntity, "BRIDGE_KEY_MATERIAL", err.Error())
	case errors.Is(err, auth.ErrAuthentication):
		h.writeError(w, r, http.StatusUnauthorized, "BRIDGE_AUTHZ", err.Error())
	case errors.Is(err, auth.ErrConfiguration):
		h.writeError(w, r, http.StatusInternalServerError, "BRIDGE_CONFIG", err.Error())
	case errors.Is(err, credential.ErrIssuance):
		h.writeError(w, r, http.StatusInternalServerError, "BRIDGE_ISSUANCE", err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		h.writeError(w, r, http.StatusBadGateway, "BRIDGE_LEDGER", err.Error())
	default:
		h.writeError(w, r, http.StatusInternalServerError, "BRIDGE_INTERNAL", "internal server error")
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	payload := mustJSON(responseEnvelope{Data: data})
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.logger.Warn("write success failed", "error", err, "correlationId", correlationIDFrom(r.Context()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	correlationID := correlationIDFrom(r.Context())
	payload := mustJSON(responseEnvelope{Error: &errorEnvelope{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
	}})
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		h.logger.Warn("write error failed", "error", err, "correlationId", correlationID)
	}
}

func mustJSON(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return payload
}

func (h *Handler) ensureCorrelationID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(headerCorrelationID))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(headerCorrelationID, id)
	return id
}

func correlationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyCorrelationID).(string); ok {
		return v
	}
	return ""
}

func verificationLabel(result model.VerificationResult) string {
	switch {
	case result.Valid():
		return "valid"
	case !result.SignatureValid:
		return "bad_signature"
	case result.Revoked:
		return "revoked"
	default:
		return "untrusted"
	}
}
