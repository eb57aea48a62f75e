package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trustmesh/ssi-bridge/internal/auth"
	"github.com/trustmesh/ssi-bridge/internal/config"
	"github.com/trustmesh/ssi-bridge/internal/credential"
	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/keyvault"
	"github.com/trustmesh/ssi-bridge/internal/ledger"
	"github.com/trustmesh/ssi-bridge/internal/model"
	"github.com/trustmesh/ssi-bridge/internal/revocation"
	"github.com/trustmesh/ssi-bridge/internal/storage"
	"github.com/trustmesh/ssi-bridge/internal/trust"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.Default()
	cfg := config.Config{
		ServerSecret: "test-secret",
		SessionTTL:   time.Hour,
		BitmapTag:    "revocation",
	}

	ledgerClient := ledger.NewMemory()
	store := storage.NewMemory()
	registry := identity.NewRegistry(ledgerClient, logger)
	bitmaps := revocation.NewManager(registry, cfg.BitmapTag, logger)
	trusted := trust.NewRegistry(trust.NewMemory())

	h := New(cfg, Services{
		Registry: registry,
		Bitmaps:  bitmaps,
		Issuer:   credential.NewIssuer(registry, bitmaps, logger),
		Verifier: credential.NewVerifier(registry, bitmaps, trusted, logger),
		Trusted:  trusted,
		Auth:     auth.NewService(store, store, registry, cfg.ServerSecret, cfg.SessionTTL, logger),
	}, logger)
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *errorEnvelope  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error != nil {
		t.Fatalf("unexpected error envelope: %+v", *env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func createIdentity(t *testing.T, ts *httptest.Server) model.EncodedIdentity {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/identities", map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create status = %d body=%s", resp.StatusCode, string(b))
	}
	var ident model.EncodedIdentity
	decodeData(t, resp, &ident)
	return ident
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d want %d", resp.StatusCode, http.StatusOK)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok" {
		t.Fatalf("body = %q want %q", string(b), "ok")
	}
}

func TestIdentityCreateAndResolve(t *testing.T) {
	ts := newTestServer(t)
	ident := createIdentity(t, ts)
	if ident.ID == "" || ident.Key.Secret == "" {
		t.Fatalf("incomplete encoded identity: %+v", ident)
	}

	resp, err := http.Get(ts.URL + "/v1/identities/" + ident.ID)
	if err != nil {
		t.Fatalf("GET identity error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("resolve status = %d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		Document       model.Document `json:"document"`
		VersionPointer string         `json:"versionPointer"`
	}
	decodeData(t, resp, &out)
	if out.Document.ID != ident.ID {
		t.Errorf("document id = %q want %q", out.Document.ID, ident.ID)
	}
	if out.VersionPointer == "" {
		t.Errorf("missing version pointer")
	}
}

func TestIdentityResolveNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/identities/did:tmsh:missing")
	if err != nil {
		t.Fatalf("GET identity error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAuthenticationFlow(t *testing.T) {
	ts := newTestServer(t)
	ident := createIdentity(t, ts)
	key, err := keyvault.Decode(ident.Key)
	if err != nil {
		t.Fatalf("decode key failed: %v", err)
	}

	// Step 1: request a challenge.
	resp, err := http.Get(ts.URL + "/v1/authentication/" + ident.ID)
	if err != nil {
		t.Fatalf("GET nonce error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("nonce status = %d body=%s", resp.StatusCode, string(b))
	}
	var nonceOut struct {
		Nonce string `json:"nonce"`
	}
	decodeData(t, resp, &nonceOut)
	if nonceOut.Nonce == "" {
		t.Fatalf("empty nonce")
	}

	// Step 2: prove key ownership.
	signed, err := auth.SignNonce(key, nonceOut.Nonce)
	if err != nil {
		t.Fatalf("SignNonce failed: %v", err)
	}
	resp = postJSON(t, ts.URL+"/v1/authentication/"+ident.ID, map[string]string{"signedNonce": signed})
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("authenticate status = %d body=%s", resp.StatusCode, string(b))
	}
	var tokenOut struct {
		JWT string `json:"jwt"`
	}
	decodeData(t, resp, &tokenOut)
	if tokenOut.JWT == "" {
		t.Fatalf("empty session token")
	}

	// Step 3: the token verifies.
	resp = postJSON(t, ts.URL+"/v1/authentication/verify-jwt", map[string]string{"jwt": "Bearer " + tokenOut.JWT})
	var verification model.TokenVerification
	decodeData(t, resp, &verification)
	if !verification.IsValid {
		t.Errorf("token invalid: %s", verification.Error)
	}

	// A replay of the same signed nonce is rejected.
	resp = postJSON(t, ts.URL+"/v1/authentication/"+ident.ID, map[string]string{"signedNonce": signed})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replay status = %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestCredentialFlow(t *testing.T) {
	ts := newTestServer(t)
	issuer := createIdentity(t, ts)
	subject := createIdentity(t, ts)

	// Trust the issuer.
	resp := postJSON(t, ts.URL+"/v1/verification/trusted-roots", map[string]string{"trustedRoot": issuer.ID})
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("add trusted root status = %d body=%s", resp.StatusCode, string(b))
	}
	resp.Body.Close()

	// Issue a credential for the subject at position 3.
	resp = postJSON(t, ts.URL+"/v1/verification/create-credential", credentialRequest{
		Issuer:         issuer,
		SubjectID:      subject.ID,
		CredentialType: model.CredentialTypeBasicIdentity,
		SubjectType:    "Person",
		BitmapIndex:    0,
		Position:       3,
		Claims:         map[string]any{"driveAllowance": true},
	})
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create credential status = %d body=%s", resp.StatusCode, string(b))
	}
	var vc model.VerifiableCredential
	decodeData(t, resp, &vc)

	// Fully valid before revocation.
	resp = postJSON(t, ts.URL+"/v1/verification/check-credential", vc)
	var result model.VerificationResult
	decodeData(t, resp, &result)
	if !result.Valid() {
		t.Fatalf("fresh credential not fully valid: %+v", result)
	}

	// Revoke and re-check.
	resp = postJSON(t, ts.URL+"/v1/verification/revoke-credential", map[string]any{
		"issuer":      issuer,
		"bitmapIndex": 0,
		"position":    3,
	})
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("revoke status = %d body=%s", resp.StatusCode, string(b))
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/verification/check-credential", vc)
	decodeData(t, resp, &result)
	if !result.Revoked {
		t.Errorf("credential not reported revoked: %+v", result)
	}
	if result.Valid() {
		t.Errorf("revoked credential reported fully valid")
	}
}

func TestTrustedRootsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/verification/trusted-roots", map[string]string{"trustedRoot": "did:tmsh:root"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	listResp, err := http.Get(ts.URL + "/v1/verification/trusted-roots")
	if err != nil {
		t.Fatalf("GET trusted roots error: %v", err)
	}
	var out struct {
		TrustedRoots []string `json:"trustedRoots"`
	}
	decodeData(t, listResp, &out)
	if len(out.TrustedRoots) != 1 || out.TrustedRoots[0] != "did:tmsh:root" {
		t.Fatalf("trusted roots = %v", out.TrustedRoots)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/verification/trusted-roots/did:tmsh:root", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}

	listResp, err = http.Get(ts.URL + "/v1/verification/trusted-roots")
	if err != nil {
		t.Fatalf("GET trusted roots error: %v", err)
	}
	decodeData(t, listResp, &out)
	if len(out.TrustedRoots) != 0 {
		t.Fatalf("trusted roots after delete = %v", out.TrustedRoots)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/verification/check-credential", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
