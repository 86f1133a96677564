// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCA is a minimal in-process ACME responder. It does not verify JWS
// signatures; it drives the protocol state machine the way a conforming CA
// would so the client paths can be exercised end to end.
type fakeCA struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	nonceCounter  int
	accountExists bool
	// authzPollsToValid is how many authorization reads happen before the
	// challenge turns valid. Negative means invalid, large means never.
	authzPollsToValid int
	authzPollCount    int
	// orderPollsToValid is the same for finalize polling.
	orderPollsToValid int
	orderPollCount    int
	challengeDetail   string
	certBody          []byte

	// Behavior switches.
	omitAccountLocation bool
	omitOrderLocation   bool
	omitNonceHeader     bool
	dropEndpoints       bool
	dnsOnlyChallenge    bool
}

func newFakeCA(t *testing.T) *fakeCA {
	ca := &fakeCA{t: t, authzPollsToValid: 1, orderPollsToValid: 1}
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", ca.directory)
	mux.HandleFunc("/new-nonce", ca.newNonce)
	mux.HandleFunc("/new-account", ca.newAccount)
	mux.HandleFunc("/new-order", ca.newOrder)
	mux.HandleFunc("/authz/1", ca.authz)
	mux.HandleFunc("/challenge/1", ca.challenge)
	mux.HandleFunc("/order/1", ca.order)
	mux.HandleFunc("/order/1/finalize", ca.finalize)
	mux.HandleFunc("/cert/1", ca.certificate)
	mux.HandleFunc("/revoke-cert", ca.revoke)
	ca.server = httptest.NewServer(mux)
	t.Cleanup(ca.server.Close)
	return ca
}

func (ca *fakeCA) url(path string) string {
	return ca.server.URL + path
}

func (ca *fakeCA) client(t *testing.T) *Client {
	c := NewClient(Config{BaseURL: ca.server.URL, ProvisionerPath: "/directory"}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	c.SetPollingBounds(time.Millisecond, 50*time.Millisecond, 100*time.Millisecond)
	return c
}

func (ca *fakeCA) setNonce(w http.ResponseWriter) {
	if ca.omitNonceHeader {
		return
	}
	ca.nonceCounter++
	w.Header().Set("Replay-Nonce", fmt.Sprintf("nonce-%d", ca.nonceCounter))
}

func (ca *fakeCA) directory(w http.ResponseWriter, r *http.Request) {
	dir := map[string]string{
		"newNonce":   ca.url("/new-nonce"),
		"newAccount": ca.url("/new-account"),
		"newOrder":   ca.url("/new-order"),
		"revokeCert": ca.url("/revoke-cert"),
	}
	if ca.dropEndpoints {
		delete(dir, "newOrder")
	}
	writeJSON(ca.t, w, http.StatusOK, dir)
}

func (ca *fakeCA) newNonce(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)
	w.WriteHeader(http.StatusOK)
}

func (ca *fakeCA) newAccount(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)

	var req jws
	require.NoError(ca.t, json.NewDecoder(r.Body).Decode(&req))
	onlyExisting := req.Payload != "" &&
		decodePayload(ca.t, req.Payload)["onlyReturnExisting"] == true

	if onlyExisting && !ca.accountExists {
		writeJSON(ca.t, w, http.StatusBadRequest, map[string]any{
			"type":   "urn:ietf:params:acme:error:accountDoesNotExist",
			"detail": "no account for key",
		})
		return
	}

	ca.accountExists = true
	if !ca.omitAccountLocation {
		w.Header().Set("Location", ca.url("/account/1"))
	}
	writeJSON(ca.t, w, http.StatusCreated, map[string]any{"status": "valid"})
}

func (ca *fakeCA) newOrder(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)
	if !ca.omitOrderLocation {
		w.Header().Set("Location", ca.url("/order/1"))
	}
	writeJSON(ca.t, w, http.StatusCreated, map[string]any{
		"status":         "pending",
		"identifiers":    []map[string]string{{"type": "dns", "value": "example.com"}},
		"authorizations": []string{ca.url("/authz/1")},
		"finalize":       ca.url("/order/1/finalize"),
	})
}

func (ca *fakeCA) authz(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)

	if ca.dnsOnlyChallenge {
		writeJSON(ca.t, w, http.StatusOK, map[string]any{
			"status":     "pending",
			"identifier": map[string]string{"type": "dns", "value": "example.com"},
			"challenges": []map[string]any{{"type": "dns-01", "url": ca.url("/challenge/1"), "token": "tok", "status": "pending"}},
		})
		return
	}

	ca.authzPollCount++
	challenge := map[string]any{
		"type": "http-01", "url": ca.url("/challenge/1"), "token": "tok-1", "status": "pending",
	}
	status := "pending"
	switch {
	case ca.authzPollsToValid < 0:
		status = "invalid"
		challenge["status"] = "invalid"
		challenge["error"] = map[string]any{
			"type":   "urn:ietf:params:acme:error:unauthorized",
			"detail": ca.challengeDetail,
		}
	case ca.authzPollCount > ca.authzPollsToValid:
		status = "valid"
		challenge["status"] = "valid"
	}
	writeJSON(ca.t, w, http.StatusOK, map[string]any{
		"status":     status,
		"identifier": map[string]string{"type": "dns", "value": "example.com"},
		"challenges": []map[string]any{challenge},
	})
}

func (ca *fakeCA) challenge(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)

	var req jws
	require.NoError(ca.t, json.NewDecoder(r.Body).Decode(&req))
	require.NotEmpty(ca.t, req.Payload, "challenge readiness must post a JSON object, not POST-as-GET")

	writeJSON(ca.t, w, http.StatusOK, map[string]any{
		"type": "http-01", "url": ca.url("/challenge/1"), "token": "tok-1", "status": "processing",
	})
}

func (ca *fakeCA) finalize(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)

	var req jws
	require.NoError(ca.t, json.NewDecoder(r.Body).Decode(&req))
	payload := decodePayload(ca.t, req.Payload)
	csr, ok := payload["csr"].(string)
	require.True(ca.t, ok)
	require.NotContains(ca.t, csr, "+", "CSR must be base64url encoded")
	require.NotContains(ca.t, csr, "/", "CSR must be base64url encoded")
	require.NotContains(ca.t, csr, "=", "CSR must be base64url encoded")

	writeJSON(ca.t, w, http.StatusOK, map[string]any{"status": "processing"})
}

func (ca *fakeCA) order(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)

	ca.orderPollCount++
	status := "processing"
	res := map[string]any{
		"authorizations": []string{ca.url("/authz/1")},
		"finalize":       ca.url("/order/1/finalize"),
	}
	switch {
	case ca.orderPollsToValid < 0:
		status = "invalid"
		res["error"] = map[string]any{"type": "urn:ietf:params:acme:error:serverInternal", "detail": "issuance failed"}
	case ca.orderPollCount > ca.orderPollsToValid:
		status = "valid"
		res["certificate"] = ca.url("/cert/1")
	}
	res["status"] = status
	writeJSON(ca.t, w, http.StatusOK, res)
}

func (ca *fakeCA) certificate(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(ca.certBody)
	require.NoError(ca.t, err)
}

func (ca *fakeCA) revoke(w http.ResponseWriter, r *http.Request) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.setNonce(w)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(t *testing.T, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func decodePayload(t *testing.T, payload64 string) map[string]any {
	raw, err := base64.RawURLEncoding.DecodeString(payload64)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// selfSignedDER issues a throwaway certificate for fake CA responses.
func selfSignedDER(t *testing.T, notBefore, notAfter time.Time) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{CommonName: "example.com"},
		DNSNames:     []string{"example.com"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func derToPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
