// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package revocation

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuer struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &issuer{key: key, cert: cert}
}

func (i *issuer) leafPEM(t *testing.T, serial int64) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, i.cert, &key.PublicKey, i.key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func (i *issuer) crlDER(t *testing.T, revoked ...int64) []byte {
	t.Helper()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, serial := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   big.NewInt(serial),
			RevocationTime: time.Now().Add(-time.Minute),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now().Add(-time.Minute),
		NextUpdate:                time.Now().Add(time.Hour),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, i.cert, i.key)
	require.NoError(t, err)
	return der
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestIsRevoked(t *testing.T) {
	iss := newIssuer(t)
	dir := t.TempDir()

	certPath := filepath.Join(dir, "server.crt")
	require.NoError(t, os.WriteFile(certPath, iss.leafPEM(t, 77), 0o644))

	listedCRL := filepath.Join(dir, "listed.crl")
	require.NoError(t, os.WriteFile(listedCRL, iss.crlDER(t, 42, 77), 0o644))
	cleanCRL := filepath.Join(dir, "clean.crl")
	require.NoError(t, os.WriteFile(cleanCRL, iss.crlDER(t, 42), 0o644))
	pemCRL := filepath.Join(dir, "listed.pem")
	require.NoError(t, os.WriteFile(pemCRL, pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: iss.crlDER(t, 77)}), 0o644))
	badCRL := filepath.Join(dir, "bad.crl")
	require.NoError(t, os.WriteFile(badCRL, []byte("not a crl"), 0o644))

	cases := []struct {
		desc     string
		certPath string
		crlPath  string
		status   Status
		err      error
	}{
		{
			desc:     "serial listed in DER CRL",
			certPath: certPath,
			crlPath:  listedCRL,
			status:   StatusRevoked,
		},
		{
			desc:     "serial listed in PEM CRL",
			certPath: certPath,
			crlPath:  pemCRL,
			status:   StatusRevoked,
		},
		{
			desc:     "serial not listed",
			certPath: certPath,
			crlPath:  cleanCRL,
			status:   StatusNotRevoked,
		},
		{
			desc:     "unreadable CRL is unknown",
			certPath: certPath,
			crlPath:  badCRL,
			status:   StatusUnknown,
			err:      ErrParseCRL,
		},
		{
			desc:     "missing CRL is unknown",
			certPath: certPath,
			crlPath:  filepath.Join(dir, "absent.crl"),
			status:   StatusUnknown,
			err:      ErrParseCRL,
		},
		{
			desc:     "missing certificate is unknown",
			certPath: filepath.Join(dir, "absent.crt"),
			crlPath:  cleanCRL,
			status:   StatusUnknown,
			err:      ErrReadCert,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			status, err := IsRevoked(tc.certPath, tc.crlPath)
			assert.Equal(t, tc.status, status)
			if tc.err != nil {
				assert.True(t, errors.Contains(err, tc.err), "expected %v, got %v", tc.err, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRefreshDownloadsMissingCache(t *testing.T) {
	iss := newIssuer(t)
	crl := iss.crlDER(t, 42)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(crl)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	cache := NewCache(srv.URL, path, time.Hour, testLogger())

	res := cache.Refresh()
	assert.NoError(t, res.Err)
	assert.True(t, res.Updated)
	assert.Equal(t, 1, res.RevokedCount)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestRefreshSkipsFreshCache(t *testing.T) {
	iss := newIssuer(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(iss.crlDER(t, 42))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	require.NoError(t, os.WriteFile(path, iss.crlDER(t, 42), 0o644))

	cache := NewCache(srv.URL, path, time.Hour, testLogger())
	res := cache.Refresh()
	assert.NoError(t, res.Err)
	assert.False(t, res.Updated)
	assert.Equal(t, 0, hits, "fresh cache must not trigger a download")
}

func TestRefreshStaleCacheRedownloads(t *testing.T) {
	iss := newIssuer(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(iss.crlDER(t, 42, 43))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	require.NoError(t, os.WriteFile(path, iss.crlDER(t, 42), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	cache := NewCache(srv.URL, path, time.Hour, testLogger())
	res := cache.Refresh()
	assert.NoError(t, res.Err)
	assert.True(t, res.Updated)
	assert.Equal(t, 2, res.RevokedCount)
}

func TestRefreshExactlyMaxAgeRedownloads(t *testing.T) {
	iss := newIssuer(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(iss.crlDER(t, 42))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	require.NoError(t, os.WriteFile(path, iss.crlDER(t, 42), 0o644))
	// A cache exactly maxAge old is already stale, not still fresh.
	boundary := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, boundary, boundary))

	cache := NewCache(srv.URL, path, time.Hour, testLogger())
	res := cache.Refresh()
	assert.NoError(t, res.Err)
	assert.True(t, res.Updated)
	assert.Equal(t, 1, hits, "cache at the age limit must trigger a download")
}

func TestRefreshKeepsStaleCacheOnFailure(t *testing.T) {
	iss := newIssuer(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	require.NoError(t, os.WriteFile(path, iss.crlDER(t, 42), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	cache := NewCache(srv.URL, path, time.Hour, testLogger())
	res := cache.Refresh()
	assert.True(t, errors.Contains(res.Err, ErrDownloadCRL), "expected %v, got %v", ErrDownloadCRL, res.Err)
	assert.False(t, res.Updated)
	assert.Equal(t, 1, res.RevokedCount, "stale cache must stay usable after a failed download")
	assert.GreaterOrEqual(t, res.Age, time.Hour)
}

func TestRefreshRejectsGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a crl"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cache.crl")
	cache := NewCache(srv.URL, path, time.Hour, testLogger())

	res := cache.Refresh()
	assert.True(t, errors.Contains(res.Err, ErrParseCRL), "expected %v, got %v", ErrParseCRL, res.Err)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "garbage must not be written to the cache")
}
