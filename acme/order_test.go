// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObtain(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(90 * 24 * time.Hour)
	der := selfSignedDER(t, notBefore, notAfter)

	cases := []struct {
		desc     string
		certBody []byte
	}{
		{
			desc:     "certificate delivered as PEM",
			certBody: derToPEM(der),
		},
		{
			desc:     "certificate delivered as raw DER",
			certBody: der,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ca := newFakeCA(t)
			ca.certBody = tc.certBody
			client := ca.client(t)
			challengeDir := t.TempDir()

			acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
			require.NoError(t, err)

			art, err := client.Obtain(acct, []string{"example.com"}, challengeDir)
			require.NoError(t, err)
			assert.Equal(t, "4242", art.SerialNumber)
			assert.Equal(t, notAfter.Unix(), art.NotAfter.Unix())
			assert.Contains(t, string(art.ChainPEM), "BEGIN CERTIFICATE")
			assert.Contains(t, string(art.PrivateKeyPEM), "PRIVATE KEY")

			leaf, err := LeafCertificate(art.ChainPEM)
			require.NoError(t, err)
			assert.Equal(t, "example.com", leaf.Subject.CommonName)

			keyAuth, err := acct.KeyAuthorization("tok-1")
			require.NoError(t, err)
			published, err := os.ReadFile(filepath.Join(challengeDir, ".well-known", "acme-challenge", "tok-1"))
			require.NoError(t, err)
			assert.Equal(t, keyAuth, string(published), "challenge file must hold the key authorization")
		})
	}
}

func TestObtainUnsupportedChallenge(t *testing.T) {
	ca := newFakeCA(t)
	ca.dnsOnlyChallenge = true
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	_, err = client.Obtain(acct, []string{"example.com"}, t.TempDir())
	assert.True(t, errors.Contains(err, ErrUnsupportedChallenge), "expected %v, got %v", ErrUnsupportedChallenge, err)
}

func TestCreateOrderMissingLocation(t *testing.T) {
	ca := newFakeCA(t)
	ca.omitOrderLocation = true
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	_, err = client.CreateOrder(acct, []string{"example.com"})
	assert.True(t, errors.Contains(err, ErrMissingLocation), "expected %v, got %v", ErrMissingLocation, err)
}

func TestPollAuthorizationInvalid(t *testing.T) {
	ca := newFakeCA(t)
	ca.authzPollsToValid = -1
	ca.challengeDetail = "token mismatch during validation"
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	_, err = client.Obtain(acct, []string{"example.com"}, t.TempDir())
	assert.True(t, errors.Contains(err, ErrAuthorizationFailed), "expected %v, got %v", ErrAuthorizationFailed, err)
	assert.Contains(t, err.Error(), ca.challengeDetail, "CA detail must survive in the error chain")
}

func TestPollAuthorizationTimeout(t *testing.T) {
	ca := newFakeCA(t)
	ca.authzPollsToValid = 1 << 30
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	order, err := client.CreateOrder(acct, []string{"example.com"})
	require.NoError(t, err)
	authz, err := client.FetchAuthorization(acct, order.Authorizations[0])
	require.NoError(t, err)
	ch, ok := authz.HTTP01()
	require.True(t, ok)
	require.NoError(t, client.FulfillHTTP01(acct, ch, t.TempDir()))

	err = client.PollAuthorization(acct, order.Authorizations[0])
	assert.True(t, errors.Contains(err, ErrAuthorizationTimeout), "expected %v, got %v", ErrAuthorizationTimeout, err)
	assert.Contains(t, err.Error(), "attempts over", "timeout must report attempt count and elapsed time")
}

func TestFinalizeOrderFailed(t *testing.T) {
	ca := newFakeCA(t)
	ca.orderPollsToValid = -1
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	_, err = client.Obtain(acct, []string{"example.com"}, t.TempDir())
	assert.True(t, errors.Contains(err, ErrOrderFailed), "expected %v, got %v", ErrOrderFailed, err)
	assert.Contains(t, err.Error(), "issuance failed")
}

func TestFinalizeOrderTimeout(t *testing.T) {
	ca := newFakeCA(t)
	ca.orderPollsToValid = 1 << 30
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	_, err = client.Obtain(acct, []string{"example.com"}, t.TempDir())
	assert.True(t, errors.Contains(err, ErrOrderTimeout), "expected %v, got %v", ErrOrderTimeout, err)
}

func TestRevokeCertificate(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)

	acct, err := client.EnsureAccount(filepath.Join(t.TempDir(), "account.key"), nil)
	require.NoError(t, err)

	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	assert.NoError(t, client.RevokeCertificate(acct, der))
}

func TestNormalizeChainPEM(t *testing.T) {
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	otherDER := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	cases := []struct {
		desc  string
		body  []byte
		certs int
		err   error
	}{
		{
			desc:  "single PEM certificate",
			body:  derToPEM(der),
			certs: 1,
		},
		{
			desc:  "single DER certificate",
			body:  der,
			certs: 1,
		},
		{
			desc:  "concatenated DER chain",
			body:  append(append([]byte{}, der...), otherDER...),
			certs: 2,
		},
		{
			desc:  "PEM chain with non-certificate block",
			body:  append([]byte("-----BEGIN GARBAGE-----\nZm9v\n-----END GARBAGE-----\n"), derToPEM(der)...),
			certs: 1,
		},
		{
			desc: "garbage body",
			body: []byte("not a certificate"),
			err:  ErrNoCertificate,
		},
		{
			desc: "empty body",
			body: nil,
			err:  ErrNoCertificate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			out, err := NormalizeChainPEM(tc.body)
			if tc.err != nil {
				assert.True(t, errors.Contains(err, tc.err), "expected %v, got %v", tc.err, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.certs, strings.Count(string(out), "BEGIN CERTIFICATE"))
			certs, err := parseChain(out)
			require.NoError(t, err)
			assert.Len(t, certs, tc.certs)
		})
	}
}

func TestLeafCertificate(t *testing.T) {
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	leaf, err := LeafCertificate(derToPEM(der))
	require.NoError(t, err)
	assert.Equal(t, "4242", leaf.SerialNumber.String())

	_, err = LeafCertificate([]byte("junk"))
	assert.True(t, errors.Contains(err, ErrNoCertificate), "expected %v, got %v", ErrNoCertificate, err)
}

func parseChain(chainPEM []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := chainPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return certs, nil
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
}
