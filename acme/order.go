// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/absmach/acme-agent/install"
	"github.com/absmach/acme-agent/pkg/errors"
)

// challengeWellKnown is the plain-HTTP path prefix the CA fetches the
// key authorization from, relative to the challenge directory.
const challengeWellKnown = ".well-known/acme-challenge"

const certPEMType = "CERTIFICATE"

var (
	// ErrUnsupportedChallenge indicates the CA offered no http-01 challenge.
	ErrUnsupportedChallenge = errors.New("challenge type not supported: agent fulfils http-01 only")

	// ErrAuthorizationFailed indicates the CA marked the challenge invalid.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrAuthorizationTimeout indicates challenge validation never reached a
	// terminal state within the polling bound.
	ErrAuthorizationTimeout = errors.New("authorization polling timed out")

	// ErrOrderFailed indicates the order reached the terminal invalid state.
	ErrOrderFailed = errors.New("order failed")

	// ErrOrderTimeout indicates finalize polling never saw the order valid.
	ErrOrderTimeout = errors.New("order polling timed out")

	// ErrNoCertificate indicates the download response held no certificate.
	ErrNoCertificate = errors.New("no certificate found in download response")

	// ErrChallengeFile indicates the key authorization could not be published.
	ErrChallengeFile = errors.New("failed to write challenge file")
)

// Artifact is the product of one successful order: the leaf key and the
// chain exactly as the CA returned it, normalized to PEM, plus the leaf
// validity data the renewal policy needs.
type Artifact struct {
	PrivateKeyPEM []byte
	ChainPEM      []byte
	SerialNumber  string
	NotBefore     time.Time
	NotAfter      time.Time
}

// CreateOrder posts a new order for the given DNS names. A fresh order is
// created on every renewal attempt; orders are never resumed across cycles.
// The order URL comes from the Location header and its absence is fatal.
func (c *Client) CreateOrder(acct *Account, domains []string) (Order, error) {
	dir, err := c.Directory(false)
	if err != nil {
		return Order{}, err
	}

	// Always an explicit array, even for a single name.
	identifiers := make([]Identifier, 0, len(domains))
	for _, d := range domains {
		identifiers = append(identifiers, Identifier{Type: "dns", Value: d})
	}
	payload, err := json.Marshal(orderRequest{Identifiers: identifiers})
	if err != nil {
		return Order{}, err
	}

	body, resp, err := c.signedPost(acct, dir.NewOrder, payload, false)
	if err != nil {
		return Order{}, err
	}
	location := resp.Header.Get(headerLocation)
	if location == "" {
		return Order{}, ErrMissingLocation
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, err
	}
	order.URL = location

	c.logger.Info("created order", "order", order.URL, "status", order.Status)
	return order, nil
}

// FetchAuthorization reads an authorization via POST-as-GET and verifies an
// http-01 challenge is on offer. Authorizations carrying only other
// challenge types are rejected here, before any work is done on them.
func (c *Client) FetchAuthorization(acct *Account, url string) (Authorization, error) {
	body, _, err := c.postAsGet(acct, url)
	if err != nil {
		return Authorization{}, err
	}

	var authz Authorization
	if err := json.Unmarshal(body, &authz); err != nil {
		return Authorization{}, err
	}
	authz.URL = url

	if _, ok := authz.HTTP01(); !ok {
		return Authorization{}, ErrUnsupportedChallenge
	}
	return authz, nil
}

// FulfillHTTP01 publishes the key authorization for the challenge token
// under challengeDir and then signals readiness to the CA. The file must be
// on disk and world readable before the readiness POST, or the CA may race
// its validation fetch against the write and see a 404.
func (c *Client) FulfillHTTP01(acct *Account, ch Challenge, challengeDir string) error {
	keyAuth, err := acct.KeyAuthorization(ch.Token)
	if err != nil {
		return err
	}

	tokenDir := filepath.Join(challengeDir, challengeWellKnown)
	if err := os.MkdirAll(tokenDir, 0o755); err != nil {
		return errors.Wrap(ErrChallengeFile, err)
	}
	tokenPath := filepath.Join(tokenDir, ch.Token)
	if err := install.WriteFileAtomic(tokenPath, []byte(keyAuth), install.CertMode); err != nil {
		return errors.Wrap(ErrChallengeFile, err)
	}
	c.logger.Debug("published key authorization", "path", tokenPath)

	// Empty JSON object, not POST-as-GET: readiness is a state change.
	if _, _, err := c.signedPost(acct, ch.URL, []byte("{}"), false); err != nil {
		return err
	}
	return nil
}

// PollAuthorization re-reads the authorization until its http-01 challenge
// turns valid. invalid is terminal and carries the CA's error detail; the
// timeout is a hard bound independent of CA responsiveness.
func (c *Client) PollAuthorization(acct *Account, url string) error {
	return c.pollUntil(c.authzTimeout, ErrAuthorizationTimeout, func() (bool, error) {
		body, _, err := c.postAsGet(acct, url)
		if err != nil {
			return false, err
		}
		var authz Authorization
		if err := json.Unmarshal(body, &authz); err != nil {
			return false, err
		}
		ch, ok := authz.HTTP01()
		if !ok {
			return false, ErrUnsupportedChallenge
		}
		switch ch.Status {
		case StatusValid:
			return true, nil
		case StatusInvalid:
			if ch.Error != nil {
				return false, errors.Wrap(ErrAuthorizationFailed, ch.Error)
			}
			return false, ErrAuthorizationFailed
		default:
			return false, nil
		}
	})
}

// FinalizeOrder submits the CSR (base64url, not standard base64) and polls
// the order URL until it is valid and carries a certificate URL. invalid is
// terminal; the timeout is distinct from, and longer than, the
// authorization polling bound.
func (c *Client) FinalizeOrder(acct *Account, order Order, csrDER []byte) (Order, error) {
	payload, err := json.Marshal(finalizeRequest{CSR: base64url(csrDER)})
	if err != nil {
		return Order{}, err
	}
	if _, _, err := c.signedPost(acct, order.Finalize, payload, false); err != nil {
		return Order{}, err
	}

	final := order
	err = c.pollUntil(c.orderTimeout, ErrOrderTimeout, func() (bool, error) {
		body, _, err := c.postAsGet(acct, order.URL)
		if err != nil {
			return false, err
		}
		var o Order
		if err := json.Unmarshal(body, &o); err != nil {
			return false, err
		}
		o.URL = order.URL
		switch o.Status {
		case StatusValid:
			final = o
			return true, nil
		case StatusInvalid:
			if o.Error != nil {
				return false, errors.Wrap(ErrOrderFailed, o.Error)
			}
			return false, ErrOrderFailed
		default:
			// pending/ready/processing: keep polling.
			return false, nil
		}
	})
	if err != nil {
		return Order{}, err
	}
	if final.Certificate == "" {
		return Order{}, errors.Wrap(ErrOrderFailed, errors.New("valid order without certificate URL"))
	}
	return final, nil
}

// DownloadCertificate fetches the issued chain via POST-as-GET. The CA may
// answer with PEM text or raw DER; both are normalized to a PEM chain with
// standard headers and 64-character wrapping.
func (c *Client) DownloadCertificate(acct *Account, url string) ([]byte, error) {
	body, _, err := c.postAsGet(acct, url)
	if err != nil {
		return nil, err
	}
	return NormalizeChainPEM(body)
}

// RevokeCertificate asks the CA to revoke the given DER certificate.
func (c *Client) RevokeCertificate(acct *Account, certDER []byte) error {
	dir, err := c.Directory(false)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(revokeRequest{Certificate: base64url(certDER)})
	if err != nil {
		return err
	}
	_, _, err = c.signedPost(acct, dir.RevokeCert, payload, false)
	return err
}

// Obtain runs the whole order pipeline for the given domains: key and CSR
// generation, order creation, http-01 fulfilment of every authorization,
// finalize and certificate download. On any failure the order is abandoned;
// the next cycle starts a brand-new one.
func (c *Client) Obtain(acct *Account, domains []string, challengeDir string) (Artifact, error) {
	leafKey, csrDER, err := GenerateKeyAndCSR(domains)
	if err != nil {
		return Artifact{}, err
	}

	order, err := c.CreateOrder(acct, domains)
	if err != nil {
		return Artifact{}, err
	}

	for _, authzURL := range order.Authorizations {
		authz, err := c.FetchAuthorization(acct, authzURL)
		if err != nil {
			return Artifact{}, err
		}
		ch, _ := authz.HTTP01()
		if ch.Status == StatusValid {
			continue
		}
		if err := c.FulfillHTTP01(acct, ch, challengeDir); err != nil {
			return Artifact{}, err
		}
		if err := c.PollAuthorization(acct, authzURL); err != nil {
			return Artifact{}, err
		}
		c.logger.Info("authorization valid", "identifier", authz.Identifier.Value)
	}

	final, err := c.FinalizeOrder(acct, order, csrDER)
	if err != nil {
		return Artifact{}, err
	}

	chainPEM, err := c.DownloadCertificate(acct, final.Certificate)
	if err != nil {
		return Artifact{}, err
	}

	leaf, err := LeafCertificate(chainPEM)
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		PrivateKeyPEM: MarshalKeyPEM(leafKey),
		ChainPEM:      chainPEM,
		SerialNumber:  leaf.SerialNumber.String(),
		NotBefore:     leaf.NotBefore,
		NotAfter:      leaf.NotAfter,
	}, nil
}

// pollUntil invokes fn every pollInterval until it reports done, returns an
// error, or deadline elapses. Timeout errors name the attempt count and
// elapsed time so operators can tell a slow CA from a dead one.
func (c *Client) pollUntil(timeout time.Duration, timeoutErr error, fn func() (bool, error)) error {
	start := time.Now()
	deadline := start.Add(timeout)
	attempts := 0
	for {
		attempts++
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Add(c.pollInterval).Before(deadline) {
			return errors.Wrap(timeoutErr,
				fmt.Errorf("%d attempts over %s", attempts, time.Since(start).Round(time.Millisecond)))
		}
		time.Sleep(c.pollInterval)
	}
}

// NormalizeChainPEM accepts either PEM text or binary DER (one or more
// concatenated certificates) and returns the chain as canonical PEM.
func NormalizeChainPEM(body []byte) ([]byte, error) {
	// PEM input: keep only certificate blocks, re-encoded canonically.
	if rest := body; len(rest) > 0 {
		var out []byte
		found := false
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != certPEMType {
				continue
			}
			found = true
			out = append(out, pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: block.Bytes})...)
		}
		if found {
			return out, nil
		}
	}

	// DER input.
	certs, err := x509.ParseCertificates(body)
	if err != nil || len(certs) == 0 {
		return nil, ErrNoCertificate
	}
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: cert.Raw})...)
	}
	return out, nil
}

// LeafCertificate parses the first certificate of a PEM chain.
func LeafCertificate(chainPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(chainPEM)
	if block == nil || block.Type != certPEMType {
		return nil, ErrNoCertificate
	}
	return x509.ParseCertificate(block.Bytes)
}
