// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package revocation checks whether the installed certificate has been
// revoked, using a cached CRL as the primary signal and OCSP as an optional
// secondary probe. Inconclusive checks report StatusUnknown; callers must
// never collapse unknown into not-revoked.
package revocation

import (
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/absmach/acme-agent/install"
	"github.com/absmach/acme-agent/pkg/errors"
)

// Status is the tri-state outcome of a revocation check.
type Status int

const (
	StatusUnknown Status = iota
	StatusNotRevoked
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusRevoked:
		return "revoked"
	case StatusNotRevoked:
		return "not-revoked"
	default:
		return "unknown"
	}
}

// DefaultMaxAge is how long a cached CRL stays fresh.
const DefaultMaxAge = 24 * time.Hour

var (
	ErrDownloadCRL = errors.New("failed to download CRL")
	ErrParseCRL    = errors.New("failed to parse CRL")
	ErrReadCert    = errors.New("failed to read certificate")
)

// RefreshResult reports one cache-refresh attempt. Age and RevokedCount
// describe whatever cache is on disk afterwards, even when the download
// failed: a stale-but-present cache is still usable.
type RefreshResult struct {
	Updated      bool
	Age          time.Duration
	RevokedCount int
	Err          error
}

// Cache is a file-backed CRL cache for one distribution point.
type Cache struct {
	url        string
	path       string
	maxAge     time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCache builds a Cache storing the CRL from url at path.
func NewCache(url, path string, maxAge time.Duration, logger *slog.Logger) *Cache {
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		url:        url,
		path:       path,
		maxAge:     maxAge,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Path returns the on-disk cache location.
func (c *Cache) Path() string {
	return c.path
}

// Refresh downloads the CRL when the cache is missing or its age has
// reached maxAge (a cache exactly maxAge old is already stale). The result
// always carries the current cache age, so callers can decide whether a
// failed download still leaves them with something usable.
func (c *Cache) Refresh() RefreshResult {
	res := RefreshResult{}

	stale := true
	if info, err := os.Stat(c.path); err == nil {
		res.Age = time.Since(info.ModTime())
		stale = res.Age >= c.maxAge
	}

	if stale {
		if err := c.download(); err != nil {
			res.Err = err
			c.logger.Warn("CRL refresh failed, keeping cached copy", "url", c.url, "age", res.Age, "error", err)
		} else {
			res.Updated = true
			res.Age = 0
		}
	}

	if list, err := parseCRLFile(c.path); err == nil {
		res.RevokedCount = len(list.RevokedCertificateEntries)
	}
	return res
}

func (c *Cache) download() error {
	resp, err := c.httpClient.Get(c.url)
	if err != nil {
		return errors.Wrap(ErrDownloadCRL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(ErrDownloadCRL, errors.New(resp.Status))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(ErrDownloadCRL, err)
	}
	// Reject garbage before it poisons the cache.
	if _, err := parseCRL(body); err != nil {
		return err
	}
	if err := install.WriteFileAtomic(c.path, body, install.CertMode); err != nil {
		return errors.Wrap(ErrDownloadCRL, err)
	}
	return nil
}

// IsRevoked reports whether the certificate at certPath is listed in the
// CRL at crlPath. Any parse failure yields StatusUnknown together with the
// cause; unknown is not not-revoked.
func IsRevoked(certPath, crlPath string) (Status, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return StatusUnknown, errors.Wrap(ErrReadCert, err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return StatusUnknown, errors.Wrap(ErrReadCert, errors.New("no PEM block"))
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return StatusUnknown, errors.Wrap(ErrReadCert, err)
	}

	list, err := parseCRLFile(crlPath)
	if err != nil {
		return StatusUnknown, err
	}

	for _, entry := range list.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return StatusRevoked, nil
		}
	}
	return StatusNotRevoked, nil
}

func parseCRLFile(path string) (*x509.RevocationList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrParseCRL, err)
	}
	return parseCRL(raw)
}

// parseCRL accepts both DER and PEM encodings of a CRL.
func parseCRL(raw []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(raw); block != nil && block.Type == "X509 CRL" {
		raw = block.Bytes
	}
	list, err := x509.ParseRevocationList(raw)
	if err != nil {
		return nil, errors.Wrap(ErrParseCRL, err)
	}
	return list, nil
}
