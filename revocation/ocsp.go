// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package revocation

import (
	"bytes"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
	"golang.org/x/crypto/ocsp"
)

var errOCSP = errors.New("OCSP query failed")

// CheckOCSP asks the responder at url about cert, signed by issuer. It is
// a secondary probe next to the CRL check and follows the same tri-state
// contract: responder errors surface as StatusUnknown, never as good.
func CheckOCSP(url string, cert, issuer *x509.Certificate) (Status, error) {
	reqDER, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return StatusUnknown, errors.Wrap(errOCSP, err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Post(url, "application/ocsp-request", bytes.NewReader(reqDER))
	if err != nil {
		return StatusUnknown, errors.Wrap(errOCSP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusUnknown, errors.Wrap(errOCSP, errors.New(resp.Status))
	}
	der, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusUnknown, errors.Wrap(errOCSP, err)
	}

	parsed, err := ocsp.ParseResponseForCert(der, cert, issuer)
	if err != nil {
		return StatusUnknown, errors.Wrap(errOCSP, err)
	}

	switch parsed.Status {
	case ocsp.Good:
		return StatusNotRevoked, nil
	case ocsp.Revoked:
		return StatusRevoked, nil
	default:
		return StatusUnknown, nil
	}
}
