// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"

	"github.com/absmach/acme-agent/pkg/errors"
)

// LeafKeyBits is the RSA modulus size of leaf (server) keys.
const LeafKeyBits = 2048

var errGenerateCSR = errors.New("failed to generate key and CSR")

// GenerateKeyAndCSR produces a fresh RSA-2048 leaf key and a PKCS#10
// request covering all domains, with the first as common name. A new key is
// generated per order; leaf keys are never reused across renewals.
func GenerateKeyAndCSR(domains []string) (*rsa.PrivateKey, []byte, error) {
	if len(domains) == 0 {
		return nil, nil, errors.Wrap(errGenerateCSR, errors.New("no domains"))
	}

	key, err := rsa.GenerateKey(rand.Reader, LeafKeyBits)
	if err != nil {
		return nil, nil, errors.Wrap(errGenerateCSR, err)
	}

	template := x509.CertificateRequest{
		SignatureAlgorithm: x509.SHA256WithRSA,
		Subject: pkix.Name{
			CommonName: domains[0],
		},
		DNSNames: domains,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return nil, nil, errors.Wrap(errGenerateCSR, err)
	}
	return key, csrDER, nil
}

// MarshalKeyPEM encodes an RSA private key as PKCS#1 PEM.
func MarshalKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  rsaKeyPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}
