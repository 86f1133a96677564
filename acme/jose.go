// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/absmach/acme-agent/pkg/errors"
)

// algRS256 is the only JWS algorithm the agent signs with. Account and leaf
// keys are RSA-2048 unless reconfigured.
const algRS256 = "RS256"

var errSignPayload = errors.New("failed to sign request payload")

// base64url encodes without padding, the alphabet every ACME field uses.
func base64url(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// JWK is the JSON Web Key form of an RSA public key. Field order is
// lexicographic (e, kty, n), which makes the plain JSON encoding of this
// struct the canonical form required for thumbprinting (RFC 7638).
type JWK struct {
	E   string `json:"e"`
	Kty string `json:"kty"`
	N   string `json:"n"`
}

// JWKFromKey builds the JWK form of an RSA public key.
func JWKFromKey(pub *rsa.PublicKey) JWK {
	e := make([]byte, 4)
	binary.BigEndian.PutUint32(e, uint32(pub.E))
	return JWK{
		E:   base64url(bytes.TrimLeft(e, "\x00")),
		Kty: "RSA",
		N:   base64url(pub.N.Bytes()),
	}
}

// Thumbprint returns base64url(SHA-256(canonical JWK)). It is deterministic
// for a given key: the canonical form has fixed member order and no
// whitespace.
func (k JWK) Thumbprint() (string, error) {
	canonical, err := json.Marshal(k)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return base64url(sum[:]), nil
}

// KeyAuthorization computes the http-01 proof string for a challenge token:
// token || "." || thumbprint. The CA compares it byte for byte, so nothing
// may be appended to it.
func KeyAuthorization(token string, key *rsa.PublicKey) (string, error) {
	tp, err := JWKFromKey(key).Thumbprint()
	if err != nil {
		return "", err
	}
	return token + "." + tp, nil
}

// protectedHeader is the JWS protected header of one signed request.
// Exactly one of JWK and Kid is set: JWK only for newAccount and
// account lookup by key, Kid (the account URL) for everything else.
type protectedHeader struct {
	Alg   string `json:"alg"`
	JWK   *JWK   `json:"jwk,omitempty"`
	Kid   string `json:"kid,omitempty"`
	Nonce string `json:"nonce"`
	URL   string `json:"url"`
}

// jws is the flattened JSON serialization posted to the CA.
type jws struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// signJWS signs payload under the protected header with RSASSA-PKCS1-v1_5
// SHA-256. A nil payload produces the empty payload segment of a
// POST-as-GET request, which is distinct from signing the JSON text "{}".
func signJWS(key *rsa.PrivateKey, header protectedHeader, payload []byte) ([]byte, error) {
	protected, err := json.Marshal(header)
	if err != nil {
		return nil, errors.Wrap(errSignPayload, err)
	}

	protected64 := base64url(protected)
	var payload64 string
	if payload != nil {
		payload64 = base64url(payload)
	}

	digest := sha256.Sum256([]byte(protected64 + "." + payload64))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrap(errSignPayload, err)
	}

	body, err := json.Marshal(jws{
		Protected: protected64,
		Payload:   payload64,
		Signature: base64url(sig),
	})
	if err != nil {
		return nil, errors.Wrap(errSignPayload, err)
	}
	return body, nil
}
