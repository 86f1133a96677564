// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"os"

	"github.com/absmach/acme-agent/install"
	"github.com/absmach/acme-agent/pkg/errors"
)

// AccountKeyBits is the RSA modulus size of account keys.
const AccountKeyBits = 2048

const rsaKeyPEMType = "RSA PRIVATE KEY"

var (
	// ErrAccountKey indicates the persisted account key is unreadable or malformed.
	ErrAccountKey = errors.New("failed to load account key")

	// ErrNoAccount indicates the CA knows no account for the presented key.
	ErrNoAccount = errors.New("no account registered for this key")

	// ErrAccountClosed indicates use of an account after Close released its key.
	ErrAccountClosed = errors.New("account key has been released")
)

// Account is a registered ACME account: the CA-assigned URL (doubling as
// the JWS kid) plus the private key it is bound to. The key handle is live
// until Close; callers own the lifecycle.
type Account struct {
	URL     string
	Status  string
	Contact []string

	key *rsa.PrivateKey
	jwk JWK
}

// Key exposes the public half for key-authorization computation.
func (a *Account) Key() *rsa.PublicKey {
	if a.key == nil {
		return nil
	}
	return &a.key.PublicKey
}

// KeyAuthorization computes the http-01 proof for token under this account.
func (a *Account) KeyAuthorization(token string) (string, error) {
	if a.key == nil {
		return "", ErrAccountClosed
	}
	return KeyAuthorization(token, &a.key.PublicKey)
}

// Close drops the private-key handle. The Account is unusable afterwards;
// signing attempts fail with ErrAccountClosed instead of dereferencing a
// stale key.
func (a *Account) Close() {
	a.key = nil
}

// CreateAccount registers a new account: it generates a 2048-bit RSA key,
// persists it at keyPath with mode 0600 before talking to the CA, and posts
// termsOfServiceAgreed with a jwk-protected header. The account URL comes
// from the Location header and its absence is fatal.
func (c *Client) CreateAccount(keyPath string, contacts []string) (*Account, error) {
	dir, err := c.Directory(false)
	if err != nil {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, AccountKeyBits)
	if err != nil {
		return nil, errors.Wrap(ErrAccountKey, err)
	}
	if err := saveAccountKey(keyPath, key); err != nil {
		return nil, err
	}

	acct := &Account{key: key, jwk: JWKFromKey(&key.PublicKey), Contact: contacts}

	payload, err := json.Marshal(accountRequest{
		TermsOfServiceAgreed: true,
		Contact:              contacts,
	})
	if err != nil {
		return nil, err
	}

	body, resp, err := c.signedPost(acct, dir.NewAccount, payload, true)
	if err != nil {
		return nil, err
	}
	location := resp.Header.Get(headerLocation)
	if location == "" {
		return nil, ErrMissingLocation
	}

	var ar accountResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, err
	}
	acct.URL = location
	acct.Status = ar.Status

	c.logger.Info("created ACME account", "account", location)
	return acct, nil
}

// LoadAccount recovers an existing account from its persisted key. The
// account URL is looked up by public key (onlyReturnExisting) rather than
// stored locally, so a CA-side URL change cannot strand the agent.
func (c *Client) LoadAccount(keyPath string) (*Account, error) {
	dir, err := c.Directory(false)
	if err != nil {
		return nil, err
	}

	key, err := loadAccountKey(keyPath)
	if err != nil {
		return nil, err
	}
	acct := &Account{key: key, jwk: JWKFromKey(&key.PublicKey)}

	payload, err := json.Marshal(accountRequest{OnlyReturnExisting: true})
	if err != nil {
		return nil, err
	}

	body, resp, err := c.signedPost(acct, dir.NewAccount, payload, true)
	if err != nil {
		if p, ok := AsProblem(err); ok && p.Status == http.StatusBadRequest {
			return nil, errors.Wrap(ErrNoAccount, err)
		}
		return nil, err
	}
	location := resp.Header.Get(headerLocation)
	if location == "" {
		return nil, ErrMissingLocation
	}

	var ar accountResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, err
	}
	acct.URL = location
	acct.Status = ar.Status
	acct.Contact = ar.Contact

	return acct, nil
}

// EnsureAccount loads the account when a key file is present and registers
// a fresh one otherwise.
func (c *Client) EnsureAccount(keyPath string, contacts []string) (*Account, error) {
	if _, err := os.Stat(keyPath); err != nil {
		if os.IsNotExist(err) {
			return c.CreateAccount(keyPath, contacts)
		}
		return nil, errors.Wrap(ErrAccountKey, err)
	}
	return c.LoadAccount(keyPath)
}

func saveAccountKey(path string, key *rsa.PrivateKey) error {
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  rsaKeyPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := install.WriteFileAtomic(path, pemBytes, install.KeyMode); err != nil {
		return errors.Wrap(ErrAccountKey, err)
	}
	return nil
}

func loadAccountKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrAccountKey, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != rsaKeyPEMType {
		return nil, errors.Wrap(ErrAccountKey, errors.New("no RSA private key block"))
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(ErrAccountKey, err)
	}
	return key, nil
}

// AsProblem extracts the CA problem document from an error chain, if the
// error originated as a protocol rejection.
func AsProblem(err error) (*Problem, bool) {
	for err != nil {
		if p, ok := err.(*Problem); ok {
			return p, true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
