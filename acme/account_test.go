// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)
	keyPath := filepath.Join(t.TempDir(), "account.key")

	acct, err := client.CreateAccount(keyPath, []string{"mailto:ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, ca.url("/account/1"), acct.URL)
	assert.Equal(t, StatusValid, acct.Status)

	info, err := os.Stat(keyPath)
	require.NoError(t, err, "account key must be persisted before the CA call")
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCreateAccountMissingLocation(t *testing.T) {
	ca := newFakeCA(t)
	ca.omitAccountLocation = true
	client := ca.client(t)
	keyPath := filepath.Join(t.TempDir(), "account.key")

	_, err := client.CreateAccount(keyPath, nil)
	assert.True(t, errors.Contains(err, ErrMissingLocation), "expected %v, got %v", ErrMissingLocation, err)
}

func TestLoadAccount(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)
	keyPath := filepath.Join(t.TempDir(), "account.key")

	created, err := client.CreateAccount(keyPath, nil)
	require.NoError(t, err)

	loaded, err := client.LoadAccount(keyPath)
	require.NoError(t, err)
	assert.Equal(t, created.URL, loaded.URL, "lookup by key must resolve the same account")
	assert.Equal(t, created.Key().N, loaded.Key().N)
}

func TestLoadAccountUnregisteredKey(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)
	keyPath := filepath.Join(t.TempDir(), "account.key")

	// Persist a key the CA has never seen.
	key := testKey(t)
	require.NoError(t, saveAccountKey(keyPath, key))

	_, err := client.LoadAccount(keyPath)
	assert.True(t, errors.Contains(err, ErrNoAccount), "expected %v, got %v", ErrNoAccount, err)
}

func TestEnsureAccount(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)
	keyPath := filepath.Join(t.TempDir(), "account.key")

	first, err := client.EnsureAccount(keyPath, nil)
	require.NoError(t, err)

	second, err := client.EnsureAccount(keyPath, nil)
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.Key().N, second.Key().N, "second ensure must reuse the persisted key")
}

func TestAccountClose(t *testing.T) {
	acct := &Account{key: testKey(t)}
	_, err := acct.KeyAuthorization("tok")
	require.NoError(t, err)

	acct.Close()
	_, err = acct.KeyAuthorization("tok")
	assert.True(t, errors.Contains(err, ErrAccountClosed), "expected %v, got %v", ErrAccountClosed, err)
	assert.Nil(t, acct.Key())
}

func TestLoadAccountKeyMalformed(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "account.key")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

	_, err := loadAccountKey(keyPath)
	assert.True(t, errors.Contains(err, ErrAccountKey), "expected %v, got %v", ErrAccountKey, err)
}
