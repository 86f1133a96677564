// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"testing"

	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	testCases := []struct {
		desc  string
		setup func(ca *fakeCA)
		err   error
	}{
		{
			desc:  "complete directory",
			setup: func(ca *fakeCA) {},
			err:   nil,
		},
		{
			desc:  "directory missing newOrder",
			setup: func(ca *fakeCA) { ca.dropEndpoints = true },
			err:   ErrDirectoryIncomplete,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			ca := newFakeCA(t)
			tc.setup(ca)
			client := ca.client(t)

			dir, err := client.Directory(false)
			assert.True(t, errors.Contains(err, tc.err), "expected %v, got %v", tc.err, err)
			if tc.err == nil {
				assert.NotEmpty(t, dir.NewNonce)
				assert.NotEmpty(t, dir.NewAccount)
				assert.NotEmpty(t, dir.NewOrder)
			}
		})
	}
}

func TestDirectoryCached(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)

	first, err := client.Directory(false)
	require.NoError(t, err)

	// Break the CA; the cached copy must still be served.
	ca.server.Close()
	second, err := client.Directory(false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = client.Directory(true)
	assert.True(t, errors.Contains(err, ErrTransport), "force refresh must hit the network")
}

func TestFreshNonceMissingHeader(t *testing.T) {
	ca := newFakeCA(t)
	ca.omitNonceHeader = true
	client := ca.client(t)

	_, err := client.freshNonce(ca.url("/new-nonce"))
	assert.True(t, errors.Contains(err, ErrNonceHeader), "expected %v, got %v", ErrNonceHeader, err)
}

func TestNonceSlotConsumedOnTake(t *testing.T) {
	ca := newFakeCA(t)
	client := ca.client(t)

	client.nonce = "held"
	n, err := client.takeNonce()
	require.NoError(t, err)
	assert.Equal(t, "held", n)
	assert.Empty(t, client.nonce, "taking the nonce must clear the slot")

	// Slot empty: the next take fetches from newNonce.
	n, err = client.takeNonce()
	require.NoError(t, err)
	assert.NotEmpty(t, n)
	assert.NotEqual(t, "held", n)
}
