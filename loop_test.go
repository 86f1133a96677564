// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/mocks"
	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	svc := mocks.NewService(t)
	svc.On("CheckAndRenew", mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(agent.RenewalRecord{}, false, nil)

	loop := agent.NewLoop(svc, time.Hour, time.Hour, testLogger())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestLoopBacksOffAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	svc := mocks.NewService(t)
	svc.On("CheckAndRenew", mock.Anything).Run(func(mock.Arguments) {
		if atomic.AddInt32(&calls, 1) >= 3 {
			cancel()
		}
	}).Return(agent.RenewalRecord{}, false, errors.New("CA unreachable"))

	// A failing cycle must be retried on the short backoff, not the
	// hour-long interval.
	loop := agent.NewLoop(svc, time.Hour, time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err, "cycle errors must not terminate the loop")
	case <-time.After(5 * time.Second):
		t.Fatal("loop stuck on the regular interval after an error")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestLoopContinuesAfterSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	svc := mocks.NewService(t)
	svc.On("CheckAndRenew", mock.Anything).Run(func(mock.Arguments) {
		if atomic.AddInt32(&calls, 1) >= 2 {
			cancel()
		}
	}).Return(agent.RenewalRecord{Outcome: agent.OutcomeRenewed}, true, nil)

	loop := agent.NewLoop(svc, time.Millisecond, time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not run a second cycle")
	}
}
