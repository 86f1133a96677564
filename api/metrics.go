// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	agent "github.com/absmach/acme-agent"
	"github.com/go-kit/kit/metrics"
)

var _ agent.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     agent.Service
}

// MetricsMiddleware instruments core service by tracking request count and latency.
func MetricsMiddleware(svc agent.Service, counter metrics.Counter, latency metrics.Histogram) agent.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Status(ctx context.Context) (agent.Status, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "status").Add(1)
		mm.latency.With("method", "status").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) Renew(ctx context.Context) (agent.RenewalRecord, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "renew").Add(1)
		mm.latency.With("method", "renew").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.svc.Renew(ctx)
}

func (mm *metricsMiddleware) CheckAndRenew(ctx context.Context) (agent.RenewalRecord, bool, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "check_and_renew").Add(1)
		mm.latency.With("method", "check_and_renew").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.svc.CheckAndRenew(ctx)
}

func (mm *metricsMiddleware) Revoke(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "revoke").Add(1)
		mm.latency.With("method", "revoke").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.svc.Revoke(ctx)
}

func (mm *metricsMiddleware) History(ctx context.Context, pm agent.PageMetadata) (agent.RenewalPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "history").Add(1)
		mm.latency.With("method", "history").Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.svc.History(ctx, pm)
}
