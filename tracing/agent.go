// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"

	agent "github.com/absmach/acme-agent"
	"go.opentelemetry.io/otel/trace"
)

var _ agent.Service = (*tracingMiddleware)(nil)

type tracingMiddleware struct {
	tracer trace.Tracer
	svc    agent.Service
}

// New returns a new agent service with tracing capabilities.
func New(svc agent.Service, tracer trace.Tracer) agent.Service {
	return &tracingMiddleware{tracer, svc}
}

func (tm *tracingMiddleware) Status(ctx context.Context) (agent.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()
	return tm.svc.Status(ctx)
}

func (tm *tracingMiddleware) Renew(ctx context.Context) (agent.RenewalRecord, error) {
	ctx, span := tm.tracer.Start(ctx, "renew")
	defer span.End()
	return tm.svc.Renew(ctx)
}

func (tm *tracingMiddleware) CheckAndRenew(ctx context.Context) (agent.RenewalRecord, bool, error) {
	ctx, span := tm.tracer.Start(ctx, "check_and_renew")
	defer span.End()
	return tm.svc.CheckAndRenew(ctx)
}

func (tm *tracingMiddleware) Revoke(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "revoke")
	defer span.End()
	return tm.svc.Revoke(ctx)
}

func (tm *tracingMiddleware) History(ctx context.Context, pm agent.PageMetadata) (agent.RenewalPage, error) {
	ctx, span := tm.tracer.Start(ctx, "history")
	defer span.End()
	return tm.svc.History(ctx, pm)
}
