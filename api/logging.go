// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	agent "github.com/absmach/acme-agent"
)

var _ agent.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    agent.Service
}

// LoggingMiddleware adds logging facilities to the core service.
func LoggingMiddleware(svc agent.Service, logger *slog.Logger) agent.Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) Status(ctx context.Context) (status agent.Status, err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method status for domain %s took %s to complete", status.Domain, time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(message)
	}(time.Now())
	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) Renew(ctx context.Context) (record agent.RenewalRecord, err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method renew for domain %s took %s to complete", record.Domain, time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(message)
	}(time.Now())
	return lm.svc.Renew(ctx)
}

func (lm *loggingMiddleware) CheckAndRenew(ctx context.Context) (record agent.RenewalRecord, attempted bool, err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method check_and_renew took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(message)
	}(time.Now())
	return lm.svc.CheckAndRenew(ctx)
}

func (lm *loggingMiddleware) Revoke(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method revoke took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(message)
	}(time.Now())
	return lm.svc.Revoke(ctx)
}

func (lm *loggingMiddleware) History(ctx context.Context, pm agent.PageMetadata) (page agent.RenewalPage, err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method history took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(message)
	}(time.Now())
	return lm.svc.History(ctx, pm)
}
