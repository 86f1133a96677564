// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultCheckInterval is the pause between renewal checks.
	DefaultCheckInterval = 60 * time.Second
	// DefaultErrorBackoff replaces the regular interval after a failed cycle.
	DefaultErrorBackoff = 10 * time.Second
)

// Loop drives periodic check-and-renew cycles until the context is
// cancelled. A cycle error never terminates the loop; it shortens the next
// sleep instead. Cancellation is honored at the sleep boundary only, so an
// in-flight renewal always runs to completion.
type Loop struct {
	svc      Service
	interval time.Duration
	backoff  time.Duration
	logger   *slog.Logger
}

func NewLoop(svc Service, interval, backoff time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	return &Loop{
		svc:      svc,
		interval: interval,
		backoff:  backoff,
		logger:   logger,
	}
}

func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("renewal loop started", "interval", l.interval, "error_backoff", l.backoff)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("renewal loop stopped")
			return nil
		case <-timer.C:
		}

		sleep := l.interval
		if _, attempted, err := l.svc.CheckAndRenew(ctx); err != nil {
			l.logger.Error("renewal cycle failed", "error", err)
			sleep = l.backoff
		} else if attempted {
			l.logger.Info("renewal cycle completed")
		}

		timer.Reset(sleep)
	}
}
