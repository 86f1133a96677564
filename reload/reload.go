// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package reload triggers a graceful, connection-draining reload of the
// process serving the renewed certificate. A failed reload is recoverable:
// the certificate is already installed, so callers log and retry on a later
// cycle instead of failing the renewal.
package reload

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
)

// DefaultTimeout bounds one reload attempt.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTargetNotFound indicates the serving process or container is absent.
	ErrTargetNotFound = errors.New("reload target not found")

	// ErrReloadRejected indicates the serving process refused the reload,
	// typically because its configuration failed validation.
	ErrReloadRejected = errors.New("reload rejected by serving process")

	// ErrReloadTimeout indicates the attempt was cancelled after the bound.
	ErrReloadTimeout = errors.New("reload timed out")
)

// Reloader signals the serving process to pick up new key material.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ExecReloader reloads by running a command, e.g.
// ["docker", "kill", "-s", "HUP", "proxy"] or ["nginx", "-s", "reload"].
type ExecReloader struct {
	Command []string
	Timeout time.Duration
}

var _ Reloader = (*ExecReloader)(nil)

func (r *ExecReloader) Reload(ctx context.Context) error {
	if len(r.Command) == 0 {
		return errors.Wrap(ErrTargetNotFound, errors.New("no reload command configured"))
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	out, err := cmd.CombinedOutput()
	switch {
	case err == nil:
		return nil
	case ctx.Err() == context.DeadlineExceeded:
		return errors.Wrap(ErrReloadTimeout, err)
	case stderrors.Is(err, exec.ErrNotFound):
		return errors.Wrap(ErrTargetNotFound, err)
	default:
		return errors.Wrap(ErrReloadRejected,
			errors.New(strings.TrimSpace(string(out))+" : "+err.Error()))
	}
}

// SignalReloader reloads by sending SIGHUP to the PID found in PIDFile.
type SignalReloader struct {
	PIDFile string
}

var _ Reloader = (*SignalReloader)(nil)

func (r *SignalReloader) Reload(_ context.Context) error {
	raw, err := os.ReadFile(r.PIDFile)
	if err != nil {
		return errors.Wrap(ErrTargetNotFound, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return errors.Wrap(ErrTargetNotFound, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrap(ErrTargetNotFound, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		if stderrors.Is(err, os.ErrProcessDone) || stderrors.Is(err, syscall.ESRCH) {
			return errors.Wrap(ErrTargetNotFound, err)
		}
		return errors.Wrap(ErrReloadRejected, err)
	}
	return nil
}
