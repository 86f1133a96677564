// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package http

import (
	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/internal/api"
	"github.com/absmach/acme-agent/pkg/errors"
)

const maxLimitSize = 100

type statusReq struct{}

func (req statusReq) validate() error {
	return nil
}

type renewReq struct{}

func (req renewReq) validate() error {
	return nil
}

type revokeReq struct{}

func (req revokeReq) validate() error {
	return nil
}

type listRenewalsReq struct {
	pm agent.PageMetadata
}

func (req listRenewalsReq) validate() error {
	if req.pm.Limit > maxLimitSize {
		return errors.Wrap(api.ErrValidation, api.ErrLimitSize)
	}
	return nil
}
