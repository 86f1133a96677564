// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"

	agent "github.com/absmach/acme-agent"
	"github.com/go-kit/kit/endpoint"
)

func statusEndpoint(svc agent.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req := request.(statusReq)
		if err := req.validate(); err != nil {
			return statusRes{}, err
		}

		status, err := svc.Status(ctx)
		if err != nil {
			return statusRes{}, err
		}

		return statusRes{Status: status}, nil
	}
}

func renewEndpoint(svc agent.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req := request.(renewReq)
		if err := req.validate(); err != nil {
			return renewRes{}, err
		}

		record, err := svc.Renew(ctx)
		if err != nil {
			return renewRes{}, err
		}

		return renewRes{
			ID:           record.ID,
			Domain:       record.Domain,
			SerialNumber: record.SerialNumber,
			Reloaded:     record.Reloaded,
			FinishedAt:   record.FinishedAt,
			renewed:      true,
		}, nil
	}
}

func revokeEndpoint(svc agent.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req := request.(revokeReq)
		if err := req.validate(); err != nil {
			return revokeRes{}, err
		}

		if err := svc.Revoke(ctx); err != nil {
			return revokeRes{}, err
		}

		return revokeRes{}, nil
	}
}

func listRenewalsEndpoint(svc agent.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req := request.(listRenewalsReq)
		if err := req.validate(); err != nil {
			return listRenewalsRes{}, err
		}

		page, err := svc.History(ctx, req.pm)
		if err != nil {
			return listRenewalsRes{}, err
		}

		return listRenewalsRes{
			Total:   page.Total,
			Offset:  page.Offset,
			Limit:   page.Limit,
			Records: page.Records,
		}, nil
	}
}
