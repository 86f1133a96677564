// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"time"

	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/internal/api"
)

var (
	_ api.Response = (*statusRes)(nil)
	_ api.Response = (*renewRes)(nil)
	_ api.Response = (*revokeRes)(nil)
	_ api.Response = (*listRenewalsRes)(nil)
)

type statusRes struct {
	agent.Status
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}

type renewRes struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Reloaded     bool      `json:"reloaded"`
	FinishedAt   time.Time `json:"finished_at"`
	renewed      bool
}

func (res renewRes) Code() int {
	if res.renewed {
		return http.StatusOK
	}

	return http.StatusUnprocessableEntity
}

func (res renewRes) Headers() map[string]string {
	return map[string]string{}
}

func (res renewRes) Empty() bool {
	return false
}

type revokeRes struct{}

func (res revokeRes) Code() int {
	return http.StatusNoContent
}

func (res revokeRes) Headers() map[string]string {
	return map[string]string{}
}

func (res revokeRes) Empty() bool {
	return true
}

type listRenewalsRes struct {
	Total   uint64                `json:"total"`
	Offset  uint64                `json:"offset"`
	Limit   uint64                `json:"limit"`
	Records []agent.RenewalRecord `json:"records"`
}

func (res listRenewalsRes) Code() int {
	return http.StatusOK
}

func (res listRenewalsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listRenewalsRes) Empty() bool {
	return false
}
