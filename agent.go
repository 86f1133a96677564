// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package agent keeps a server certificate continuously valid: it watches
// the installed certificate, decides when renewal is due and drives the
// ACME order pipeline, installation and serving-process reload.
package agent

import (
	"context"
	"time"
)

// Renewal outcomes as persisted in the history repository.
const (
	OutcomeRenewed = "renewed"
	OutcomeFailed  = "failed"
)

// RenewalRecord is the audit entry of one renewal attempt.
type RenewalRecord struct {
	ID           string    `json:"id" db:"id"`
	Domain       string    `json:"domain" db:"domain"`
	SerialNumber string    `json:"serial_number,omitempty" db:"serial_number"`
	Outcome      string    `json:"outcome" db:"outcome"`
	Detail       string    `json:"detail,omitempty" db:"detail"`
	Reloaded     bool      `json:"reloaded" db:"reloaded"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
}

// PageMetadata filters and paginates renewal-history listings.
type PageMetadata struct {
	Total  uint64 `json:"total,omitempty" db:"total"`
	Offset uint64 `json:"offset,omitempty" db:"offset"`
	Limit  uint64 `json:"limit,omitempty" db:"limit"`
	Domain string `json:"domain,omitempty" db:"domain"`
}

// RenewalPage is one page of renewal history.
type RenewalPage struct {
	Records []RenewalRecord `json:"records"`
	PageMetadata
}

// Status is the operator view of the managed certificate and the decision
// the policy would take right now.
type Status struct {
	Domain             string    `json:"domain"`
	CertificatePresent bool      `json:"certificate_present"`
	SerialNumber       string    `json:"serial_number,omitempty"`
	NotBefore          time.Time `json:"not_before,omitempty"`
	NotAfter           time.Time `json:"not_after,omitempty"`
	LifetimeElapsedPct float64   `json:"lifetime_elapsed_pct"`
	ThresholdPct       float64   `json:"threshold_pct"`
	Revocation         string    `json:"revocation,omitempty"`
	RenewalDue         bool      `json:"renewal_due"`
	Reason             string    `json:"reason,omitempty"`
}

//go:generate mockery --name Service --output=./mocks --filename service.go --quiet --note "Copyright (c) Abstract Machines"
type Service interface {
	// Status reports the certificate state and the pending policy decision.
	Status(ctx context.Context) (Status, error)

	// Renew runs the full renewal pipeline immediately, regardless of policy.
	Renew(ctx context.Context) (RenewalRecord, error)

	// CheckAndRenew performs one detect/decide/act cycle. The bool reports
	// whether a renewal was attempted.
	CheckAndRenew(ctx context.Context) (RenewalRecord, bool, error)

	// Revoke asks the CA to revoke the installed certificate and marks the
	// domain for renewal on the next cycle.
	Revoke(ctx context.Context) error

	// History lists past renewal attempts.
	History(ctx context.Context, pm PageMetadata) (RenewalPage, error)
}

//go:generate mockery --name Repository --output=./mocks --filename repository.go --quiet --note "Copyright (c) Abstract Machines"
type Repository interface {
	// SaveRenewal adds a renewal attempt to the history.
	SaveRenewal(ctx context.Context, record RenewalRecord) error

	// ListRenewals retrieves renewal history, newest first.
	ListRenewals(ctx context.Context, pm PageMetadata) (RenewalPage, error)
}
