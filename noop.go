// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import "context"

type nopRepository struct{}

// NewNopRepository returns a Repository that discards renewal records. It is
// used when no database is configured; the agent runs fine without history.
func NewNopRepository() Repository {
	return nopRepository{}
}

func (nopRepository) SaveRenewal(ctx context.Context, record RenewalRecord) error {
	return nil
}

func (nopRepository) ListRenewals(ctx context.Context, pm PageMetadata) (RenewalPage, error) {
	return RenewalPage{PageMetadata: pm}, nil
}
