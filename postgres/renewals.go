// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// Postgres error codes:
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	errDuplicate      = "23505" // unique_violation
	errTruncation     = "22001" // string_data_right_truncation
	errInvalid        = "22P02" // invalid_text_representation
	errUntranslatable = "22P05" // untranslatable_character
	errInvalidChar    = "22021" // character_not_in_repertoire
)

var (
	ErrConflict        = errors.New("entity already exists")
	ErrMalformedEntity = errors.New("malformed entity")
	ErrCreateEntity    = errors.New("failed to create entity")
	ErrViewEntity      = errors.New("failed to retrieve entity")
)

type renewalsRepo struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) agent.Repository {
	return renewalsRepo{
		db: db,
	}
}

func (repo renewalsRepo) SaveRenewal(ctx context.Context, record agent.RenewalRecord) error {
	q := `INSERT INTO renewals (id, domain, serial_number, outcome, detail, reloaded, started_at, finished_at)
		VALUES (:id, :domain, :serial_number, :outcome, :detail, :reloaded, :started_at, :finished_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, record); err != nil {
		return handleError(ErrCreateEntity, err)
	}
	return nil
}

func (repo renewalsRepo) ListRenewals(ctx context.Context, pm agent.PageMetadata) (agent.RenewalPage, error) {
	q := `SELECT id, domain, serial_number, outcome, detail, reloaded, started_at, finished_at FROM renewals %s
		ORDER BY started_at DESC LIMIT :limit OFFSET :offset`
	condition := ""
	if pm.Domain != "" {
		condition = `WHERE domain = :domain`
	}
	q = applyCondition(q, condition)

	rows, err := repo.db.NamedQueryContext(ctx, q, pm)
	if err != nil {
		return agent.RenewalPage{}, handleError(ErrViewEntity, err)
	}
	defer rows.Close()

	var records []agent.RenewalRecord
	for rows.Next() {
		var record agent.RenewalRecord
		if err := rows.StructScan(&record); err != nil {
			return agent.RenewalPage{}, handleError(ErrViewEntity, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return agent.RenewalPage{}, handleError(ErrViewEntity, err)
	}

	cq := applyCondition(`SELECT COUNT(*) FROM renewals %s`, condition)
	total, err := repo.total(ctx, cq, pm)
	if err != nil {
		return agent.RenewalPage{}, handleError(ErrViewEntity, err)
	}

	page := agent.RenewalPage{
		Records: records,
		PageMetadata: agent.PageMetadata{
			Total:  total,
			Offset: pm.Offset,
			Limit:  pm.Limit,
			Domain: pm.Domain,
		},
	}
	return page, nil
}

func (repo renewalsRepo) total(ctx context.Context, query string, pm agent.PageMetadata) (uint64, error) {
	rows, err := repo.db.NamedQueryContext(ctx, query, pm)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total uint64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

func applyCondition(query, condition string) string {
	return fmt.Sprintf(query, condition)
}

func handleError(wrapper, err error) error {
	pqErr, ok := err.(*pgconn.PgError)
	if ok {
		switch pqErr.Code {
		case errDuplicate:
			return errors.Wrap(ErrConflict, err)
		case errInvalid, errInvalidChar, errTruncation, errUntranslatable:
			return errors.Wrap(ErrMalformedEntity, err)
		}
	}

	return errors.Wrap(wrapper, err)
}
