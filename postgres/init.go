// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "agent_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS renewals (
						id            VARCHAR(36) UNIQUE NOT NULL,
						domain        VARCHAR(253) NOT NULL,
						serial_number VARCHAR(40),
						outcome       VARCHAR(20) NOT NULL,
						detail        TEXT,
						reloaded      BOOLEAN,
						started_at    TIMESTAMP,
						finished_at   TIMESTAMP,
						PRIMARY KEY (id)
					)`,
				},
				Down: []string{
					"DROP TABLE renewals",
				},
			},
		},
	}
}
