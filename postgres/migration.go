// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal store flow, either at initial
// startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-upload-handles",
			Up: []string{
				`CREATE TABLE upload_handles(
					key TEXT PRIMARY KEY,
					resource_url TEXT NOT NULL,
					bytes_sent BIGINT NOT NULL,
					total_size BIGINT NOT NULL,
					chunk_size BIGINT NOT NULL,
					status TEXT NOT NULL,
					filename TEXT NOT NULL,
					metadata BYTEA,
					updated TIMESTAMP WITH TIME ZONE NOT NULL
				)`,
			},
			Down: []string{
				`DROP TABLE upload_handles`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
