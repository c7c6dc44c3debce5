package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the assetledger store (SQLite).
var Migrations = migrate.NewGroup("assetledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_assetledger_events",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS assetledger_events (
    id             TEXT PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    sequence       INTEGER NOT NULL CHECK (sequence > 0),
    type           TEXT NOT NULL,
    payload        TEXT NOT NULL,
    produced_at    TEXT NOT NULL DEFAULT (datetime('now')),
    prev_hash      TEXT NOT NULL DEFAULT '',
    hash           TEXT NOT NULL DEFAULT '',
    metadata       TEXT NOT NULL DEFAULT '{}'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assetledger_events_stream_seq
    ON assetledger_events (aggregate_type, aggregate_id, sequence);
CREATE INDEX IF NOT EXISTS idx_assetledger_events_type ON assetledger_events (type);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS assetledger_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assetledger_workflows",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS assetledger_workflows (
    id                    TEXT PRIMARY KEY,
    kind                  TEXT NOT NULL,
    parent_id             TEXT NOT NULL DEFAULT '',
    status                TEXT NOT NULL DEFAULT 'pending',
    input                 TEXT NOT NULL DEFAULT 'null',
    steps                 TEXT NOT NULL DEFAULT '[]',
    compensations         TEXT NOT NULL DEFAULT '[]',
    parallel_compensation INTEGER NOT NULL DEFAULT 0,
    continue_with_error   INTEGER NOT NULL DEFAULT 0,
    compensated           INTEGER NOT NULL DEFAULT 0,
    error                 TEXT NOT NULL DEFAULT '',
    compensation_errors   TEXT NOT NULL DEFAULT '[]',
    created_at            TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at            TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assetledger_workflows_status ON assetledger_workflows (status, created_at);
CREATE INDEX IF NOT EXISTS idx_assetledger_workflows_parent ON assetledger_workflows (parent_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS assetledger_workflows`)
				return err
			},
		},
	)
}
