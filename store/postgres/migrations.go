package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the assetledger store.
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
    sequence       BIGINT NOT NULL CHECK (sequence > 0),
    type           TEXT NOT NULL,
    payload        TEXT NOT NULL,
    produced_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    prev_hash      TEXT NOT NULL DEFAULT '',
    hash           TEXT NOT NULL DEFAULT '',
    metadata       JSONB NOT NULL DEFAULT '{}'
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
    input                 JSONB,
    steps                 JSONB NOT NULL DEFAULT '[]',
    compensations         JSONB NOT NULL DEFAULT '[]',
    parallel_compensation BOOLEAN NOT NULL DEFAULT FALSE,
    continue_with_error   BOOLEAN NOT NULL DEFAULT FALSE,
    compensated           BOOLEAN NOT NULL DEFAULT FALSE,
    error                 TEXT NOT NULL DEFAULT '',
    compensation_errors   JSONB NOT NULL DEFAULT '[]',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
