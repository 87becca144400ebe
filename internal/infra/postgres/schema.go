package postgres

import (
	"context"
	"fmt"
)

// schema is the persisted state layout: four relational tables plus the
// credential and audit tables. Balance non-negativity is double-checked
// by the CHECK constraint; the application still validates first so it
// can report a useful error instead of a constraint violation.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
	username    TEXT PRIMARY KEY,
	fullname    TEXT NOT NULL,
	national_id TEXT NOT NULL,
	phone       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accounts (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES customers(username),
	balance    NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	status     TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','locked')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id         BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	username   TEXT NOT NULL,
	amount     NUMERIC(18,2) NOT NULL CHECK (amount > 0),
	kind       TEXT NOT NULL CHECK (kind IN ('DEPOSIT','WITHDRAW')),
	status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','cancel')),
	req_date   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS employees (
	username   TEXT PRIMARY KEY,
	position   TEXT NOT NULL CHECK (position IN ('STAFF','DIRECTOR')),
	salary     NUMERIC(18,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	locked        BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	event_id    TEXT NOT NULL,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	object_name TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts (lower(username));
CREATE INDEX IF NOT EXISTS idx_transactions_username ON transactions (lower(username));
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status, req_date);
CREATE INDEX IF NOT EXISTS idx_audit_log_object ON audit_log (object_name, created_at DESC);
`

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("database schema ensured")
	return nil
}
