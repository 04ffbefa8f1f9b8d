package db

import (
	"context"
	"database/sql"
)

type DB struct {
	*sql.DB
}

const keygateMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS accounts (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    username text NOT NULL,
    display_name text NOT NULL DEFAULT '',
    email text NOT NULL DEFAULT '',
    role text NOT NULL DEFAULT 'viewer',
    active boolean NOT NULL DEFAULT true,
    password_hash text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_username_unique
ON accounts (username);

CREATE INDEX IF NOT EXISTS accounts_email_lower_idx
ON accounts (LOWER(email))
WHERE email <> '';

CREATE TABLE IF NOT EXISTS identity_links (
    id bigserial PRIMARY KEY,
    external_id varchar(128) NOT NULL,
    account_id uuid NULL,
    account_created_by_us boolean NOT NULL DEFAULT false,
    inserted_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT identity_links_external_unique
        UNIQUE (external_id)
);

CREATE INDEX IF NOT EXISTS identity_links_account_id_idx
ON identity_links (account_id);
`

// RunMigration applies the idempotent schema. account_id carries no
// foreign key on purpose: an account may be deleted out from under a
// link, and the dangling id is what triggers relinking.
func RunMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, keygateMigration)
	return err
}
