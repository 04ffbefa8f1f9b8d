package directory

import (
	"context"
	"database/sql"
	"fmt"

	"keygate/internal/db"

	"github.com/google/uuid"
)

// PostgresStore is the canonical Store backed by the keygate schema.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindLinkByExternalID(ctx context.Context, externalID string) (*IdentityLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, account_id, account_created_by_us, inserted_at, updated_at
		FROM identity_links
		WHERE external_id = $1
	`, externalID)
	return scanLink(row)
}

func (s *PostgresStore) FindAccountByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, email, role, active, password_hash, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, email, role, active, password_hash, created_at, updated_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return scanAccount(row)
}

func (s *PostgresStore) InsertLink(ctx context.Context, externalID string) (*IdentityLink, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO identity_links (external_id)
		VALUES ($1)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, external_id, account_id, account_created_by_us, inserted_at, updated_at
	`, externalID)

	link, err := scanLink(row)
	if err != nil {
		return nil, err
	}
	if link != nil {
		return link, nil
	}

	// Lost the insert race; the row exists now.
	link, err = s.FindLinkByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("directory: identity link %q vanished after conflict", externalID)
	}
	return link, nil
}

func (s *PostgresStore) LinkAccount(ctx context.Context, link *IdentityLink, accountID string, createdByUs bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE identity_links
		SET account_id = $2, account_created_by_us = $3, updated_at = NOW()
		WHERE id = $1
	`, link.ID, accountID, createdByUs)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound("identity link", link.ExternalID)
	}

	link.AccountID = accountID
	link.AccountCreatedByUs = createdByUs
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acct NewAccount) (string, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, display_name, email, role, active, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		acct.Username,
		acct.DisplayName,
		acct.Email,
		acct.Role,
		acct.Active,
		acct.PasswordHash,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *PostgresStore) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET active = $2, updated_at = NOW()
		WHERE id = $1
	`, accountID, active)
	return err
}

func (s *PostgresStore) SetAccountRole(ctx context.Context, accountID string, role string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET role = $2, updated_at = NOW()
		WHERE id = $1
	`, accountID, role)
	return err
}

func (s *PostgresStore) Links(ctx context.Context) ([]LinkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.external_id, l.account_id, l.account_created_by_us, l.inserted_at,
		       COALESCE(a.email, '')
		FROM identity_links l
		LEFT JOIN accounts a ON a.id = l.account_id
		ORDER BY COALESCE(a.email, ''), l.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LinkRecord
	for rows.Next() {
		var (
			rec       LinkRecord
			accountID sql.NullString
		)
		if err := rows.Scan(
			&rec.LinkID,
			&rec.ExternalID,
			&accountID,
			&rec.AccountCreatedByUs,
			&rec.InsertedAt,
			&rec.Email,
		); err != nil {
			return nil, err
		}
		rec.AccountID = accountID.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) PurgeCreatedAccounts(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM accounts
		WHERE EXISTS (
			SELECT 1 FROM identity_links l
			WHERE l.account_id = accounts.id
			  AND l.account_created_by_us
		)
	`)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM identity_links
		WHERE account_created_by_us
	`); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

func scanLink(row *sql.Row) (*IdentityLink, error) {
	var (
		l         IdentityLink
		accountID sql.NullString
	)
	err := row.Scan(&l.ID, &l.ExternalID, &accountID, &l.AccountCreatedByUs, &l.InsertedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.AccountID = accountID.String
	return &l, nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.DisplayName,
		&a.Email,
		&a.Role,
		&a.Active,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
