package directory

import (
	"context"
	"fmt"
	"sort"
)

// Store owns all identity-link and account persistence. Lookups return
// (nil, nil) when no record exists; an error always means the storage
// layer itself failed.
type Store interface {
	FindLinkByExternalID(ctx context.Context, externalID string) (*IdentityLink, error)
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)

	// InsertLink creates an unlinked row for externalID. ExternalID is
	// unique: when a concurrent insert already created the row, the
	// existing row is returned instead (insert-or-get).
	InsertLink(ctx context.Context, externalID string) (*IdentityLink, error)

	// LinkAccount persists the link-to-account association and records
	// whether the account was created for this link. The passed link is
	// updated in place.
	LinkAccount(ctx context.Context, link *IdentityLink, accountID string, createdByUs bool) error

	CreateAccount(ctx context.Context, acct NewAccount) (string, error)
	SetAccountActive(ctx context.Context, accountID string, active bool) error
	SetAccountRole(ctx context.Context, accountID string, role string) error

	// Links returns all identity links joined with their account email,
	// for the admin browse view.
	Links(ctx context.Context) ([]LinkRecord, error)

	// PurgeCreatedAccounts deletes every account that was created by
	// the reconciler, along with its link, and returns how many
	// accounts were removed. Linked pre-existing accounts are kept.
	PurgeCreatedAccounts(ctx context.Context) (int64, error)
}

func errNotFound(kind, id string) error {
	return fmt.Errorf("directory: %s %q not found", kind, id)
}

// Browse order: email first, link id as tiebreaker.
func sortLinkRecords(records []LinkRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Email != records[j].Email {
			return records[i].Email < records[j].Email
		}
		return records[i].LinkID < records[j].LinkID
	})
}
