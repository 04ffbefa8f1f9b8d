package directory

import "time"

// Known account roles, most to least privileged. Viewer is the
// guest-equivalent role assigned to externally authenticated accounts
// by default; it only allows viewing public content and self-editing
// the profile.
const (
	RoleSuper       = "super"
	RoleAdmin       = "admin"
	RoleContributor = "contributor"
	RoleResearcher  = "researcher"
	RoleViewer      = "viewer"
)

// KnownRole reports whether name is one of the known account roles.
func KnownRole(name string) bool {
	switch name {
	case RoleSuper, RoleAdmin, RoleContributor, RoleResearcher, RoleViewer:
		return true
	}
	return false
}

// Account is the local user record. It contains facts only; all
// decisions about accounts live in the reconcile and auth packages.
type Account struct {
	ID           string
	Username     string
	DisplayName  string
	Email        string
	Role         string
	Active       bool
	PasswordHash string // bcrypt hash; empty means no usable password
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PasswordUsable reports whether the account can log in with a local
// password. Accounts created through token authentication never can.
func (a *Account) PasswordUsable() bool {
	return a.PasswordHash != ""
}

// NewAccount carries the fields for account creation.
type NewAccount struct {
	Username     string
	DisplayName  string
	Email        string
	Role         string
	Active       bool
	PasswordHash string
}

// IdentityLink associates an external identity with a local account.
// ExternalID is unique. AccountID is empty until the link is resolved;
// once set it is never cleared automatically, so a dangling account id
// means the link needs relinking, not that it was unlinked.
type IdentityLink struct {
	ID                 int64
	ExternalID         string
	AccountID          string
	AccountCreatedByUs bool
	InsertedAt         time.Time
	UpdatedAt          time.Time
}

// Linked reports whether the link points at an account.
func (l *IdentityLink) Linked() bool {
	return l.AccountID != ""
}

// LinkRecord is a browse row for the admin listing: a link joined with
// the email of its account, when one exists.
type LinkRecord struct {
	LinkID             int64
	ExternalID         string
	AccountID          string
	AccountCreatedByUs bool
	Email              string
	InsertedAt         time.Time
}
