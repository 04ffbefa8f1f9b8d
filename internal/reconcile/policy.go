package reconcile

import (
	"strings"

	"keygate/internal/directory"
)

// Restriction controls who may complete a token login.
type Restriction string

const (
	// RestrictionOpen places no policy restriction on token logins.
	RestrictionOpen Restriction = "open"

	// RestrictionCommunityOnly requires a valid token to view protected
	// pages. It is enforced by the page-gating middleware, not by the
	// authenticator: holding any valid token is the whole requirement.
	RestrictionCommunityOnly Restriction = "communityOnly"

	// RestrictionSiteUsersOnly additionally requires that the identity's
	// email is prescreened or already belongs to a local account.
	RestrictionSiteUsersOnly Restriction = "siteUsersOnly"
)

// Policy is the server-configured access policy applied during
// reconciliation. Role names are validated at use time, never at
// configuration time, so a bad setting degrades to viewer instead of
// failing startup.
type Policy struct {
	Restriction Restriction

	// PrescreenedEmails are granted PrescreenedRole on first login.
	PrescreenedEmails map[string]struct{}
	PrescreenedRole   string

	// Passcode lets an authenticated user self-escalate to
	// PasscodeRole by submitting the matching code.
	PasscodeEnabled bool
	Passcode        string
	PasscodeRole    string

	// TrustTokenRole honors the role claim carried by the token itself
	// for account creation, limited to tokenRoleAllowlist. Off by
	// default: the issuer is trusted for identity, not privilege,
	// unless a deployment opts in.
	TrustTokenRole bool
}

// Roles a token's own role claim may confer when TrustTokenRole is on.
var tokenRoleAllowlist = map[string]struct{}{
	directory.RoleResearcher:  {},
	directory.RoleContributor: {},
	directory.RoleAdmin:       {},
	directory.RoleSuper:       {},
}

// ParseEmails splits a newline-delimited email list into a set,
// trimming blank lines. The configuration surface delivers the list as
// one string.
func ParseEmails(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		email := strings.TrimSpace(line)
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return set
}

// Prescreened reports whether email is a non-empty member of the
// prescreened list.
func (p Policy) Prescreened(email string) bool {
	if email == "" {
		return false
	}
	_, ok := p.PrescreenedEmails[email]
	return ok
}

// RoleForEmail computes the role a newly created account receives.
// Prescreened emails get the configured role; everyone else gets
// viewer. The super role is never grantable this way: a misconfigured
// elevated role falls back to viewer rather than silently escalating.
func (p Policy) RoleForEmail(email string) string {
	if !p.Prescreened(email) {
		return directory.RoleViewer
	}
	return safeRole(p.PrescreenedRole, directory.RoleSuper)
}

// safeRole returns role if it is known and not in the deny list,
// otherwise viewer.
func safeRole(role string, denied ...string) string {
	if !directory.KnownRole(role) {
		return directory.RoleViewer
	}
	for _, d := range denied {
		if role == d {
			return directory.RoleViewer
		}
	}
	return role
}
