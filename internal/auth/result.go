package auth

// Code discriminates the outcome of one authentication attempt.
type Code string

const (
	CodeSuccess              Code = "success"
	CodeCredentialInvalid    Code = "credential_invalid"
	CodeAccessDenied         Code = "access_denied"
	CodeReconciliationFailed Code = "reconciliation_failed"
	CodeAccountLookupFailed  Code = "account_lookup_failed"
	CodeAccountInactive      Code = "account_inactive"
)

// Result is the single verdict of the Authenticator. AccountID is set
// on success and also on an inactive-account failure, so the caller
// can audit which account was refused.
type Result struct {
	Code      Code
	AccountID string
	Messages  []string
}

func (r Result) OK() bool {
	return r.Code == CodeSuccess
}

func success(accountID string) Result {
	return Result{Code: CodeSuccess, AccountID: accountID}
}

func failure(code Code, messages ...string) Result {
	return Result{Code: code, Messages: messages}
}
