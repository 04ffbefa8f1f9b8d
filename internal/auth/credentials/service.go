package credentials

import (
	"context"
	"errors"

	"keygate/internal/directory"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("account already exists")
)

// Service handles the ordinary local registration and password login
// path. Accounts created through token authentication carry no usable
// password and can never log in here.
type Service struct {
	store directory.Store
}

func NewService(store directory.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Register(
	ctx context.Context,
	username string,
	email string,
	password string,
) (string, error) {

	existing, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrAlreadyRegistered
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	return s.store.CreateAccount(ctx, directory.NewAccount{
		Username:     username,
		DisplayName:  username,
		Email:        email,
		Role:         directory.RoleViewer,
		Active:       true,
		PasswordHash: hash,
	})
}

func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (string, error) {

	acct, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	// One failure answer for every reason: unknown email, inactive
	// account, token-created account without a usable password, or a
	// wrong password.
	if acct == nil || !acct.Active || !acct.PasswordUsable() {
		return "", ErrInvalidCredentials
	}

	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return acct.ID, nil
}
