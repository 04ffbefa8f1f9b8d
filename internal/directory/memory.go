package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same semantics as the
// Postgres store, including insert-or-get on the unique external id.
// It backs tests and single-node deployments without a database.
type MemoryStore struct {
	mu       sync.Mutex
	nextLink int64
	links    map[string]*IdentityLink // keyed by external id
	accounts map[string]*Account      // keyed by account id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:    make(map[string]*IdentityLink),
		accounts: make(map[string]*Account),
	}
}

func (m *MemoryStore) FindLinkByExternalID(ctx context.Context, externalID string) (*IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[externalID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) FindAccountByID(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if email == "" {
		return nil, nil
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) InsertLink(ctx context.Context, externalID string) (*IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.links[externalID]; ok {
		cp := *l
		return &cp, nil
	}

	m.nextLink++
	now := time.Now()
	l := &IdentityLink{
		ID:         m.nextLink,
		ExternalID: externalID,
		InsertedAt: now,
		UpdatedAt:  now,
	}
	m.links[externalID] = l
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) LinkAccount(ctx context.Context, link *IdentityLink, accountID string, createdByUs bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[link.ExternalID]
	if !ok {
		return errNotFound("identity link", link.ExternalID)
	}
	l.AccountID = accountID
	l.AccountCreatedByUs = createdByUs
	l.UpdatedAt = time.Now()

	link.AccountID = accountID
	link.AccountCreatedByUs = createdByUs
	link.UpdatedAt = l.UpdatedAt
	return nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, acct NewAccount) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	now := time.Now()
	m.accounts[id] = &Account{
		ID:           id,
		Username:     acct.Username,
		DisplayName:  acct.DisplayName,
		Email:        acct.Email,
		Role:         acct.Role,
		Active:       acct.Active,
		PasswordHash: acct.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

func (m *MemoryStore) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return errNotFound("account", accountID)
	}
	a.Active = active
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetAccountRole(ctx context.Context, accountID string, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return errNotFound("account", accountID)
	}
	a.Role = role
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Links(ctx context.Context) ([]LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]LinkRecord, 0, len(m.links))
	for _, l := range m.links {
		rec := LinkRecord{
			LinkID:             l.ID,
			ExternalID:         l.ExternalID,
			AccountID:          l.AccountID,
			AccountCreatedByUs: l.AccountCreatedByUs,
			InsertedAt:         l.InsertedAt,
		}
		if a, ok := m.accounts[l.AccountID]; ok {
			rec.Email = a.Email
		}
		records = append(records, rec)
	}
	sortLinkRecords(records)
	return records, nil
}

func (m *MemoryStore) PurgeCreatedAccounts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for extID, l := range m.links {
		if !l.AccountCreatedByUs {
			continue
		}
		if _, ok := m.accounts[l.AccountID]; ok {
			delete(m.accounts, l.AccountID)
			removed++
		}
		delete(m.links, extID)
	}
	return removed, nil
}

// DeleteAccount removes an account row directly, leaving any link that
// points at it dangling. Exercises the relinking path in tests.
func (m *MemoryStore) DeleteAccount(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
}

// AccountCount reports how many account rows exist.
func (m *MemoryStore) AccountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
