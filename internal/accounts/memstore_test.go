package accounts

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// memStore enforces the same uniqueness and single-use rules as the
// Postgres store under one mutex.
type memStore struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]Account
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]Account{}}
}

func (m *memStore) conflict(selfID string, a Account) error {
	for id, other := range m.accounts {
		if id == selfID {
			continue
		}
		if other.Username == a.Username {
			return &shared.DuplicateError{Field: "username"}
		}
		if other.Email == a.Email {
			return &shared.DuplicateError{Field: "email"}
		}
	}
	return nil
}

func (m *memStore) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.conflict("", a); err != nil {
		return Account{}, err
	}
	m.seq++
	a.ID = "acc-" + strconv.Itoa(m.seq)
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memStore) find(match func(Account) bool) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return a, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

func (m *memStore) FindByEmail(_ context.Context, email string) (Account, error) {
	return m.find(func(a Account) bool { return a.Email == email })
}

func (m *memStore) FindByUsername(_ context.Context, username string) (Account, error) {
	return m.find(func(a Account) bool { return a.Username == username })
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Account
	for _, a := range m.accounts {
		if f.Username != "" && !strings.Contains(strings.ToLower(a.Username), strings.ToLower(f.Username)) {
			continue
		}
		if f.Email != "" && !strings.Contains(a.Email, f.Email) {
			continue
		}
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	total := len(out)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memStore) ConfirmEmail(_ context.Context, token string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.EmailConfirmationToken != "" && a.EmailConfirmationToken == token {
			a.IsEmailConfirmed = true
			a.EmailConfirmationToken = ""
			m.accounts[id] = a
			return a, nil
		}
	}
	return Account{}, shared.ErrInvalidOrExpiredToken
}

func (m *memStore) SetPasswordReset(_ context.Context, id, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordResetToken = token
	a.PasswordResetExpires = &expires
	m.accounts[id] = a
	return nil
}

func (m *memStore) ConsumePasswordReset(_ context.Context, token, hash string, now time.Time) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.PasswordResetToken == "" || a.PasswordResetToken != token {
			continue
		}
		if a.PasswordResetExpires == nil || !a.PasswordResetExpires.After(now) {
			return Account{}, shared.ErrInvalidOrExpiredToken
		}
		a.PasswordHash = hash
		a.PasswordResetToken = ""
		a.PasswordResetExpires = nil
		m.accounts[id] = a
		return a, nil
	}
	return Account{}, shared.ErrInvalidOrExpiredToken
}

func (m *memStore) UpdateProfile(_ context.Context, id string, c ProfileChanges) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	if c.Username != nil {
		a.Username = *c.Username
	}
	if c.Email != nil {
		a.Email = *c.Email
	}
	if c.Role != nil {
		a.Role = *c.Role
	}
	if c.IsEmailConfirmed != nil {
		a.IsEmailConfirmed = *c.IsEmailConfirmed
		if a.IsEmailConfirmed {
			a.EmailConfirmationToken = ""
		}
	}
	if c.ConfirmationToken != "" {
		a.EmailConfirmationToken = c.ConfirmationToken
	}
	if err := m.conflict(id, a); err != nil {
		return Account{}, err
	}
	a.UpdatedAt = time.Now().UTC()
	m.accounts[id] = a
	return a, nil
}

func (m *memStore) SetPassword(_ context.Context, id, hash string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	a.PasswordHash = hash
	a.PasswordResetToken = ""
	a.PasswordResetExpires = nil
	m.accounts[id] = a
	return a, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memStore) SweepExpiredResets(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.accounts {
		if a.PasswordResetExpires != nil && !a.PasswordResetExpires.After(now) {
			a.PasswordResetToken = ""
			a.PasswordResetExpires = nil
			m.accounts[id] = a
			n++
		}
	}
	return n, nil
}

func (m *memStore) byEmail(email string) Account {
	a, _ := m.FindByEmail(context.Background(), email)
	return a
}

var _ Store = (*memStore)(nil)
