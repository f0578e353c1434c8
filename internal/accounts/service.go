package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/notify"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// Account lifecycle events reported to EventRecorder.
const (
	EventSignup         = "signup"
	EventConfirm        = "confirm"
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventResetRequested = "reset_requested"
	EventResetCompleted = "reset_completed"
)

// EventRecorder counts lifecycle events. observability.Metrics implements it.
type EventRecorder interface {
	AccountEvent(event string)
}

// SessionIssuer signs session tokens. *auth.TokenIssuer implements it.
type SessionIssuer interface {
	IssueSessionToken(accountID, email, role string, ttl time.Duration) (string, error)
}

// Config holds lifecycle settings.
type Config struct {
	BackendURL string
	FrontURL   string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	return c
}

// Dependencies groups the collaborators of Service.
type Dependencies struct {
	Store    Store
	Hasher   auth.PasswordHasher
	Issuer   SessionIssuer
	Notifier notify.Notifier
	Events   EventRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements the account and credential lifecycle.
type Service struct {
	store    Store
	hasher   auth.PasswordHasher
	issuer   SessionIssuer
	notifier notify.Notifier
	events   EventRecorder
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config

	dummyOnce sync.Once
	dummyHash string
}

// NewService constructs a Service.
func NewService(deps Dependencies, cfg Config) *Service {
	s := &Service{
		store:    deps.Store,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		notifier: deps.Notifier,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      deps.Now,
		cfg:      cfg.withDefaults(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) record(event string) {
	if s.events != nil {
		s.events.AccountEvent(event)
	}
}

// Signup registers an unconfirmed user and mails the confirmation link. The
// account stays persisted when the mail cannot be sent.
func (s *Service) Signup(ctx context.Context, in SignupInput) (View, error) {
	if err := ValidateSignup(&in); err != nil {
		return View{}, err
	}
	account, err := s.register(ctx, in, auth.RoleUser, false)
	if err != nil {
		return View{}, err
	}
	s.record(EventSignup)

	if err := s.sendConfirmation(ctx, account); err != nil {
		return View{}, err
	}
	return account.View(), nil
}

func (s *Service) sendConfirmation(ctx context.Context, account Account) error {
	body, err := render(confirmTemplate, emailData{
		Username: account.Username,
		Link:     ConfirmationLink(s.cfg.BackendURL, account.EmailConfirmationToken),
	})
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, account.Email, subjectConfirm, body); err != nil {
		return fmt.Errorf("accounts: send confirmation: %w", err)
	}
	return nil
}

// CreateAdmin creates a confirmed admin account. Used by the bootstrap command.
func (s *Service) CreateAdmin(ctx context.Context, in SignupInput) (View, error) {
	if err := ValidateSignup(&in); err != nil {
		return View{}, err
	}
	account, err := s.register(ctx, in, auth.RoleAdmin, true)
	if err != nil {
		return View{}, err
	}
	return account.View(), nil
}

func (s *Service) register(ctx context.Context, in SignupInput, role string, confirmed bool) (Account, error) {
	if err := s.ensureAvailable(ctx, "", &in.Username, &in.Email); err != nil {
		return Account{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, err
	}
	account := Account{
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     hash,
		Role:             role,
		IsEmailConfirmed: confirmed,
	}
	if !confirmed {
		token, err := auth.IssueOpaqueToken()
		if err != nil {
			return Account{}, err
		}
		account.EmailConfirmationToken = token
	}
	return s.store.Create(ctx, account)
}

// ensureAvailable gives a friendly duplicate error before the unique index
// would. selfID is skipped so an account can keep its own values.
func (s *Service) ensureAvailable(ctx context.Context, selfID string, username, email *string) error {
	if username != nil {
		existing, err := s.store.FindByUsername(ctx, *username)
		switch {
		case err == nil && existing.ID != selfID:
			return &shared.DuplicateError{Field: "username"}
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return err
		}
	}
	if email != nil {
		existing, err := s.store.FindByEmail(ctx, *email)
		switch {
		case err == nil && existing.ID != selfID:
			return &shared.DuplicateError{Field: "email"}
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return err
		}
	}
	return nil
}

// ConfirmEmail consumes a confirmation token.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return shared.ErrInvalidOrExpiredToken
	}
	if _, err := s.store.ConfirmEmail(ctx, token); err != nil {
		return err
	}
	s.record(EventConfirm)
	return nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token   string `json:"token"`
	Account View   `json:"-"`
}

// dummy returns a hash to compare against for unknown emails so both
// failure paths cost one bcrypt comparison.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("clubdesk-unknown-account")
		if err != nil {
			s.logger.Warn("dummy hash", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Authenticate checks credentials and issues a session token. Unknown email
// and wrong password are indistinguishable. The confirmation check runs only
// after the password matched.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (LoginResult, error) {
	if err := shared.ValidateStruct(in).Err(); err != nil {
		return LoginResult{}, err
	}
	account, err := s.store.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, err
		}
		s.hasher.Verify(in.Password, s.dummy())
		s.record(EventLoginFailure)
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		s.record(EventLoginFailure)
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if !account.IsEmailConfirmed {
		return LoginResult{}, shared.ErrEmailNotConfirmed
	}
	token, err := s.issuer.IssueSessionToken(account.ID, account.Email, account.Role, s.cfg.SessionTTL)
	if err != nil {
		return LoginResult{}, err
	}
	s.record(EventLoginSuccess)
	return LoginResult{Token: token, Account: account.View()}, nil
}

// RequestPasswordReset issues a reset token for confirmed accounts and mails
// the link. Unknown and unconfirmed emails yield ErrAccountNotEligible.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return shared.ErrAccountNotEligible
	}
	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrAccountNotEligible
	}
	if err != nil {
		return err
	}
	if !account.IsEmailConfirmed {
		return shared.ErrAccountNotEligible
	}

	token, err := auth.IssueOpaqueToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.cfg.ResetTTL)
	if err := s.store.SetPasswordReset(ctx, account.ID, token, expires); err != nil {
		return err
	}
	s.record(EventResetRequested)

	body, err := render(resetTemplate, emailData{
		Username: account.Username,
		Link:     ResetLink(s.cfg.FrontURL, token),
		TTL:      s.cfg.ResetTTL.String(),
	})
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, account.Email, subjectReset, body); err != nil {
		return fmt.Errorf("accounts: send reset: %w", err)
	}
	return nil
}

// ResetPassword completes a reset with a still valid token.
func (s *Service) ResetPassword(ctx context.Context, token string, in PasswordInput) error {
	if err := ValidatePassword(in); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return shared.ErrInvalidOrExpiredToken
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if _, err := s.store.ConsumePasswordReset(ctx, token, hash, s.now()); err != nil {
		return err
	}
	s.record(EventResetCompleted)
	return nil
}

// List returns one page of accounts.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[View], error) {
	filter.ListParams = filter.ListParams.Normalize()
	filter.Email = normalizeEmail(filter.Email)
	accounts, total, err := s.store.List(ctx, filter)
	if err != nil {
		return shared.Page[View]{}, err
	}
	views := make([]View, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	return shared.NewPage("users retrieved", views, total, filter.ListParams), nil
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	return account.View(), nil
}

// UpdateProfile applies a partial edit. It never touches the password hash.
// Marking an account unconfirmed issues a fresh confirmation token and mails
// the link.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (View, error) {
	if err := ValidateProfileUpdate(&in); err != nil {
		return View{}, err
	}
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := s.ensureAvailable(ctx, id, in.Username, in.Email); err != nil {
		return View{}, err
	}
	changes := ProfileChanges{
		Username:         in.Username,
		Email:            in.Email,
		Role:             in.Role,
		IsEmailConfirmed: in.IsEmailConfirmed,
	}
	reconfirm := in.IsEmailConfirmed != nil && !*in.IsEmailConfirmed && existing.EmailConfirmationToken == ""
	if reconfirm {
		if changes.ConfirmationToken, err = auth.IssueOpaqueToken(); err != nil {
			return View{}, err
		}
	}
	account, err := s.store.UpdateProfile(ctx, id, changes)
	if err != nil {
		return View{}, err
	}
	if reconfirm {
		if err := s.sendConfirmation(ctx, account); err != nil {
			return View{}, err
		}
	}
	return account.View(), nil
}

// SetPassword replaces an account password on behalf of an admin.
func (s *Service) SetPassword(ctx context.Context, id string, in PasswordInput) error {
	if err := ValidatePassword(in); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.store.SetPassword(ctx, id, hash)
	return err
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
