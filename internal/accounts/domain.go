package accounts

import (
	"strings"
	"time"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// Account is the stored identity with its credential and token state.
type Account struct {
	ID                     string
	Username               string
	Email                  string
	PasswordHash           string
	Role                   string
	IsEmailConfirmed       bool
	EmailConfirmationToken string
	PasswordResetToken     string
	PasswordResetExpires   *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// View is the API representation. It never carries the hash or tokens.
type View struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	IsEmailConfirmed bool      `json:"isEmailConfirmed"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (a Account) View() View {
	return View{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		Role:             a.Role,
		IsEmailConfirmed: a.IsEmailConfirmed,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// SignupInput is the public registration payload.
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// LoginInput is the credential payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetRequestInput starts a password reset.
type ResetRequestInput struct {
	Email string `json:"email"`
}

// PasswordInput carries a new password for reset completion and admin updates.
type PasswordInput struct {
	NewPassword string `json:"newPassword" validate:"required,min=6,maxbytes=72"`
}

// ProfileUpdate is a partial admin edit. Password is decoded only so it can
// be rejected.
type ProfileUpdate struct {
	Username         *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Role             *string `json:"role" validate:"omitempty,oneof=user admin"`
	IsEmailConfirmed *bool   `json:"isEmailConfirmed"`
	Password         *string `json:"password"`
}

func (u ProfileUpdate) empty() bool {
	return u.Username == nil && u.Email == nil && u.Role == nil && u.IsEmailConfirmed == nil
}

// ProfileChanges is the normalized set of fields the store writes. Confirming
// drops the pending confirmation token; ConfirmationToken, when set, starts a
// new confirmation.
type ProfileChanges struct {
	Username          *string
	Email             *string
	Role              *string
	IsEmailConfirmed  *bool
	ConfirmationToken string
}

// ListFilter narrows GET /user.
type ListFilter struct {
	Username string
	Email    string
	Role     string
	shared.ListParams
}

var sortFields = map[string]string{
	"username": "username",
	"email":    "email",
}

// SortPath maps the public sortBy value to a document path.
func (f ListFilter) SortPath() string {
	return sortFields[f.SortBy]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignup trims the input and reports field errors.
func ValidateSignup(in *SignupInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	return shared.ValidateStruct(in).Err()
}

// ValidatePassword checks a replacement password.
func ValidatePassword(in PasswordInput) error {
	return shared.ValidateStruct(in).Err()
}

// ValidateProfileUpdate normalizes u and reports field errors.
func ValidateProfileUpdate(u *ProfileUpdate) error {
	if u.Username != nil {
		trimmed := strings.TrimSpace(*u.Username)
		u.Username = &trimmed
	}
	if u.Email != nil {
		normalized := normalizeEmail(*u.Email)
		u.Email = &normalized
	}
	errs := shared.ValidateStruct(u)
	if u.Password != nil {
		errs.Add("password", "cannot be changed here, use the password endpoint")
	}
	if u.empty() && u.Password == nil {
		errs.Add("body", "no updatable fields provided")
	}
	return errs.Err()
}
