package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubdesk/clubdesk/internal/shared"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher(4)

	hashed, err := h.Hash("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hashed)
	assert.True(t, h.Verify("s3cret!", hashed))
	assert.False(t, h.Verify("wrong", hashed))

	again, err := h.Hash("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again, "salt must differ per hash")
}

func TestPasswordHasherRejectsOverlongPassword(t *testing.T) {
	_, err := NewPasswordHasher(4).Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPasswordHasherMalformedHashNeverMatches(t *testing.T) {
	h := NewPasswordHasher(4)
	assert.False(t, h.Verify("anything", ""))
	assert.False(t, h.Verify("anything", "not-a-bcrypt-hash"))
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}

func TestIssueOpaqueToken(t *testing.T) {
	a, err := IssueOpaqueToken()
	require.NoError(t, err)
	b, err := IssueOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)

	tok, err := issuer.IssueSessionToken("acc-1", "ana@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := issuer.VerifySessionToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenIssuerCopiesSecret(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	issuer, err := NewTokenIssuer(secret)
	require.NoError(t, err)
	tok, err := issuer.IssueSessionToken("acc-1", "a@b.c", RoleUser, time.Hour)
	require.NoError(t, err)

	secret[0] = 'X'
	_, err = issuer.VerifySessionToken(tok)
	assert.NoError(t, err)
}

func TestNewTokenIssuerRejectsEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer(nil)
	assert.Error(t, err)
}

func TestVerifySessionTokenExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.IssueSessionToken("acc-1", "a@b.c", RoleUser, time.Hour)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.VerifySessionToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifySessionTokenFailsClosed(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	other, err := NewTokenIssuer([]byte("another-secret-another-secret"))
	require.NoError(t, err)

	foreign, err := other.IssueSessionToken("acc-1", "a@b.c", RoleAdmin, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{AccountID: "acc-1", Role: RoleAdmin}).SignedString(testSecret)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		AccountID:        "acc-1",
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":       "not.a.token",
		"empty":         "",
		"wrong secret":  foreign,
		"missing exp":   noExp,
		"alg none":      none,
		"truncated sig": foreign[:len(foreign)-4],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.VerifySessionToken(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthorize(t *testing.T) {
	user := &Claims{AccountID: "1", Role: RoleUser}
	admin := &Claims{AccountID: "2", Role: RoleAdmin}

	assert.NoError(t, Authorize(user, nil))
	assert.NoError(t, Authorize(admin, []string{RoleAdmin}))
	assert.ErrorIs(t, Authorize(user, []string{RoleAdmin}), shared.ErrForbidden)
	assert.ErrorIs(t, Authorize(nil, nil), shared.ErrUnauthenticated)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.Header.Set(HeaderAccessToken, "xyz")
	assert.Equal(t, "xyz", TokenFromRequest(r))
}

func TestGateRequire(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	gate := Gate{Verifier: issuer}

	userTok, err := issuer.IssueSessionToken("u1", "u@example.com", RoleUser, time.Hour)
	require.NoError(t, err)
	adminTok, err := issuer.IssueSessionToken("a1", "a@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	var seen *Claims
	protected := gate.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "nope", http.StatusUnauthorized},
		{"user role", userTok, http.StatusForbidden},
		{"admin role", adminTok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tc.token != "" {
				req.Header.Set(HeaderAccessToken, tc.token)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want != http.StatusOK {
				assert.Nil(t, seen)
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["message"])
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "a1", seen.AccountID)
		})
	}
}

func TestGateAuthenticatedAcceptsAnyRole(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	tok, err := issuer.IssueSessionToken("u1", "u@example.com", RoleUser, time.Hour)
	require.NoError(t, err)

	h := Gate{Verifier: issuer}.Authenticated()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/clubPlayers", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
