package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dashfin/internal/logger"
	"dashfin/internal/models"
	"dashfin/internal/testutil"
)

func init() {
	PasswordCost = bcrypt.MinCost
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("segredo")
	require.NoError(t, err)

	assert.True(t, IsHashed(hash))
	assert.False(t, IsHashed("segredo"))

	ok, upgrade := checkPassword(hash, "segredo")
	assert.True(t, ok)
	assert.False(t, upgrade)

	ok, _ = checkPassword(hash, "errado")
	assert.False(t, ok)

	ok, upgrade = checkPassword("segredo", "segredo")
	assert.True(t, ok)
	assert.True(t, upgrade)

	ok, upgrade = checkPassword("segredo", "errado")
	assert.False(t, ok)
	assert.False(t, upgrade)
}

func TestAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := New(db, true)

	hash, err := HashPassword("segredo")
	require.NoError(t, err)
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", hash)

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{"email", "ana@example.com", "segredo", nil},
		{"email any case", "Ana@Example.com", "segredo", nil},
		{"full phone", "5511999990000", "segredo", nil},
		{"local phone", "(11) 99999-0000", "segredo", nil},
		{"wrong password", "ana@example.com", "errado", ErrInvalidCredentials},
		{"unknown user", "bia@example.com", "segredo", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := a.Authenticate(ctx, tt.login, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Ana", user.Nome)
		})
	}
}

func TestAuthenticateUpgradesLegacyPassword(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := New(db, true)

	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "plaintext")

	_, err := a.Authenticate(ctx, "ana@example.com", "plaintext")
	require.NoError(t, err)

	stored, err := db.GetUserByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	assert.True(t, IsHashed(stored.Senha))

	_, err = a.Authenticate(ctx, "ana@example.com", "plaintext")
	assert.NoError(t, err, "still works against the new hash")
}

func TestAuthenticateInactiveUser(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	hash, err := HashPassword("segredo")
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", hash)
	user.Status = models.StatusInativo
	require.NoError(t, db.UpdateUser(ctx, user))

	_, err = New(db, true).Authenticate(ctx, "ana@example.com", "segredo")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestSessions(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := New(db, true)
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "x")

	token, expiresAt, err := a.CreateSession(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.WithinDuration(t, time.Now().Add(SessionDuration), expiresAt, time.Minute)

	telefone, ok := a.ValidateSession(ctx, token)
	assert.True(t, ok)
	assert.Equal(t, "5511999990000", telefone)

	require.NoError(t, a.DeleteSession(ctx, token))
	_, ok = a.ValidateSession(ctx, token)
	assert.False(t, ok)

	require.NoError(t, db.CreateSession(ctx, "expired", "5511999990000", time.Now().Add(-time.Minute)))
	_, ok = a.ValidateSession(ctx, "expired")
	assert.False(t, ok)

	require.NoError(t, a.CleanExpiredSessions(ctx))
	_, _, err = db.GetSession(ctx, "expired")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "x")

	var seenUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	required := New(db, true)
	token, _, err := required.CreateSession(ctx, "5511999990000")
	require.NoError(t, err)

	tests := []struct {
		name       string
		auth       *Auth
		method     string
		path       string
		setup      func(r *http.Request)
		wantStatus int
		wantUser   string
	}{
		{"protected without session", required, http.MethodGet, "/expenses", nil, http.StatusUnauthorized, ""},
		{"protected with cookie", required, http.MethodGet, "/expenses", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		}, http.StatusNoContent, "5511999990000"},
		{"protected with bearer", required, http.MethodGet, "/balance", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusNoContent, "5511999990000"},
		{"bad token", required, http.MethodGet, "/balance", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized, ""},
		{"login is public", required, http.MethodPost, "/login", nil, http.StatusNoContent, ""},
		{"registration is public", required, http.MethodPost, "/users", nil, http.StatusNoContent, ""},
		{"listing users is not", required, http.MethodGet, "/users", nil, http.StatusUnauthorized, ""},
		{"webhook is public", required, http.MethodPost, "/webhook", nil, http.StatusNoContent, ""},
		{"health is public", required, http.MethodGet, "/healthz", nil, http.StatusNoContent, ""},
		{"auth disabled", New(db, false), http.MethodGet, "/expenses", nil, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser = ""
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			rec := httptest.NewRecorder()

			tt.auth.Middleware(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seenUser)
			if rec.Code == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"error":"Não autorizado"}`, rec.Body.String())
			}
		})
	}
}

func TestMiddlewareLogsSessionUser(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "x")

	a := New(db, true)
	token, _, err := a.CreateSession(context.Background(), "5511999990000")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.Init(logger.Options{Level: "info", Output: &buf})
	t.Cleanup(func() { logger.Init(logger.Options{}) })

	h := logger.HTTPMiddleware(a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "5511999990000", entry["user"])
}
