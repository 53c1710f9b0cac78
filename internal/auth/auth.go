package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dashfin/internal/database"
	"dashfin/internal/ledger"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	SessionCookieName = "dashfin_session"
	SessionDuration   = 30 * 24 * time.Hour // 30 days
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

// PasswordCost is the bcrypt cost for new hashes. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

type contextKey string

const userKey contextKey = "auth_user"

type Auth struct {
	db       *database.DB
	users    *ledger.Ledger
	required bool
}

// New returns an Auth backed by db. When required is false the middleware
// lets every request through, attaching the user only if a valid session
// is presented.
func New(db *database.DB, required bool) *Auth {
	return &Auth{db: db, users: ledger.New(db), required: required}
}

// Required reports whether requests without a session are rejected
func (a *Auth) Required() bool {
	return a.required
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IsHashed reports whether stored is a bcrypt hash rather than a legacy
// plaintext password
func IsHashed(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// checkPassword compares password with the stored value. needsUpgrade is
// true when the stored value is legacy plaintext that matched.
func checkPassword(stored, password string) (ok, needsUpgrade bool) {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	}
	ok = subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	return ok, ok
}

// Authenticate checks login (an email, or a phone number in any common
// spelling) and password. Legacy plaintext passwords are rehashed on the
// first successful login.
func (a *Auth) Authenticate(ctx context.Context, login, password string) (models.Usuario, error) {
	l := logger.FromContext(ctx)
	login = strings.TrimSpace(login)

	var user models.Usuario
	var err error
	if strings.Contains(login, "@") {
		user, err = a.db.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = a.users.ResolveUser(ctx, login)
	}
	if errors.Is(err, database.ErrNotFound) {
		l.Warn("auth_login_failed", "reason", "unknown_user")
		return models.Usuario{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Usuario{}, fmt.Errorf("find user: %w", err)
	}

	ok, needsUpgrade := checkPassword(user.Senha, password)
	if !ok {
		l.Warn("auth_login_failed", "reason", "invalid_password", "telefone", user.Telefone)
		return models.Usuario{}, ErrInvalidCredentials
	}
	if user.Status == models.StatusInativo {
		l.Warn("auth_login_failed", "reason", "inactive", "telefone", user.Telefone)
		return models.Usuario{}, ErrInactiveUser
	}

	if needsUpgrade {
		if hash, err := HashPassword(password); err != nil {
			l.Error("auth_password_upgrade_error", "telefone", user.Telefone, "error", err.Error())
		} else if err := a.db.SetUserPassword(ctx, user.Telefone, hash); err != nil {
			l.Error("auth_password_upgrade_error", "telefone", user.Telefone, "error", err.Error())
		} else {
			user.Senha = hash
			l.Info("auth_password_upgraded", "telefone", user.Telefone)
		}
	}

	l.Info("auth_login_success", "telefone", user.Telefone)
	return user, nil
}

// CreateSession creates a new session for telefone and returns the token
func (a *Auth) CreateSession(ctx context.Context, telefone string) (string, time.Time, error) {
	l := logger.FromContext(ctx)

	token, err := generateToken()
	if err != nil {
		l.Error("auth_session_create_error", "error", err.Error())
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(SessionDuration).UTC()
	if err := a.db.CreateSession(ctx, token, telefone, expiresAt); err != nil {
		l.Error("auth_session_create_error", "error", err.Error())
		return "", time.Time{}, err
	}

	l.Info("auth_session_created", "telefone", telefone, "expires_at", expiresAt.Format(time.RFC3339))
	return token, expiresAt, nil
}

// ValidateSession returns the phone of the session owner when token is
// valid and not expired
func (a *Auth) ValidateSession(ctx context.Context, token string) (string, bool) {
	l := logger.FromContext(ctx)

	telefone, expiresAt, err := a.db.GetSession(ctx, token)
	if err != nil {
		l.Debug("auth_session_invalid", "reason", "not_found")
		return "", false
	}

	if time.Now().After(expiresAt) {
		l.Debug("auth_session_invalid", "reason", "expired")
		return "", false
	}
	return telefone, true
}

// DeleteSession removes a session
func (a *Auth) DeleteSession(ctx context.Context, token string) error {
	l := logger.FromContext(ctx)

	if err := a.db.DeleteSession(ctx, token); err != nil {
		l.Error("auth_session_delete_error", "error", err.Error())
		return err
	}
	l.Info("auth_logout")
	return nil
}

// CleanExpiredSessions removes expired sessions
func (a *Auth) CleanExpiredSessions(ctx context.Context) error {
	n, err := a.db.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.FromContext(ctx).Info("auth_sessions_cleaned", "count", n)
	}
	return nil
}

// SetSessionCookie sets the session cookie on the response
func (a *Auth) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie
func (a *Auth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// GetSessionFromRequest retrieves the session token from the cookie, or
// from an "Authorization: Bearer" header for API clients
func (a *Auth) GetSessionFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// UserFromContext returns the phone of the authenticated user, if any
func UserFromContext(ctx context.Context) (string, bool) {
	telefone, ok := ctx.Value(userKey).(string)
	return telefone, ok && telefone != ""
}

// WithUser marks ctx as authenticated as telefone
func WithUser(ctx context.Context, telefone string) context.Context {
	return context.WithValue(ctx, userKey, telefone)
}

// isPublic lists the routes reachable without a session: login,
// self-registration, the bot webhook and health checks
func isPublic(r *http.Request) bool {
	switch {
	case r.URL.Path == "/login" && r.Method == http.MethodPost:
		return true
	case r.URL.Path == "/users" && r.Method == http.MethodPost:
		return true
	case r.URL.Path == "/webhook":
		return true
	case r.URL.Path == "/api/version", r.URL.Path == "/healthz":
		return r.Method == http.MethodGet
	}
	return false
}

// Middleware attaches the session user to the request context and,
// when authentication is required, rejects other requests with 401
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := logger.FromContext(ctx)

		if token := a.GetSessionFromRequest(r); token != "" {
			if telefone, ok := a.ValidateSession(ctx, token); ok {
				logger.SetUser(ctx, telefone)
				ctx = logger.With(WithUser(ctx, telefone), "user", telefone)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		if !a.required || isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		l.Debug("auth_unauthorized", "path", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Não autorizado",
		})
	})
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
