// Package handlers serves the dashboard's JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dashfin/internal/auth"
	"dashfin/internal/database"
	"dashfin/internal/identify"
	"dashfin/internal/ledger"
	"dashfin/internal/logger"
	"dashfin/internal/webhook"
)

const (
	maxBodyBytes = 1 << 20

	msgInternalError = "Erro interno do servidor"
	msgInvalidJSON   = "JSON inválido"
)

// Options configures a Handler
type Options struct {
	DefaultUser string
	Defaults    identify.Defaults
	Now         func() time.Time
}

type Handler struct {
	db          *database.DB
	auth        *auth.Auth
	ledger      *ledger.Ledger
	webhook     *webhook.Processor
	defaultUser string
	defaults    identify.Defaults
	now         func() time.Time
}

func New(db *database.DB, a *auth.Auth, opts Options) *Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		db:     db,
		auth:   a,
		ledger: ledger.New(db),
		webhook: webhook.NewProcessor(db, webhook.Options{
			DefaultUser: opts.DefaultUser,
			Defaults:    opts.Defaults,
			Now:         now,
		}),
		defaultUser: opts.DefaultUser,
		defaults:    opts.Defaults,
		now:         now,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /me", h.Me)

	mux.HandleFunc("GET /expenses", h.ListExpenses)
	mux.HandleFunc("POST /expenses", h.CreateExpense)
	mux.HandleFunc("GET /expenses/user-phone", h.ExpensesByPhone)
	mux.HandleFunc("GET /income", h.ListIncome)
	mux.HandleFunc("POST /income", h.CreateIncome)
	mux.HandleFunc("GET /income/user-phone", h.IncomeByPhone)
	mux.HandleFunc("GET /transactions/{id}", h.GetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", h.UpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", h.DeleteTransaction)
	mux.HandleFunc("GET /stats/user-phone", h.StatsByPhone)
	mux.HandleFunc("GET /balance", h.Balance)

	mux.HandleFunc("GET /cards", h.ListCards)
	mux.HandleFunc("POST /cards", h.CreateCard)
	mux.HandleFunc("PUT /cards", h.UpdateCard)
	mux.HandleFunc("DELETE /cards", h.DeleteCard)
	mux.HandleFunc("GET /cards/identify", h.IdentifierStats)
	mux.HandleFunc("POST /cards/identify", h.Identify)

	mux.HandleFunc("GET /users", h.ListUsers)
	mux.HandleFunc("POST /users", h.CreateUser)
	mux.HandleFunc("GET /users/{telefone}", h.GetUser)
	mux.HandleFunc("PUT /users/{telefone}", h.UpdateUser)
	mux.HandleFunc("DELETE /users/{telefone}", h.DeleteUser)

	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /webhook", h.WebhookStatus)
	mux.HandleFunc("OPTIONS /webhook", h.WebhookOptions)

	mux.HandleFunc("GET /api/jobs/{id}", h.JobStatus)
	mux.HandleFunc("GET /api/version", h.APIVersion)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}

// envelope is the body of every API response
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromContext(r.Context()).Warn("response_encode_error", "error", err.Error())
	}
}

func ok(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, envelope{Success: false, Error: msg})
}

// internalError logs err under event and answers with a generic 500
func internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	logger.FromContext(r.Context()).Error(event, "error", err.Error())
	fail(w, r, http.StatusInternalServerError, msgInternalError)
}

// storeError answers 404 with notFound for database.ErrNotFound, else 500
func storeError(w http.ResponseWriter, r *http.Request, event string, err error, notFound string) {
	if errors.Is(err, database.ErrNotFound) {
		fail(w, r, http.StatusNotFound, notFound)
		return
	}
	internalError(w, r, event, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.FromContext(r.Context()).Debug("request_decode_error", "error", err.Error())
		fail(w, r, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

// mergeJSON overlays the fields present in patch onto dst, leaving the
// others untouched. Keys listed in protected are ignored.
func mergeJSON(dst any, patch map[string]json.RawMessage, protected ...string) error {
	current, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &fields); err != nil {
		return err
	}
	for k, v := range patch {
		fields[k] = v
	}
	for _, k := range protected {
		delete(fields, k)
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, dst)
}
