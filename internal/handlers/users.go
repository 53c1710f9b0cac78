package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"dashfin/internal/auth"
	"dashfin/internal/database"
	"dashfin/internal/ledger"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	msgUserNotFound   = "Usuário não encontrado"
	msgPhoneTaken     = "Este número de telefone já está cadastrado"
	msgEmailTaken     = "Este email já está cadastrado"
	msgPasswordLength = "A senha deve ter no máximo 72 bytes"
	msgForbidden      = "Acesso negado"

	// bcrypt ignores anything past 72 bytes
	maxPasswordBytes = 72
)

type createUserRequest struct {
	Nome       string          `json:"nome"`
	Telefone   string          `json:"telefone"`
	Email      string          `json:"email"`
	Senha      string          `json:"senha"`
	MetaMensal decimal.Decimal `json:"metaMensal"`
}

type userList struct {
	Usuarios []models.Usuario `json:"usuarios"`
	Total    int              `json:"total"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		internalError(w, r, "users_list_error", err)
		return
	}
	ok(w, r, userList{Usuarios: users, Total: len(users)})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.ledger.ResolveUser(r.Context(), r.PathValue("telefone"))
	if err != nil {
		storeError(w, r, "user_get_error", err, msgUserNotFound)
		return
	}
	ok(w, r, user)
}

// CreateUser registers a new user. The phone is stored normalized and the
// password hashed.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Nome = strings.TrimSpace(req.Nome)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Nome == "" || strings.TrimSpace(req.Telefone) == "" || req.Email == "" || req.Senha == "" || !req.MetaMensal.IsPositive() {
		fail(w, r, http.StatusBadRequest, "Todos os campos são obrigatórios")
		return
	}
	if len(req.Senha) > maxPasswordBytes {
		fail(w, r, http.StatusBadRequest, msgPasswordLength)
		return
	}
	telefone := ledger.NormalizePhone(req.Telefone)

	if _, err := h.ledger.ResolveUser(ctx, telefone); err == nil {
		fail(w, r, http.StatusConflict, msgPhoneTaken)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		internalError(w, r, "user_check_error", err)
		return
	}
	if _, err := h.db.GetUserByEmail(ctx, req.Email); err == nil {
		fail(w, r, http.StatusConflict, msgEmailTaken)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		internalError(w, r, "user_check_error", err)
		return
	}

	hash, err := auth.HashPassword(req.Senha)
	if err != nil {
		internalError(w, r, "user_hash_error", err)
		return
	}

	user, err := h.db.CreateUser(ctx, models.Usuario{
		Telefone:   telefone,
		Nome:       req.Nome,
		Email:      req.Email,
		Senha:      hash,
		MetaMensal: req.MetaMensal,
		Status:     models.StatusAtivo,
	})
	if errors.Is(err, database.ErrDuplicate) {
		// lost a race with a concurrent registration
		fail(w, r, http.StatusConflict, msgPhoneTaken)
		return
	}
	if err != nil {
		internalError(w, r, "user_create_error", err)
		return
	}

	l.Info("user_created", "telefone", user.Telefone)
	writeJSON(w, r, http.StatusCreated, envelope{Success: true, Message: "Usuário criado com sucesso", Data: user})
}

// ownsAccount lets a session act only on its own account. Anonymous
// requests pass only while authentication is disabled.
func (h *Handler) ownsAccount(w http.ResponseWriter, r *http.Request, telefone string) bool {
	session, found := auth.UserFromContext(r.Context())
	if (found || h.auth.Required()) && session != telefone {
		logger.FromContext(r.Context()).Warn("user_access_denied", "target", telefone)
		fail(w, r, http.StatusForbidden, msgForbidden)
		return false
	}
	return true
}

type updateUserRequest struct {
	Nome       *string          `json:"nome"`
	Email      *string          `json:"email"`
	Senha      *string          `json:"senha"`
	MetaMensal *decimal.Decimal `json:"metaMensal"`
	Status     *string          `json:"status"`
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.ledger.ResolveUser(ctx, r.PathValue("telefone"))
	if err != nil {
		storeError(w, r, "user_get_error", err, msgUserNotFound)
		return
	}
	if !h.ownsAccount(w, r, user.Telefone) {
		return
	}

	if req.Nome != nil && strings.TrimSpace(*req.Nome) != "" {
		user.Nome = strings.TrimSpace(*req.Nome)
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.MetaMensal != nil {
		if !req.MetaMensal.IsPositive() {
			fail(w, r, http.StatusBadRequest, "Meta mensal inválida")
			return
		}
		user.MetaMensal = *req.MetaMensal
	}
	if req.Status != nil {
		if *req.Status != models.StatusAtivo && *req.Status != models.StatusInativo {
			fail(w, r, http.StatusBadRequest, "Status inválido")
			return
		}
		user.Status = *req.Status
	}
	if req.Senha != nil && *req.Senha != "" {
		if len(*req.Senha) > maxPasswordBytes {
			fail(w, r, http.StatusBadRequest, msgPasswordLength)
			return
		}
		hash, err := auth.HashPassword(*req.Senha)
		if err != nil {
			internalError(w, r, "user_hash_error", err)
			return
		}
		user.Senha = hash
	}

	err = h.db.UpdateUser(ctx, user)
	if errors.Is(err, database.ErrDuplicate) {
		fail(w, r, http.StatusConflict, msgEmailTaken)
		return
	}
	if err != nil {
		storeError(w, r, "user_update_error", err, msgUserNotFound)
		return
	}

	logger.FromContext(ctx).Info("user_updated", "telefone", user.Telefone)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Usuário atualizado com sucesso", Data: user})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.ledger.ResolveUser(ctx, r.PathValue("telefone"))
	if err != nil {
		storeError(w, r, "user_get_error", err, msgUserNotFound)
		return
	}
	if !h.ownsAccount(w, r, user.Telefone) {
		return
	}
	if err := h.db.DeleteUser(ctx, user.Telefone); err != nil {
		storeError(w, r, "user_delete_error", err, msgUserNotFound)
		return
	}

	logger.FromContext(ctx).Info("user_deleted", "telefone", user.Telefone)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Usuário removido com sucesso"})
}
