package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"dashfin/internal/auth"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Telefone string `json:"telefone"`
	Senha    string `json:"senha"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      models.Usuario `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	login := firstNonEmpty(req.Login, req.Email, req.Telefone)
	password := firstNonEmpty(req.Senha, req.Password)
	if strings.TrimSpace(login) == "" || password == "" {
		fail(w, r, http.StatusBadRequest, "Login e senha são obrigatórios")
		return
	}

	user, err := h.auth.Authenticate(ctx, login, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(w, r, http.StatusUnauthorized, "Credenciais inválidas")
		return
	case errors.Is(err, auth.ErrInactiveUser):
		fail(w, r, http.StatusForbidden, "Usuário inativo")
		return
	case err != nil:
		internalError(w, r, "login_error", err)
		return
	}

	token, expiresAt, err := h.auth.CreateSession(ctx, user.Telefone)
	if err != nil {
		internalError(w, r, "session_create_error", err)
		return
	}

	h.auth.SetSessionCookie(w, token)
	writeJSON(w, r, http.StatusOK, envelope{
		Success: true,
		Message: "Login realizado com sucesso",
		Data:    loginResponse{Token: token, ExpiresAt: expiresAt, User: user},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := h.auth.GetSessionFromRequest(r); token != "" {
		if err := h.auth.DeleteSession(ctx, token); err != nil {
			logger.FromContext(ctx).Warn("session_delete_error", "error", err.Error())
		}
	}
	h.auth.ClearSessionCookie(w)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Logout realizado com sucesso"})
}

// Me returns the user behind the current session
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	telefone, found := auth.UserFromContext(r.Context())
	if !found {
		fail(w, r, http.StatusUnauthorized, "Não autorizado")
		return
	}
	user, err := h.db.GetUserByPhone(r.Context(), telefone)
	if err != nil {
		storeError(w, r, "user_get_error", err, "Usuário não encontrado")
		return
	}
	ok(w, r, user)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
