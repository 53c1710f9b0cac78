package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dashfin/internal/auth"
	"dashfin/internal/database"
	"dashfin/internal/ledger"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	msgExpenseRequired     = "Campos obrigatórios: estabelecimento, valor, categoria"
	msgIncomeRequired      = "Campos obrigatórios não preenchidos"
	msgPhoneRequired       = `Parâmetro "phone" é obrigatório`
	msgTransactionNotFound = "Transação não encontrada"
	msgInvalidDate         = "Data inválida"
)

type transactionRequest struct {
	Estabelecimento string          `json:"estabelecimento"`
	Valor           decimal.Decimal `json:"valor"`
	Detalhes        string          `json:"detalhes"`
	Categoria       string          `json:"categoria"`
	Quando          string          `json:"quando"`
	User            string          `json:"user"`
	UserPhone       string          `json:"user_phone"`
}

// parseWhen accepts RFC 3339 timestamps and bare YYYY-MM-DD dates
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// filterFromQuery reads the optional start, end and user parameters
func filterFromQuery(r *http.Request, tipo string) (models.TransacaoFilter, error) {
	q := r.URL.Query()
	filter := models.TransacaoFilter{Tipo: tipo, User: q.Get("user")}
	if s := q.Get("start"); s != "" {
		t, err := parseWhen(s)
		if err != nil {
			return filter, err
		}
		filter.Start = &t
	}
	if s := q.Get("end"); s != "" {
		t, err := parseWhen(s)
		if err != nil {
			return filter, err
		}
		filter.End = &t
	}
	return filter, nil
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r, models.TipoDespesa)
	if err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidDate)
		return
	}
	despesas, err := h.db.ListTransactions(r.Context(), filter)
	if err != nil {
		internalError(w, r, "expenses_list_error", err)
		return
	}
	ok(w, r, despesas)
}

type incomeList struct {
	Receitas   []models.Transacao `json:"receitas"`
	Total      int                `json:"total"`
	ValorTotal decimal.Decimal    `json:"valorTotal"`
}

func (h *Handler) ListIncome(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r, models.TipoReceita)
	if err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidDate)
		return
	}
	receitas, err := h.db.ListTransactions(r.Context(), filter)
	if err != nil {
		internalError(w, r, "income_list_error", err)
		return
	}
	ok(w, r, incomeList{Receitas: receitas, Total: len(receitas), ValorTotal: ledger.Total(receitas)})
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	h.createTransaction(w, r, models.TipoDespesa, msgExpenseRequired, "Despesa adicionada com sucesso")
}

func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	h.createTransaction(w, r, models.TipoReceita, msgIncomeRequired, "Ganho adicionado com sucesso")
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request, tipo, required, created string) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Estabelecimento = strings.TrimSpace(req.Estabelecimento)
	req.Categoria = strings.TrimSpace(req.Categoria)
	if req.Estabelecimento == "" || req.Categoria == "" || !req.Valor.IsPositive() {
		fail(w, r, http.StatusBadRequest, required)
		return
	}

	quando := h.now()
	if req.Quando != "" {
		t, err := parseWhen(req.Quando)
		if err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidDate)
			return
		}
		quando = t
	}

	user, phone, err := h.owner(r, req.User, req.UserPhone)
	if err != nil {
		internalError(w, r, "transaction_owner_error", err)
		return
	}

	tx, err := h.db.CreateTransaction(ctx, models.Transacao{
		Quando:          quando,
		User:            user,
		UserPhone:       phone,
		Estabelecimento: req.Estabelecimento,
		Valor:           req.Valor,
		Detalhes:        req.Detalhes,
		Tipo:            tipo,
		Categoria:       req.Categoria,
	})
	if err != nil {
		internalError(w, r, "transaction_create_error", err)
		return
	}

	l.Info("transaction_created", "id", tx.ID, "tipo", tipo, "user", tx.User)
	writeJSON(w, r, http.StatusCreated, envelope{Success: true, Message: created, Data: tx})
}

// owner picks the user a new transaction belongs to: the explicit body
// fields, then the session user, then the configured default name
func (h *Handler) owner(r *http.Request, user, phone string) (string, string, error) {
	if phone != "" {
		phone = ledger.NormalizePhone(phone)
	}
	if user != "" {
		return user, phone, nil
	}

	lookup := phone
	if lookup == "" {
		lookup, _ = auth.UserFromContext(r.Context())
	}
	if lookup == "" {
		return h.defaultUser, phone, nil
	}

	u, err := h.ledger.ResolveUser(r.Context(), lookup)
	if errors.Is(err, database.ErrNotFound) {
		return h.defaultUser, phone, nil
	}
	if err != nil {
		return "", "", err
	}
	return u.Nome, u.Telefone, nil
}

func (h *Handler) ExpensesByPhone(w http.ResponseWriter, r *http.Request) {
	h.transactionsByPhone(w, r, models.TipoDespesa)
}

func (h *Handler) IncomeByPhone(w http.ResponseWriter, r *http.Request) {
	h.transactionsByPhone(w, r, models.TipoReceita)
}

func (h *Handler) transactionsByPhone(w http.ResponseWriter, r *http.Request, tipo string) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		fail(w, r, http.StatusBadRequest, msgPhoneRequired)
		return
	}
	txs, err := h.ledger.TransactionsByPhone(r.Context(), tipo, phone)
	if err != nil {
		internalError(w, r, "transactions_by_phone_error", err)
		return
	}
	ok(w, r, txs)
}

func (h *Handler) StatsByPhone(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		fail(w, r, http.StatusBadRequest, msgPhoneRequired)
		return
	}
	stats, err := h.ledger.StatsByPhone(r.Context(), phone)
	if err != nil {
		internalError(w, r, "stats_by_phone_error", err)
		return
	}
	ok(w, r, stats)
}

type balanceResponse struct {
	models.Stats
	UltimaAtualizacao time.Time `json:"ultimaAtualizacao"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Balance(r.Context())
	if err != nil {
		internalError(w, r, "balance_error", err)
		return
	}
	ok(w, r, balanceResponse{Stats: stats, UltimaAtualizacao: h.now().UTC()})
}

func transactionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, valid := transactionID(r)
	if !valid {
		fail(w, r, http.StatusBadRequest, "ID inválido")
		return
	}
	tx, err := h.db.GetTransaction(r.Context(), id)
	if err != nil {
		storeError(w, r, "transaction_get_error", err, msgTransactionNotFound)
		return
	}
	ok(w, r, tx)
}

// UpdateTransaction applies a partial update: fields absent from the body
// keep their stored value
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, valid := transactionID(r)
	if !valid {
		fail(w, r, http.StatusBadRequest, "ID inválido")
		return
	}

	var patch map[string]json.RawMessage
	if !decodeJSON(w, r, &patch) {
		return
	}

	if raw, found := patch["quando"]; found {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidDate)
			return
		}
		when, err := parseWhen(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidDate)
			return
		}
		if patch["quando"], err = json.Marshal(when); err != nil {
			internalError(w, r, "transaction_encode_error", err)
			return
		}
	}

	tx, err := h.db.GetTransaction(ctx, id)
	if err != nil {
		storeError(w, r, "transaction_get_error", err, msgTransactionNotFound)
		return
	}
	if err := mergeJSON(&tx, patch, "id", "created_at"); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	tx.ID = id
	if !models.ValidTipo(tx.Tipo) || !tx.Valor.IsPositive() || strings.TrimSpace(tx.Estabelecimento) == "" {
		fail(w, r, http.StatusBadRequest, "Dados da transação inválidos")
		return
	}
	if tx.UserPhone != "" {
		tx.UserPhone = ledger.NormalizePhone(tx.UserPhone)
	}

	if err := h.db.UpdateTransaction(ctx, tx); err != nil {
		storeError(w, r, "transaction_update_error", err, msgTransactionNotFound)
		return
	}
	logger.FromContext(ctx).Info("transaction_updated", "id", id)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Transação atualizada com sucesso", Data: tx})
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, valid := transactionID(r)
	if !valid {
		fail(w, r, http.StatusBadRequest, "ID inválido")
		return
	}
	if err := h.db.DeleteTransaction(r.Context(), id); err != nil {
		storeError(w, r, "transaction_delete_error", err, msgTransactionNotFound)
		return
	}
	logger.FromContext(r.Context()).Info("transaction_deleted", "id", id)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Transação removida com sucesso"})
}
