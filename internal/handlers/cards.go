package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"dashfin/internal/identify"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	kindAccount = "account"

	msgCardNotFound    = "Cartão não encontrado"
	msgAccountNotFound = "Conta não encontrada"
	msgNameRequired    = "Nome é obrigatório"
)

// instrumentPatch splits a card/account request body into the kind
// discriminator ("card" or "account") and the record fields. The
// record's own type (credit, checking...) travels as instrumentType.
func instrumentPatch(w http.ResponseWriter, r *http.Request) (string, map[string]json.RawMessage, bool) {
	var body map[string]json.RawMessage
	if !decodeJSON(w, r, &body) {
		return "", nil, false
	}

	var kind string
	if raw, found := body["type"]; found {
		if err := json.Unmarshal(raw, &kind); err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidJSON)
			return "", nil, false
		}
	}
	delete(body, "type")
	if raw, found := body["instrumentType"]; found {
		body["type"] = raw
		delete(body, "instrumentType")
	}
	return kind, body, true
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Get("type") == "accounts" {
		accounts, err := h.db.ListAccounts(ctx)
		if err != nil {
			internalError(w, r, "accounts_list_error", err)
			return
		}
		ok(w, r, accounts)
		return
	}
	cards, err := h.db.ListCards(ctx)
	if err != nil {
		internalError(w, r, "cards_list_error", err)
		return
	}
	ok(w, r, cards)
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	kind, patch, valid := instrumentPatch(w, r)
	if !valid {
		return
	}

	if kind == kindAccount {
		account := models.Account{Type: "checking", Status: "active"}
		if err := mergeJSON(&account, patch, "id"); err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		if strings.TrimSpace(account.Name) == "" {
			fail(w, r, http.StatusBadRequest, msgNameRequired)
			return
		}
		created, err := h.db.CreateAccount(ctx, account)
		if err != nil {
			internalError(w, r, "account_create_error", err)
			return
		}
		l.Info("account_created", "id", created.ID, "name", created.Name)
		writeJSON(w, r, http.StatusCreated, envelope{Success: true, Data: created})
		return
	}

	card := models.Card{Type: "credit", Status: "active"}
	if err := mergeJSON(&card, patch, "id"); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if strings.TrimSpace(card.Name) == "" {
		fail(w, r, http.StatusBadRequest, msgNameRequired)
		return
	}
	created, err := h.db.CreateCard(ctx, card)
	if err != nil {
		internalError(w, r, "card_create_error", err)
		return
	}
	l.Info("card_created", "id", created.ID, "name", created.Name)
	writeJSON(w, r, http.StatusCreated, envelope{Success: true, Data: created})
}

// UpdateCard merges the body onto the stored card or account named by
// its id field
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	kind, patch, valid := instrumentPatch(w, r)
	if !valid {
		return
	}
	var id string
	if raw, found := patch["id"]; found {
		if err := json.Unmarshal(raw, &id); err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidJSON)
			return
		}
	}
	if id == "" {
		fail(w, r, http.StatusBadRequest, "ID é obrigatório")
		return
	}

	if kind == kindAccount {
		account, err := h.db.GetAccount(ctx, id)
		if err != nil {
			storeError(w, r, "account_get_error", err, msgAccountNotFound)
			return
		}
		if err := mergeJSON(&account, patch, "id"); err != nil {
			fail(w, r, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		account.ID = id
		if err := h.db.UpdateAccount(ctx, account); err != nil {
			storeError(w, r, "account_update_error", err, msgAccountNotFound)
			return
		}
		l.Info("account_updated", "id", id)
		ok(w, r, account)
		return
	}

	card, err := h.db.GetCard(ctx, id)
	if err != nil {
		storeError(w, r, "card_get_error", err, msgCardNotFound)
		return
	}
	if err := mergeJSON(&card, patch, "id"); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	card.ID = id
	if err := h.db.UpdateCard(ctx, card); err != nil {
		storeError(w, r, "card_update_error", err, msgCardNotFound)
		return
	}
	l.Info("card_updated", "id", id)
	ok(w, r, card)
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")
	kind := r.URL.Query().Get("type")
	if id == "" || kind == "" {
		fail(w, r, http.StatusBadRequest, "ID e tipo são obrigatórios")
		return
	}

	if kind == kindAccount {
		if err := h.db.DeleteAccount(ctx, id); err != nil {
			storeError(w, r, "account_delete_error", err, msgAccountNotFound)
			return
		}
	} else if err := h.db.DeleteCard(ctx, id); err != nil {
		storeError(w, r, "card_delete_error", err, msgCardNotFound)
		return
	}

	logger.FromContext(ctx).Info("instrument_deleted", "id", id, "kind", kind)
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Item deletado com sucesso"})
}

type identifyRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

type identifyResponse struct {
	Identified     bool
	Identification *identify.Identification
	Suggestions    []identify.Suggestion
}

// MarshalJSON flattens the identification next to identified and
// suggestions
func (resp identifyResponse) MarshalJSON() ([]byte, error) {
	fields := map[string]any{
		"identified":  resp.Identified,
		"suggestions": resp.Suggestions,
	}
	if resp.Identification != nil {
		raw, err := json.Marshal(resp.Identification)
		if err != nil {
			return nil, err
		}
		var id map[string]any
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, err
		}
		for k, v := range id {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req identifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" || req.Amount.IsZero() {
		fail(w, r, http.StatusBadRequest, "Descrição e valor são obrigatórios")
		return
	}

	catalog, err := identify.LoadCatalog(ctx, h.db, h.defaults)
	if err != nil {
		internalError(w, r, "identify_catalog_error", err)
		return
	}

	id := catalog.IdentifyWithCategory(req.Description, req.Amount, req.Category)
	resp := identifyResponse{
		Identified:     id != nil,
		Identification: id,
		Suggestions:    catalog.Suggestions(id != nil),
	}
	if id != nil {
		logger.FromContext(ctx).Debug("instrument_identified", "method", id.Method, "name", id.Name())
	}
	ok(w, r, resp)
}

func (h *Handler) IdentifierStats(w http.ResponseWriter, r *http.Request) {
	catalog, err := identify.LoadCatalog(r.Context(), h.db, h.defaults)
	if err != nil {
		internalError(w, r, "identify_catalog_error", err)
		return
	}
	ok(w, r, catalog.Stats())
}
