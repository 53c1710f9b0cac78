package handlers

import (
	"errors"
	"net/http"
	"time"

	"dashfin/internal/classifier"
	"dashfin/internal/models"
	"dashfin/internal/webhook"
)

var webhookFeatures = []string{
	"Processamento de texto via IA",
	"Extração de valores monetários",
	"Categorização automática",
	"Identificação de cartão/conta",
	"Confidence scoring",
	"Revisão manual para baixa confiança",
}

func allowWebhookCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

type manualReview struct {
	ProcessedContent  classifier.Result `json:"processedContent"`
	OriginalContent   string            `json:"originalContent"`
	NeedsManualReview bool              `json:"needsManualReview"`
}

// Webhook turns a bot message into a stored expense or income
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	allowWebhookCORS(w)

	var msg webhook.Message
	if !decodeJSON(w, r, &msg) {
		return
	}

	outcome, err := h.webhook.Process(r.Context(), msg)
	switch {
	case errors.Is(err, webhook.ErrMissingFields):
		fail(w, r, http.StatusBadRequest, "Campos obrigatórios: messageType, content, phoneNumber")
		return
	case errors.Is(err, webhook.ErrUnsupportedType):
		fail(w, r, http.StatusBadRequest, "Tipo de mensagem não suportado")
		return
	case err != nil:
		internalError(w, r, "webhook_process_error", err)
		return
	}

	if outcome.NeedsManualReview() {
		writeJSON(w, r, http.StatusOK, envelope{
			Success: false,
			Message: "Não foi possível extrair informações de valor da mensagem",
			Data: manualReview{
				ProcessedContent:  outcome.Result,
				OriginalContent:   msg.Content,
				NeedsManualReview: true,
			},
		})
		return
	}

	key, message := "expense", "Gasto processado com sucesso"
	if outcome.Result.IsIncome {
		key, message = "income", "Ganho processado com sucesso"
	}
	data := map[string]any{
		key:                  outcome.Transaction,
		"confidence":         outcome.Result.Confidence,
		"needsReview":        outcome.Result.NeedsReview(),
		"cardIdentification": outcome.Result.CardIdentification,
		"source":             outcome.Source,
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

type webhookStatus struct {
	Timestamp      time.Time `json:"timestamp"`
	SupportedTypes []string  `json:"supportedTypes"`
	Features       []string  `json:"features"`
	Categories     struct {
		Expense []string `json:"expense"`
		Income  []string `json:"income"`
	} `json:"categories"`
}

func (h *Handler) WebhookStatus(w http.ResponseWriter, r *http.Request) {
	allowWebhookCORS(w)

	status := webhookStatus{
		Timestamp:      h.now().UTC(),
		SupportedTypes: []string{"text", "image", "audio"},
		Features:       webhookFeatures,
	}
	status.Categories.Expense = models.ExpenseCategories
	status.Categories.Income = models.IncomeCategories

	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "Webhook ativo e funcionando", Data: status})
}

func (h *Handler) WebhookOptions(w http.ResponseWriter, r *http.Request) {
	allowWebhookCORS(w)
	w.WriteHeader(http.StatusOK)
}
