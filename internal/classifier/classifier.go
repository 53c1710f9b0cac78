// Package classifier turns a free-text financial message into a
// structured transaction: amount, category, income or expense, and a
// confidence score.
package classifier

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"dashfin/internal/identify"
	"dashfin/internal/models"
)

// Origin is how the message reached us
type Origin string

const (
	OriginText  Origin = "text"
	OriginPhoto Origin = "photo"
	OriginAudio Origin = "audio"
)

// Source is the value stored as the transaction's source field
func (o Origin) Source() string {
	return "whatsapp_" + string(o)
}

// ReviewThreshold is the confidence below which a result needs review
const ReviewThreshold = 0.8

const maxDescriptionRunes = 100

// Result is the outcome of classifying one message
type Result struct {
	Description        string                   `json:"description"`
	Amount             decimal.Decimal          `json:"amount"`
	Category           string                   `json:"category"`
	Confidence         float64                  `json:"confidence"`
	ExtractedBy        string                   `json:"extractedBy"`
	IsIncome           bool                     `json:"isIncome"`
	CardIdentification *identify.Identification `json:"cardIdentification,omitempty"`
}

// Tipo maps the income flag to the stored transaction kind
func (r Result) Tipo() string {
	if r.IsIncome {
		return models.TipoReceita
	}
	return models.TipoDespesa
}

func (r Result) NeedsReview() bool {
	return r.Confidence < ReviewThreshold
}

// CardIdentifier resolves the instrument that paid for an expense.
// identify.Catalog satisfies it.
type CardIdentifier interface {
	Identify(text string, amount decimal.Decimal) *identify.Identification
}

var (
	// Brazilian grouped form ("1.234,56") first, then a plain number with
	// an optional "," or "." decimal part. The leftmost match wins.
	amountPattern   = regexp.MustCompile(`(?:R\$\s*)?(?:(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?)|(\d+(?:[.,]\d{1,2})?))`)
	fallbackPattern = regexp.MustCompile(`\d+(?:,\d{2})?`)
)

type rule struct {
	category string
	keywords []string
}

var incomeKeywords = []string{"salário", "recebi", "ganhei", "bonus", "bônus", "freelance", "investimento", "rendimento"}

// Evaluated in order, first match wins
var incomeRules = []rule{
	{"Salário", []string{"salário", "salario"}},
	{"Freelance", []string{"freelance"}},
	{"Investimentos", []string{"investimento", "rendimento"}},
	{"Bônus", []string{"bonus", "bônus"}},
}

var expenseRules = []rule{
	{"Alimentação", []string{"restaurante", "comida", "almoço", "jantar"}},
	{"Transporte", []string{"gasolina", "uber", "taxi"}},
	{"Casa", []string{"supermercado", "casa", "mercado"}},
	{"Lazer", []string{"cinema", "lazer", "diversão"}},
	{"Saúde", []string{"farmácia", "médico", "saúde"}},
}

// DefaultCategory is used when no rule matches
const DefaultCategory = "Outros"

// Classify extracts a transaction from content. When cards is non-nil and
// the message is an expense with a positive amount, the paying card or
// account is identified as well. Classify never fails; an unparseable
// amount yields zero.
func Classify(content string, origin Origin, cards CardIdentifier) Result {
	text := strings.ToLower(content)

	amount := ExtractAmount(content)
	isIncome := containsAny(text, incomeKeywords)

	var category string
	if isIncome {
		category = firstMatch(text, incomeRules)
	} else {
		category = firstMatch(text, expenseRules)
	}

	result := Result{
		Description: truncate(content, maxDescriptionRunes),
		Amount:      amount,
		Category:    category,
		Confidence:  confidence(amount, category),
		ExtractedBy: "ai_" + string(origin),
		IsIncome:    isIncome,
	}

	if cards != nil && !isIncome && amount.IsPositive() {
		result.CardIdentification = cards.Identify(content, amount)
	}
	return result
}

// ExtractAmount returns the first monetary value in s, or zero
func ExtractAmount(s string) decimal.Decimal {
	var amount decimal.Decimal
	if m := amountPattern.FindStringSubmatch(s); m != nil {
		var raw string
		if m[1] != "" {
			raw = strings.ReplaceAll(m[1], ".", "")
		} else {
			raw = m[2]
		}
		amount = parseDecimal(raw)
	}

	if amount.IsZero() {
		if raw := fallbackPattern.FindString(s); raw != "" {
			amount = parseDecimal(raw)
		}
	}
	return amount
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func confidence(amount decimal.Decimal, category string) float64 {
	hasAmount := amount.IsPositive()
	hasCategory := category != DefaultCategory
	switch {
	case hasAmount && hasCategory:
		return 0.9
	case hasAmount || hasCategory:
		return 0.8
	default:
		return 0.7
	}
}

func firstMatch(text string, rules []rule) string {
	for _, r := range rules {
		if containsAny(text, r.keywords) {
			return r.category
		}
	}
	return DefaultCategory
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
