// Package identify guesses which card or account paid for a transaction
// from its free-text description and amount.
//
// Matching is ordered and first-match-wins: cards are scanned before
// accounts, each in catalog order, and a record's patterns in the order
// they were declared. Reordering the catalog changes results.
package identify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"dashfin/internal/models"
)

const (
	TypeCard    = "card"
	TypeAccount = "account"

	MethodPatternMatch  = "pattern_match"
	MethodAmountBased   = "amount_based"
	MethodCategoryBased = "category_based"

	PatternConfidence  = 0.9
	CategoryConfidence = 0.7
	AmountConfidence   = 0.6

	// Confidence attached to the generic suggestion lists
	SuggestionConfidenceIdentified   = 0.3
	SuggestionConfidenceUnidentified = 0.2
)

var (
	highAmountThreshold = decimal.NewFromInt(1000)
	lowAmountThreshold  = decimal.NewFromInt(100)
)

// Identification is the identifier's best guess. Exactly one of Card and
// Account is set, matching Type.
type Identification struct {
	Type       string // "card" or "account"
	Card       *models.Card
	Account    *models.Account
	Confidence float64
	Method     string
}

// MarshalJSON flattens Card/Account into a single cardOrAccount field
func (i Identification) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string  `json:"type"`
		CardOrAccount any     `json:"cardOrAccount"`
		Confidence    float64 `json:"confidence"`
		Method        string  `json:"method"`
	}{i.Type, i.Record(), i.Confidence, i.Method})
}

// Record returns whichever of Card or Account is set
func (i Identification) Record() any {
	if i.Card != nil {
		return i.Card
	}
	return i.Account
}

// Name is the display name of the identified card or account
func (i Identification) Name() string {
	if i.Card != nil {
		return i.Card.Name
	}
	if i.Account != nil {
		return i.Account.Name
	}
	return ""
}

// Defaults names the cards picked when no pattern matches
type Defaults struct {
	HighAmountCardID string // amounts above 1000
	LowAmountCardID  string // amounts below 100

	// CategoryCardIDs maps a transaction category to a card id, consulted
	// only when the caller knows the category.
	CategoryCardIDs map[string]string
}

// DefaultCategoryCards is the stock category → card id table
func DefaultCategoryCards() map[string]string {
	return map[string]string{
		"Alimentação": "1",
		"Transporte":  "2",
		"Casa":        "1",
		"Lazer":       "2",
		"Saúde":       "3",
	}
}

// Catalog is the ordered set of instruments the identifier scans
type Catalog struct {
	Cards    []models.Card
	Accounts []models.Account
	Defaults
}

// Source loads cards and accounts in declaration order
type Source interface {
	ListCards(ctx context.Context) ([]models.Card, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// LoadCatalog reads the current catalog from src
func LoadCatalog(ctx context.Context, src Source, defaults Defaults) (Catalog, error) {
	cards, err := src.ListCards(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load cards: %w", err)
	}
	accounts, err := src.ListAccounts(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load accounts: %w", err)
	}
	return Catalog{Cards: cards, Accounts: accounts, Defaults: defaults}, nil
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize lowercases s and strips diacritics ("Itaú" -> "itau")
func Normalize(s string) string {
	lower := strings.ToLower(s)
	out, _, err := transform.String(transform.Chain(norm.NFD, stripMarks), lower)
	if err != nil {
		return lower
	}
	return out
}

// Identify returns the first card or account whose pattern occurs in text,
// falling back to an amount-based default card. It returns nil when
// nothing applies.
func (c Catalog) Identify(text string, amount decimal.Decimal) *Identification {
	normalized := Normalize(text)

	for i := range c.Cards {
		if matchesAny(normalized, c.Cards[i].Patterns) {
			card := c.Cards[i]
			return &Identification{Type: TypeCard, Card: &card, Confidence: PatternConfidence, Method: MethodPatternMatch}
		}
	}

	for i := range c.Accounts {
		if matchesAny(normalized, c.Accounts[i].Patterns) {
			account := c.Accounts[i]
			return &Identification{Type: TypeAccount, Account: &account, Confidence: PatternConfidence, Method: MethodPatternMatch}
		}
	}

	var fallbackID string
	switch {
	case amount.GreaterThan(highAmountThreshold):
		fallbackID = c.HighAmountCardID
	case amount.LessThan(lowAmountThreshold):
		fallbackID = c.LowAmountCardID
	default:
		return nil
	}
	if card, ok := c.card(fallbackID); ok {
		return &Identification{Type: TypeCard, Card: &card, Confidence: AmountConfidence, Method: MethodAmountBased}
	}
	return nil
}

// IdentifyWithCategory is Identify plus a last fallback on the
// category → card table.
func (c Catalog) IdentifyWithCategory(text string, amount decimal.Decimal, category string) *Identification {
	if id := c.Identify(text, amount); id != nil {
		return id
	}
	if category == "" {
		return nil
	}
	if card, ok := c.card(c.CategoryCardIDs[category]); ok {
		return &Identification{Type: TypeCard, Card: &card, Confidence: CategoryConfidence, Method: MethodCategoryBased}
	}
	return nil
}

func matchesAny(normalized string, patterns []string) bool {
	for _, p := range patterns {
		p = Normalize(p)
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func (c Catalog) card(id string) (models.Card, bool) {
	if id == "" {
		return models.Card{}, false
	}
	for _, card := range c.Cards {
		if card.ID == id {
			return card, true
		}
	}
	return models.Card{}, false
}

// Suggestion is a low-confidence candidate offered to the user
type Suggestion struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Bank       string  `json:"bank"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Suggestions lists candidates to show next to an identification. After a
// successful identification only cards are offered; otherwise cards then
// accounts.
func (c Catalog) Suggestions(identified bool) []Suggestion {
	confidence := SuggestionConfidenceUnidentified
	if identified {
		confidence = SuggestionConfidenceIdentified
	}

	suggestions := make([]Suggestion, 0, len(c.Cards)+len(c.Accounts))
	for _, card := range c.Cards {
		suggestions = append(suggestions, Suggestion{ID: card.ID, Name: card.Name, Bank: card.Bank, Type: card.Type, Confidence: confidence})
	}
	if identified {
		return suggestions
	}
	for _, account := range c.Accounts {
		suggestions = append(suggestions, Suggestion{ID: account.ID, Name: account.Name, Bank: account.Bank, Type: account.Type, Confidence: confidence})
	}
	return suggestions
}

type MethodInfo struct {
	Method      string `json:"method"`
	Description string `json:"description"`
}

type Stats struct {
	TotalCards            int          `json:"totalCards"`
	TotalAccounts         int          `json:"totalAccounts"`
	IdentificationMethods []MethodInfo `json:"identificationMethods"`
	Patterns              []string     `json:"patterns"`
}

// Stats summarizes what the identifier knows about
func (c Catalog) Stats() Stats {
	patterns := []string{}
	for _, card := range c.Cards {
		patterns = append(patterns, card.Patterns...)
	}
	for _, account := range c.Accounts {
		patterns = append(patterns, account.Patterns...)
	}
	return Stats{
		TotalCards:    len(c.Cards),
		TotalAccounts: len(c.Accounts),
		IdentificationMethods: []MethodInfo{
			{Method: MethodPatternMatch, Description: "Identificação por padrões de texto"},
			{Method: MethodAmountBased, Description: "Identificação por valor da transação"},
			{Method: MethodCategoryBased, Description: "Identificação por categoria"},
		},
		Patterns: patterns,
	}
}
