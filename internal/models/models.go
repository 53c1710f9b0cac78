package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction types as stored in transacoes.tipo
const (
	TipoDespesa = "despesa"
	TipoReceita = "receita"
)

// User statuses
const (
	StatusAtivo   = "ativo"
	StatusInativo = "inativo"
)

// ValidTipo reports whether t is one of the two ledger tags
func ValidTipo(t string) bool {
	return t == TipoDespesa || t == TipoReceita
}

// ExpenseCategories is the ordered list of labels the classifier can assign to expenses
var ExpenseCategories = []string{
	"Alimentação",
	"Transporte",
	"Casa",
	"Lazer",
	"Saúde",
	"Outros",
}

// IncomeCategories is the ordered list of labels the classifier can assign to income
var IncomeCategories = []string{
	"Salário",
	"Freelance",
	"Investimentos",
	"Bônus",
	"Outros",
}

// Transacao is a single ledger entry, either an expense or an income
type Transacao struct {
	ID              int64           `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Quando          time.Time       `json:"quando"`
	User            string          `json:"user"`
	UserPhone       string          `json:"user_phone,omitempty"`
	Estabelecimento string          `json:"estabelecimento"`
	Valor           decimal.Decimal `json:"valor"`
	Detalhes        string          `json:"detalhes"`
	Tipo            string          `json:"tipo"` // "despesa" or "receita"
	Categoria       string          `json:"categoria"`
}

// TransacaoFilter narrows ListTransactions. Empty fields match everything.
type TransacaoFilter struct {
	Tipo      string
	User      string
	UserPhone string
	Start     *time.Time
	End       *time.Time
}

// Usuario is a registered dashboard user, keyed by phone number
type Usuario struct {
	Telefone     string          `json:"telefone"`
	Nome         string          `json:"nome"`
	Email        string          `json:"email"`
	Senha        string          `json:"-"` // bcrypt hash, or plaintext on rows not yet migrated
	MetaMensal   decimal.Decimal `json:"meta_mensal"`
	DataCadastro time.Time       `json:"data_cadastro"`
	Status       string          `json:"status"`
}

// Card is a credit or debit card the identifier can pick
type Card struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           string           `json:"type"` // "credit" or "debit"
	Bank           string           `json:"bank"`
	LastFourDigits string           `json:"lastFourDigits"`
	Limit          *decimal.Decimal `json:"limit,omitempty"`
	CurrentBalance decimal.Decimal  `json:"currentBalance"`
	DueDate        string           `json:"dueDate,omitempty"` // YYYY-MM-DD or empty
	Status         string           `json:"status"`
	Color          string           `json:"color"`
	Icon           string           `json:"icon"`
	Patterns       []string         `json:"patterns"`
	Position       int              `json:"-"`
}

// Account is a bank account the identifier can pick
type Account struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"` // "checking", "savings", "investment"
	Bank          string          `json:"bank"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
	Color         string          `json:"color"`
	Icon          string          `json:"icon"`
	Patterns      []string        `json:"patterns"`
	Position      int             `json:"-"`
}

// Stats aggregates a set of transactions
type Stats struct {
	TotalDespesas     decimal.Decimal `json:"totalDespesas"`
	TotalReceitas     decimal.Decimal `json:"totalReceitas"`
	SaldoRestante     decimal.Decimal `json:"saldoRestante"`
	TaxaEconomia      decimal.Decimal `json:"taxaEconomia"`
	TotalTransactions *int            `json:"totalTransactions,omitempty"`
}

// Job is a unit of background work picked up by the worker
type Job struct {
	ID          int64      `json:"id"`
	JobType     string     `json:"job_type"`
	Payload     string     `json:"payload"`  // JSON
	Status      string     `json:"status"`   // pending, running, completed, failed
	Progress    int        `json:"progress"` // 0-100
	Result      string     `json:"result"`   // JSON result or error message
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
