// Package ledger answers per-user questions about transactions.
//
// Transactions are linked to a user in two ways: by the phone number the
// message came from (user_phone) and by the free-text display name in the
// user column. Older rows only carry the name, sometimes spelled slightly
// differently from the registered user, so lookups walk a chain:
// phone, then exact name, then names within a small edit distance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"dashfin/internal/database"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	CountryCode = "55"

	// DefaultMaxNameDistance is the edit distance under which two user
	// names are treated as the same person
	DefaultMaxNameDistance = 2
)

// Store is the subset of the database the ledger reads
type Store interface {
	ListTransactions(ctx context.Context, filter models.TransacaoFilter) ([]models.Transacao, error)
	DistinctTransactionUsers(ctx context.Context) ([]string, error)
	GetUserByPhone(ctx context.Context, telefone string) (models.Usuario, error)
}

type Ledger struct {
	store           Store
	maxNameDistance int
}

func New(store Store) *Ledger {
	return &Ledger{store: store, maxNameDistance: DefaultMaxNameDistance}
}

// NormalizePhone keeps only digits and prefixes the Brazilian country
// code when it is missing. Normalizing twice returns the same string.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" || strings.HasPrefix(digits, CountryCode) {
		return digits
	}
	return CountryCode + digits
}

// phoneCandidates lists the spellings a phone may have been registered
// under, most specific first
func phoneCandidates(phone string) []string {
	normalized := NormalizePhone(phone)
	candidates := []string{normalized}
	seen := map[string]bool{normalized: true}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}
	add(strings.TrimSpace(phone))
	add(strings.TrimPrefix(normalized, CountryCode))
	return candidates
}

// ResolveUser finds the registered user behind a phone number
func (l *Ledger) ResolveUser(ctx context.Context, phone string) (models.Usuario, error) {
	for _, candidate := range phoneCandidates(phone) {
		user, err := l.store.GetUserByPhone(ctx, candidate)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return models.Usuario{}, err
		}
	}
	return models.Usuario{}, fmt.Errorf("user with phone %s: %w", phone, database.ErrNotFound)
}

// TransactionsByPhone returns the transactions of kind tipo (empty for
// both kinds) that belong to phone, newest first. An unknown phone yields
// an empty list.
func (l *Ledger) TransactionsByPhone(ctx context.Context, tipo, phone string) ([]models.Transacao, error) {
	log := logger.FromContext(ctx)

	txs, err := l.store.ListTransactions(ctx, models.TransacaoFilter{Tipo: tipo, UserPhone: NormalizePhone(phone)})
	if err != nil {
		return nil, fmt.Errorf("list by phone: %w", err)
	}
	if len(txs) > 0 {
		return txs, nil
	}

	user, err := l.ResolveUser(ctx, phone)
	if errors.Is(err, database.ErrNotFound) {
		return []models.Transacao{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	txs, err = l.store.ListTransactions(ctx, models.TransacaoFilter{Tipo: tipo, User: user.Nome})
	if err != nil {
		return nil, fmt.Errorf("list by name: %w", err)
	}
	if len(txs) > 0 {
		log.Debug("ledger_resolved_by_name", "phone", phone, "user", user.Nome, "count", len(txs))
		return txs, nil
	}

	names, err := l.similarNames(ctx, user.Nome)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		more, err := l.store.ListTransactions(ctx, models.TransacaoFilter{Tipo: tipo, User: name})
		if err != nil {
			return nil, fmt.Errorf("list by similar name: %w", err)
		}
		txs = append(txs, more...)
	}
	if len(names) > 0 {
		log.Info("ledger_resolved_by_similar_name", "phone", phone, "user", user.Nome, "matches", names, "count", len(txs))
	}

	sortNewestFirst(txs)
	return txs, nil
}

// similarNames returns stored user names within the edit distance of
// name, excluding name itself
func (l *Ledger) similarNames(ctx context.Context, name string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	names, err := l.store.DistinctTransactionUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("distinct users: %w", err)
	}

	target := strings.ToLower(strings.TrimSpace(name))
	var matches []string
	for _, candidate := range names {
		if candidate == name {
			continue
		}
		if levenshtein.ComputeDistance(target, strings.ToLower(strings.TrimSpace(candidate))) <= l.maxNameDistance {
			matches = append(matches, candidate)
		}
	}
	return matches, nil
}

// StatsByPhone summarizes every transaction of phone
func (l *Ledger) StatsByPhone(ctx context.Context, phone string) (models.Stats, error) {
	txs, err := l.TransactionsByPhone(ctx, "", phone)
	if err != nil {
		return models.Stats{}, err
	}
	stats := Summarize(txs)
	count := len(txs)
	stats.TotalTransactions = &count
	return stats, nil
}

func (l *Ledger) CountByPhone(ctx context.Context, phone string) (int, error) {
	txs, err := l.TransactionsByPhone(ctx, "", phone)
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// Balance summarizes every stored transaction
func (l *Ledger) Balance(ctx context.Context) (models.Stats, error) {
	txs, err := l.store.ListTransactions(ctx, models.TransacaoFilter{})
	if err != nil {
		return models.Stats{}, fmt.Errorf("list transactions: %w", err)
	}
	return Summarize(txs), nil
}

var hundred = decimal.NewFromInt(100)

// Summarize totals expenses and income. The savings rate is the balance
// as a percentage of income, zero when there is no income.
func Summarize(txs []models.Transacao) models.Stats {
	var despesas, receitas decimal.Decimal
	for _, t := range txs {
		switch t.Tipo {
		case models.TipoDespesa:
			despesas = despesas.Add(t.Valor)
		case models.TipoReceita:
			receitas = receitas.Add(t.Valor)
		}
	}

	saldo := receitas.Sub(despesas)
	taxa := decimal.Zero
	if receitas.IsPositive() {
		taxa = saldo.Div(receitas).Mul(hundred).Round(2)
	}

	return models.Stats{
		TotalDespesas: despesas,
		TotalReceitas: receitas,
		SaldoRestante: saldo,
		TaxaEconomia:  taxa,
	}
}

// Total sums the values of txs
func Total(txs []models.Transacao) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Valor)
	}
	return total
}

func sortNewestFirst(txs []models.Transacao) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Quando.Equal(txs[j].Quando) {
			return txs[i].Quando.After(txs[j].Quando)
		}
		return txs[i].ID > txs[j].ID
	})
}
