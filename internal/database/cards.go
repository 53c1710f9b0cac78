package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dashfin/internal/models"
)

const (
	cardColumns    = `id, name, type, bank, last_four_digits, card_limit, current_balance, due_date, status, color, icon, patterns, position`
	accountColumns = `id, name, type, bank, account_number, balance, status, color, icon, patterns, position`
)

func scanCard(row interface{ Scan(...any) error }) (models.Card, error) {
	var c models.Card
	var limit decimal.NullDecimal
	var patterns string
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Bank, &c.LastFourDigits, &limit, &c.CurrentBalance,
		&c.DueDate, &c.Status, &c.Color, &c.Icon, &patterns, &c.Position)
	if err != nil {
		return c, err
	}
	if limit.Valid {
		c.Limit = &limit.Decimal
	}
	c.Patterns, err = decodePatterns(patterns)
	return c, err
}

func scanAccount(row interface{ Scan(...any) error }) (models.Account, error) {
	var a models.Account
	var patterns string
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Bank, &a.AccountNumber, &a.Balance,
		&a.Status, &a.Color, &a.Icon, &patterns, &a.Position)
	if err != nil {
		return a, err
	}
	a.Patterns, err = decodePatterns(patterns)
	return a, err
}

func decodePatterns(s string) ([]string, error) {
	patterns := []string{}
	if s == "" {
		return patterns, nil
	}
	if err := json.Unmarshal([]byte(s), &patterns); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	return patterns, nil
}

func encodePatterns(patterns []string) string {
	if patterns == nil {
		patterns = []string{}
	}
	b, _ := json.Marshal(patterns)
	return string(b)
}

// ListCards returns cards in declaration order, which is also the
// identifier's pattern priority
func (db *DB) ListCards(ctx context.Context) ([]models.Card, error) {
	rows, err := db.query(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (db *DB) GetCard(ctx context.Context, id string) (models.Card, error) {
	c, err := scanCard(db.queryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("query card: %w", err)
	}
	return c, nil
}

// CreateCard assigns an id and appends the card after every existing one
func (db *DB) CreateCard(ctx context.Context, c models.Card) (models.Card, error) {
	c.ID = uuid.NewString()
	if c.Status == "" {
		c.Status = "active"
	}
	if c.Patterns == nil {
		c.Patterns = []string{}
	}
	if err := db.queryRow(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM cards`).Scan(&c.Position); err != nil {
		return c, fmt.Errorf("next card position: %w", err)
	}

	_, err := db.exec(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Type, c.Bank, c.LastFourDigits, nullDecimal(c.Limit), c.CurrentBalance,
		c.DueDate, c.Status, c.Color, c.Icon, encodePatterns(c.Patterns), c.Position)
	if err != nil {
		return c, fmt.Errorf("insert card: %w", err)
	}
	return c, nil
}

func (db *DB) UpdateCard(ctx context.Context, c models.Card) error {
	result, err := db.exec(ctx, `
		UPDATE cards
		SET name = ?, type = ?, bank = ?, last_four_digits = ?, card_limit = ?, current_balance = ?,
			due_date = ?, status = ?, color = ?, icon = ?, patterns = ?
		WHERE id = ?
	`, c.Name, c.Type, c.Bank, c.LastFourDigits, nullDecimal(c.Limit), c.CurrentBalance,
		c.DueDate, c.Status, c.Color, c.Icon, encodePatterns(c.Patterns), c.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return expectOneRow(result, "card "+c.ID)
}

func (db *DB) DeleteCard(ctx context.Context, id string) error {
	result, err := db.exec(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return expectOneRow(result, "card "+id)
}

func (db *DB) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := db.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (db *DB) GetAccount(ctx context.Context, id string) (models.Account, error) {
	a, err := scanAccount(db.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (db *DB) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	a.ID = uuid.NewString()
	if a.Status == "" {
		a.Status = "active"
	}
	if a.Patterns == nil {
		a.Patterns = []string{}
	}
	if err := db.queryRow(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM accounts`).Scan(&a.Position); err != nil {
		return a, fmt.Errorf("next account position: %w", err)
	}

	_, err := db.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Type, a.Bank, a.AccountNumber, a.Balance, a.Status, a.Color, a.Icon,
		encodePatterns(a.Patterns), a.Position)
	if err != nil {
		return a, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (db *DB) UpdateAccount(ctx context.Context, a models.Account) error {
	result, err := db.exec(ctx, `
		UPDATE accounts
		SET name = ?, type = ?, bank = ?, account_number = ?, balance = ?, status = ?, color = ?, icon = ?, patterns = ?
		WHERE id = ?
	`, a.Name, a.Type, a.Bank, a.AccountNumber, a.Balance, a.Status, a.Color, a.Icon,
		encodePatterns(a.Patterns), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return expectOneRow(result, "account "+a.ID)
}

func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	result, err := db.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOneRow(result, "account "+id)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
