package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dashfin/internal/models"
)

const transacaoColumns = `id, created_at, quando, "user", user_phone, estabelecimento, valor, detalhes, tipo, categoria`

func scanTransacao(row interface{ Scan(...any) error }) (models.Transacao, error) {
	var t models.Transacao
	err := row.Scan(&t.ID, &t.CreatedAt, &t.Quando, &t.User, &t.UserPhone, &t.Estabelecimento,
		&t.Valor, &t.Detalhes, &t.Tipo, &t.Categoria)
	return t, err
}

// ListTransactions returns matching rows, newest first
func (db *DB) ListTransactions(ctx context.Context, filter models.TransacaoFilter) ([]models.Transacao, error) {
	query := `SELECT ` + transacaoColumns + ` FROM transacoes WHERE 1=1`
	var args []any

	if filter.Tipo != "" {
		query += " AND tipo = ?"
		args = append(args, filter.Tipo)
	}
	if filter.User != "" {
		query += ` AND "user" = ?`
		args = append(args, filter.User)
	}
	if filter.UserPhone != "" {
		query += " AND user_phone = ?"
		args = append(args, filter.UserPhone)
	}
	if filter.Start != nil {
		query += " AND quando >= ?"
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		query += " AND quando <= ?"
		args = append(args, filter.End.UTC())
	}

	query += " ORDER BY quando DESC, id DESC"

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transacoes: %w", err)
	}
	defer rows.Close()

	transacoes := []models.Transacao{}
	for rows.Next() {
		t, err := scanTransacao(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transacao: %w", err)
		}
		transacoes = append(transacoes, t)
	}
	return transacoes, rows.Err()
}

// CountTransactions counts rows matching the filter
func (db *DB) CountTransactions(ctx context.Context, filter models.TransacaoFilter) (int, error) {
	query := `SELECT COUNT(*) FROM transacoes WHERE 1=1`
	var args []any
	if filter.Tipo != "" {
		query += " AND tipo = ?"
		args = append(args, filter.Tipo)
	}
	if filter.User != "" {
		query += ` AND "user" = ?`
		args = append(args, filter.User)
	}
	if filter.UserPhone != "" {
		query += " AND user_phone = ?"
		args = append(args, filter.UserPhone)
	}

	var n int
	if err := db.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transacoes: %w", err)
	}
	return n, nil
}

// DistinctTransactionUsers lists every display name that owns at least one row
func (db *DB) DistinctTransactionUsers(ctx context.Context) ([]string, error) {
	rows, err := db.query(ctx, `SELECT DISTINCT "user" FROM transacoes ORDER BY "user"`)
	if err != nil {
		return nil, fmt.Errorf("query transaction users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan transaction user: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (db *DB) GetTransaction(ctx context.Context, id int64) (models.Transacao, error) {
	t, err := scanTransacao(db.queryRow(ctx, `SELECT `+transacaoColumns+` FROM transacoes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("transacao %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("query transacao: %w", err)
	}
	return t, nil
}

// CreateTransaction inserts t and returns it with ID and CreatedAt set
func (db *DB) CreateTransaction(ctx context.Context, t models.Transacao) (models.Transacao, error) {
	if !models.ValidTipo(t.Tipo) {
		return t, fmt.Errorf("insert transacao: invalid tipo %q", t.Tipo)
	}
	t.CreatedAt = time.Now().UTC()
	if t.Quando.IsZero() {
		t.Quando = t.CreatedAt
	}
	t.Quando = t.Quando.UTC()

	err := db.queryRow(ctx, `
		INSERT INTO transacoes (created_at, quando, "user", user_phone, estabelecimento, valor, detalhes, tipo, categoria)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, t.CreatedAt, t.Quando, t.User, t.UserPhone, t.Estabelecimento, t.Valor, t.Detalhes, t.Tipo, t.Categoria).Scan(&t.ID)
	if err != nil {
		return t, fmt.Errorf("insert transacao: %w", err)
	}
	return t, nil
}

// UpdateTransaction overwrites every editable column of the row with t.ID
func (db *DB) UpdateTransaction(ctx context.Context, t models.Transacao) error {
	if !models.ValidTipo(t.Tipo) {
		return fmt.Errorf("update transacao: invalid tipo %q", t.Tipo)
	}
	result, err := db.exec(ctx, `
		UPDATE transacoes
		SET quando = ?, "user" = ?, user_phone = ?, estabelecimento = ?, valor = ?, detalhes = ?, tipo = ?, categoria = ?
		WHERE id = ?
	`, t.Quando.UTC(), t.User, t.UserPhone, t.Estabelecimento, t.Valor, t.Detalhes, t.Tipo, t.Categoria, t.ID)
	if err != nil {
		return fmt.Errorf("update transacao: %w", err)
	}
	return expectOneRow(result, fmt.Sprintf("transacao %d", t.ID))
}

func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := db.exec(ctx, `DELETE FROM transacoes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transacao: %w", err)
	}
	return expectOneRow(result, fmt.Sprintf("transacao %d", id))
}

// expectOneRow turns a zero-row write into ErrNotFound
func expectOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
