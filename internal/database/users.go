package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dashfin/internal/models"
)

const usuarioColumns = `telefone, nome, email, senha, meta_mensal, data_cadastro, status`

func scanUsuario(row interface{ Scan(...any) error }) (models.Usuario, error) {
	var u models.Usuario
	err := row.Scan(&u.Telefone, &u.Nome, &u.Email, &u.Senha, &u.MetaMensal, &u.DataCadastro, &u.Status)
	return u, err
}

// ListUsers returns every user, most recently registered first
func (db *DB) ListUsers(ctx context.Context) ([]models.Usuario, error) {
	rows, err := db.query(ctx, `SELECT `+usuarioColumns+` FROM usuarios ORDER BY data_cadastro DESC`)
	if err != nil {
		return nil, fmt.Errorf("query usuarios: %w", err)
	}
	defer rows.Close()

	usuarios := []models.Usuario{}
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usuario: %w", err)
		}
		usuarios = append(usuarios, u)
	}
	return usuarios, rows.Err()
}

func (db *DB) GetUserByPhone(ctx context.Context, telefone string) (models.Usuario, error) {
	return db.getUser(ctx, "telefone", telefone)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (models.Usuario, error) {
	return db.getUser(ctx, "email", email)
}

func (db *DB) getUser(ctx context.Context, column, value string) (models.Usuario, error) {
	u, err := scanUsuario(db.queryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("usuario %s=%s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return u, fmt.Errorf("query usuario: %w", err)
	}
	return u, nil
}

// CreateUser inserts u. Senha must already be hashed.
func (db *DB) CreateUser(ctx context.Context, u models.Usuario) (models.Usuario, error) {
	if u.DataCadastro.IsZero() {
		u.DataCadastro = time.Now().UTC()
	}
	if u.Status == "" {
		u.Status = models.StatusAtivo
	}

	_, err := db.exec(ctx, `
		INSERT INTO usuarios (telefone, nome, email, senha, meta_mensal, data_cadastro, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Telefone, u.Nome, u.Email, u.Senha, u.MetaMensal, u.DataCadastro.UTC(), u.Status)
	if isUniqueViolation(err) {
		return u, fmt.Errorf("insert usuario: %w", ErrDuplicate)
	}
	if err != nil {
		return u, fmt.Errorf("insert usuario: %w", err)
	}
	return u, nil
}

// UpdateUser rewrites the profile columns of the row keyed by u.Telefone
func (db *DB) UpdateUser(ctx context.Context, u models.Usuario) error {
	result, err := db.exec(ctx, `
		UPDATE usuarios SET nome = ?, email = ?, senha = ?, meta_mensal = ?, status = ?
		WHERE telefone = ?
	`, u.Nome, u.Email, u.Senha, u.MetaMensal, u.Status, u.Telefone)
	if isUniqueViolation(err) {
		return fmt.Errorf("update usuario: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update usuario: %w", err)
	}
	return expectOneRow(result, "usuario "+u.Telefone)
}

// SetUserPassword stores a new password hash
func (db *DB) SetUserPassword(ctx context.Context, telefone, hash string) error {
	result, err := db.exec(ctx, `UPDATE usuarios SET senha = ? WHERE telefone = ?`, hash, telefone)
	if err != nil {
		return fmt.Errorf("update senha: %w", err)
	}
	return expectOneRow(result, "usuario "+telefone)
}

func (db *DB) DeleteUser(ctx context.Context, telefone string) error {
	result, err := db.exec(ctx, `DELETE FROM usuarios WHERE telefone = ?`, telefone)
	if err != nil {
		return fmt.Errorf("delete usuario: %w", err)
	}
	return expectOneRow(result, "usuario "+telefone)
}
