// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dashfin/internal/database"
	"dashfin/internal/models"
)

// NewDB opens a migrated sqlite database in a temp dir. The seeded cards
// and accounts are present; every other table is empty.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "dashfin.db"), "")
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(), "migrate test database")
	return db
}

// CreateUser inserts a user with a ready-made password hash
func CreateUser(t *testing.T, db *database.DB, telefone, nome, email, senha string) models.Usuario {
	t.Helper()

	u, err := db.CreateUser(context.Background(), models.Usuario{
		Telefone:   telefone,
		Nome:       nome,
		Email:      email,
		Senha:      senha,
		MetaMensal: decimal.NewFromInt(3000),
	})
	require.NoError(t, err, "create user %s", telefone)
	return u
}

// CreateTransaction inserts a transaction of the given kind
func CreateTransaction(t *testing.T, db *database.DB, tipo, user, phone, valor string, quando time.Time) models.Transacao {
	t.Helper()

	tx, err := db.CreateTransaction(context.Background(), models.Transacao{
		Quando:          quando,
		User:            user,
		UserPhone:       phone,
		Estabelecimento: "Teste",
		Valor:           decimal.RequireFromString(valor),
		Tipo:            tipo,
		Categoria:       "Outros",
	})
	require.NoError(t, err, "create transaction")
	return tx
}
