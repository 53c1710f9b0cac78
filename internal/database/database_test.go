package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashfin/internal/database"
	"dashfin/internal/models"
	"dashfin/internal/testutil"
)

func TestOpenUnsupportedURL(t *testing.T) {
	_, err := database.Open("mysql://localhost/dashfin", "")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db := testutil.NewDB(t)

	assert.Equal(t, database.DialectSQLite, db.Dialect())
	require.NoError(t, db.Migrate(), "second run is a no-op")

	version, dirty, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestSeededCatalog(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	cards, err := db.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{cards[0].ID, cards[1].ID, cards[2].ID})
	assert.Equal(t, "Nubank", cards[0].Name)
	assert.Equal(t, []string{"nubank", "nu bank", "roxinho"}, cards[0].Patterns)
	require.NotNil(t, cards[0].Limit)
	assert.True(t, decimal.NewFromInt(5000).Equal(*cards[0].Limit))
	assert.Nil(t, cards[2].Limit, "debit card has no limit")

	accounts, err := db.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "Conta Corrente Principal", accounts[0].Name)
	assert.Empty(t, accounts[2].Patterns)
	assert.NotNil(t, accounts[2].Patterns)
}

func TestCardCRUD(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	limit := decimal.NewFromInt(1500)
	card, err := db.CreateCard(ctx, models.Card{Name: "Inter", Type: "credit", Bank: "Inter", Limit: &limit, Patterns: []string{"inter"}})
	require.NoError(t, err)
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, "active", card.Status)
	assert.Equal(t, 4, card.Position)

	cards, err := db.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 4)
	assert.Equal(t, card.ID, cards[3].ID, "new cards go last")

	card.Name = "Banco Inter"
	card.Limit = nil
	require.NoError(t, db.UpdateCard(ctx, card))

	got, err := db.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "Banco Inter", got.Name)
	assert.Nil(t, got.Limit)

	require.NoError(t, db.DeleteCard(ctx, card.ID))
	_, err = db.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, db.DeleteCard(ctx, card.ID), database.ErrNotFound)
}

func TestAccountCRUD(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	account, err := db.CreateAccount(ctx, models.Account{Name: "Caixa", Type: "savings", Bank: "Caixa", Balance: decimal.RequireFromString("10.50")})
	require.NoError(t, err)
	assert.Equal(t, 4, account.Position)

	account.Patterns = []string{"caixa"}
	require.NoError(t, db.UpdateAccount(ctx, account))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"caixa"}, got.Patterns)
	assert.True(t, decimal.RequireFromString("10.50").Equal(got.Balance))

	assert.ErrorIs(t, db.UpdateAccount(ctx, models.Account{ID: "nope"}), database.ErrNotFound)
	require.NoError(t, db.DeleteAccount(ctx, account.ID))
}

func TestTransactions(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	older := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

	first := testutil.CreateTransaction(t, db, models.TipoDespesa, "Ana", "5511999990000", "45.90", older)
	second := testutil.CreateTransaction(t, db, models.TipoDespesa, "Ana", "", "10", newer)
	income := testutil.CreateTransaction(t, db, models.TipoReceita, "Beto", "5511888880000", "5000", newer)

	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	despesas, err := db.ListTransactions(ctx, models.TransacaoFilter{Tipo: models.TipoDespesa})
	require.NoError(t, err)
	require.Len(t, despesas, 2)
	assert.Equal(t, second.ID, despesas[0].ID, "newest first")
	assert.True(t, decimal.RequireFromString("45.90").Equal(despesas[1].Valor))
	assert.True(t, older.Equal(despesas[1].Quando))

	byPhone, err := db.ListTransactions(ctx, models.TransacaoFilter{UserPhone: "5511888880000"})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, income.ID, byPhone[0].ID)

	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	recent, err := db.ListTransactions(ctx, models.TransacaoFilter{Start: &start})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	n, err := db.CountTransactions(ctx, models.TransacaoFilter{User: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users, err := db.DistinctTransactionUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Beto"}, users)

	first.Categoria = "Alimentação"
	require.NoError(t, db.UpdateTransaction(ctx, first))
	got, err := db.GetTransaction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alimentação", got.Categoria)

	require.NoError(t, db.DeleteTransaction(ctx, first.ID))
	_, err = db.GetTransaction(ctx, first.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, db.DeleteTransaction(ctx, first.ID), database.ErrNotFound)
}

func TestCreateTransactionRejectsUnknownTipo(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := db.CreateTransaction(context.Background(), models.Transacao{Tipo: "transferencia", Valor: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "hash")
	assert.Equal(t, models.StatusAtivo, u.Status)

	_, err := db.CreateUser(ctx, models.Usuario{Telefone: "5511999990000", Nome: "Outra", Email: "outra@example.com", Senha: "x"})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	_, err = db.CreateUser(ctx, models.Usuario{Telefone: "5511777770000", Nome: "Outra", Email: "ana@example.com", Senha: "x"})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	got, err := db.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Nome)
	assert.True(t, decimal.NewFromInt(3000).Equal(got.MetaMensal))

	require.NoError(t, db.SetUserPassword(ctx, u.Telefone, "newhash"))
	got, err = db.GetUserByPhone(ctx, u.Telefone)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.Senha)

	got.Nome = "Ana Maria"
	require.NoError(t, db.UpdateUser(ctx, got))

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana Maria", users[0].Nome)

	require.NoError(t, db.DeleteUser(ctx, u.Telefone))
	_, err = db.GetUserByPhone(ctx, u.Telefone)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSessions(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "hash")

	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(ctx, "live", "5511999990000", now.Add(time.Hour)))
	require.NoError(t, db.CreateSession(ctx, "stale", "5511999990000", now.Add(-time.Hour)))

	telefone, expiresAt, err := db.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", telefone)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	removed, err := db.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, _, err = db.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.NoError(t, db.DeleteUser(ctx, "5511999990000"))
	_, _, err = db.GetSession(ctx, "live")
	assert.ErrorIs(t, err, database.ErrNotFound, "sessions cascade with their user")
}

func TestJobs(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	id, err := db.CreateJob(ctx, "rehash_passwords", map[string]string{"reason": "test"})
	require.NoError(t, err)

	job, err := db.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "running", job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.JSONEq(t, `{"reason":"test"}`, job.Payload)

	none, err := db.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "running jobs are not claimed twice")

	require.NoError(t, db.UpdateJobProgress(ctx, id, 50))
	require.NoError(t, db.RetryJob(ctx, id))
	job, err = db.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)

	require.NoError(t, db.CompleteJob(ctx, id, `{"ok":true}`))
	job, err = db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)

	_, err = db.GetJob(ctx, id+100)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
