package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	pg := &DB{dialect: DialectPostgres}
	sqlite := &DB{dialect: DialectSQLite}

	query := `UPDATE usuarios SET senha = ? WHERE telefone = ? AND status = 'ativo'`

	assert.Equal(t, `UPDATE usuarios SET senha = $1 WHERE telefone = $2 AND status = 'ativo'`, pg.rebind(query))
	assert.Equal(t, query, sqlite.rebind(query))
}
