package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashfin/internal/config"
)

func runClassifyArgs(t *testing.T, args ...string) string {
	t.Helper()

	cfg = config.Config{Identify: config.IdentifyConfig{HighAmountCard: "1", LowAmountCard: "3"}}

	var out bytes.Buffer
	cmd := classifyCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestClassifyText(t *testing.T) {
	out := runClassifyArgs(t, "Gastei", "45,90", "no", "restaurante", "hoje")

	assert.Contains(t, out, "Tipo:        despesa")
	assert.Contains(t, out, "Valor:       45.90")
	assert.Contains(t, out, "Categoria:   Alimentação")
	assert.Contains(t, out, "Origem:      whatsapp_text")
	assert.Contains(t, out, "Cartão:      Santander (amount_based, 0.6)")
	assert.NotContains(t, out, "Revisão")
}

func TestClassifyJSON(t *testing.T) {
	out := runClassifyArgs(t, "--type", "audio", "--json", "Recebi o salário de 3500")

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Salário", result["category"])
	assert.Equal(t, true, result["isIncome"])
	assert.Equal(t, "ai_audio", result["extractedBy"])
	assert.InDelta(t, 3500, result["amount"], 1e-9)
}

func TestClassifyRejectsUnknownType(t *testing.T) {
	cmd := classifyCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--type", "video", "45"})
	assert.Error(t, cmd.Execute())
}
