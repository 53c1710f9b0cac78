package classifier

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashfin/internal/identify"
	"dashfin/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		amount     string
		category   string
		confidence float64
		isIncome   bool
	}{
		{
			name:       "restaurant expense with comma decimal",
			content:    "Gastei 45,90 no restaurante hoje",
			amount:     "45.90",
			category:   "Alimentação",
			confidence: 0.9,
		},
		{
			name:       "salary with currency and thousands",
			content:    "Recebi meu salário de R$ 5.000,00",
			amount:     "5000",
			category:   "Salário",
			confidence: 0.9,
			isIncome:   true,
		},
		{
			name:       "salary shadows freelance",
			content:    "salário e freelance 3000",
			amount:     "3000",
			category:   "Salário",
			confidence: 0.9,
			isIncome:   true,
		},
		{
			name:       "bonus",
			content:    "Ganhei 200 de bonus",
			amount:     "200",
			category:   "Bônus",
			confidence: 0.9,
			isIncome:   true,
		},
		{
			name:       "investment yield",
			content:    "Rendimento do investimento 150,25",
			amount:     "150.25",
			category:   "Investimentos",
			confidence: 0.9,
			isIncome:   true,
		},
		{
			name:       "transport",
			content:    "Uber para o trabalho 23,50",
			amount:     "23.50",
			category:   "Transporte",
			confidence: 0.9,
		},
		{
			name:       "supermarket is Casa",
			content:    "Supermercado 320,10",
			amount:     "320.10",
			category:   "Casa",
			confidence: 0.9,
		},
		{
			name:       "pharmacy with accent",
			content:    "Farmácia 12",
			amount:     "12",
			category:   "Saúde",
			confidence: 0.9,
		},
		{
			name:       "amount without category",
			content:    "comprei algo por 30",
			amount:     "30",
			category:   "Outros",
			confidence: 0.8,
		},
		{
			name:       "category without amount",
			content:    "jantar no restaurante",
			amount:     "0",
			category:   "Alimentação",
			confidence: 0.8,
		},
		{
			name:       "neither",
			content:    "Paguei a conta",
			amount:     "0",
			category:   "Outros",
			confidence: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.content, OriginText, nil)

			assert.True(t, decimal.RequireFromString(tt.amount).Equal(result.Amount),
				"amount: want %s, got %s", tt.amount, result.Amount)
			assert.Equal(t, tt.category, result.Category)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-9)
			assert.Equal(t, tt.isIncome, result.IsIncome)
			assert.Equal(t, tt.content, result.Description)
			assert.Equal(t, "ai_text", result.ExtractedBy)
		})
	}
}

func TestClassifyIncomeKeywords(t *testing.T) {
	for _, keyword := range []string{"salário", "recebi", "ganhei", "bonus", "bônus", "freelance", "investimento", "rendimento"} {
		t.Run(keyword, func(t *testing.T) {
			result := Classify("hoje "+strings.ToUpper(keyword)+" 100", OriginText, nil)
			assert.True(t, result.IsIncome)
			assert.Equal(t, models.TipoReceita, result.Tipo())
		})
	}

	result := Classify("almoço 35", OriginText, nil)
	assert.False(t, result.IsIncome)
	assert.Equal(t, models.TipoDespesa, result.Tipo())
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"R$ 1.234,56", "1234.56"},
		{"R$1.500", "1500"},
		{"45,90", "45.90"},
		{"45.90", "45.90"},
		{"paguei 1234,5 ontem", "1234.5"},
		{"10.000.000,99 de entrada", "10000000.99"},
		{"sem valor nenhum", "0"},
		{"", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractAmount(tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestClassifyOriginAndDescription(t *testing.T) {
	long := strings.Repeat("ç", 120)

	result := Classify(long, OriginPhoto, nil)
	assert.Equal(t, 100, len([]rune(result.Description)))
	assert.Equal(t, "ai_photo", result.ExtractedBy)
	assert.Equal(t, "whatsapp_photo", OriginPhoto.Source())
	assert.Equal(t, "whatsapp_audio", OriginAudio.Source())
	assert.Equal(t, "whatsapp_text", OriginText.Source())
}

func TestNeedsReview(t *testing.T) {
	assert.False(t, Result{Confidence: 0.9}.NeedsReview())
	assert.False(t, Result{Confidence: 0.8}.NeedsReview())
	assert.True(t, Result{Confidence: 0.7}.NeedsReview())
}

func TestClassifyCardIdentification(t *testing.T) {
	catalog := identify.DefaultCatalog()

	t.Run("expense by pattern", func(t *testing.T) {
		result := Classify("jantar 80 no cartão nubank", OriginText, catalog)
		require.NotNil(t, result.CardIdentification)
		assert.Equal(t, identify.MethodPatternMatch, result.CardIdentification.Method)
		assert.Equal(t, "Nubank", result.CardIdentification.Name())
	})

	t.Run("expense by amount", func(t *testing.T) {
		result := Classify("Gastei 45,90 no restaurante hoje", OriginText, catalog)
		require.NotNil(t, result.CardIdentification)
		assert.Equal(t, identify.MethodAmountBased, result.CardIdentification.Method)
		assert.Equal(t, "Santander", result.CardIdentification.Name())
	})

	t.Run("income is never identified", func(t *testing.T) {
		result := Classify("recebi 50 no nubank", OriginText, catalog)
		assert.Nil(t, result.CardIdentification)
	})

	t.Run("zero amount is never identified", func(t *testing.T) {
		result := Classify("jantar no nubank", OriginText, catalog)
		assert.Nil(t, result.CardIdentification)
	})
}
