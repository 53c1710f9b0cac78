package identify

import (
	"github.com/shopspring/decimal"

	"dashfin/internal/models"
)

// DefaultCatalog is the built-in catalog, identical to the rows seeded by
// the cards/accounts migration. It backs the classify command, which runs
// without a database.
func DefaultCatalog() Catalog {
	nubankLimit := decimal.NewFromInt(5000)
	itauLimit := decimal.NewFromInt(8000)

	return Catalog{
		Cards: []models.Card{
			{
				ID: "1", Name: "Nubank", Type: "credit", Bank: "Nubank", LastFourDigits: "1234",
				Limit: &nubankLimit, CurrentBalance: decimal.RequireFromString("1890.45"), DueDate: "2025-02-15",
				Status: "active", Color: "bg-purple-500", Icon: "💳",
				Patterns: []string{"nubank", "nu bank", "roxinho"}, Position: 1,
			},
			{
				ID: "2", Name: "Itaú Personalité", Type: "credit", Bank: "Itaú", LastFourDigits: "5678",
				Limit: &itauLimit, CurrentBalance: decimal.RequireFromString("2340.20"), DueDate: "2025-02-20",
				Status: "active", Color: "bg-orange-500", Icon: "🏦",
				Patterns: []string{"itau", "itaú", "personalite", "personalité"}, Position: 2,
			},
			{
				ID: "3", Name: "Santander", Type: "debit", Bank: "Santander", LastFourDigits: "9012",
				CurrentBalance: decimal.RequireFromString("1250.80"),
				Status:         "active", Color: "bg-red-500", Icon: "💳",
				Patterns: []string{"santander", "santander bank"}, Position: 3,
			},
		},
		Accounts: []models.Account{
			{
				ID: "1", Name: "Conta Corrente Principal", Type: "checking", Bank: "Nubank",
				AccountNumber: "0001-2345-6789", Balance: decimal.RequireFromString("3450.75"),
				Status: "active", Color: "bg-purple-500", Icon: "🏦",
				Patterns: []string{"nubank conta", "nu conta corrente"}, Position: 1,
			},
			{
				ID: "2", Name: "Conta Poupança", Type: "savings", Bank: "Itaú",
				AccountNumber: "0001-9876-5432", Balance: decimal.RequireFromString("12500.00"),
				Status: "active", Color: "bg-green-500", Icon: "💰",
				Patterns: []string{"itau poupanca", "itaú poupança", "poupanca itau"}, Position: 2,
			},
			{
				ID: "3", Name: "Investimentos", Type: "investment", Bank: "XP Investimentos",
				AccountNumber: "INV-001-2024", Balance: decimal.RequireFromString("25000.00"),
				Status: "active", Color: "bg-blue-500", Icon: "📈",
				Patterns: []string{}, Position: 3,
			},
		},
		Defaults: Defaults{
			HighAmountCardID: "1",
			LowAmountCardID:  "3",
			CategoryCardIDs:  DefaultCategoryCards(),
		},
	}
}
