package budget

import (
	"sort"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the spending of one category within a budget.
type CategoryTotal struct {
	Category   string          `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Summary describes how much of a budget has been spent and where.
type Summary struct {
	BudgetID   int64           `json:"budget_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Categories []CategoryTotal `json:"categories"`
}

// Summarize totals the expenses loaded on b. Categories are ordered by total, largest first.
func Summarize(b *models.Budget) *Summary {
	byName := make(map[string]*CategoryTotal)
	spent := decimal.Zero

	for _, e := range b.Expenses {
		name := ""
		if e.Category != nil {
			name = e.Category.Name
		}
		ct, ok := byName[name]
		if !ok {
			ct = &CategoryTotal{Category: name, Total: decimal.Zero}
			byName[name] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
		spent = spent.Add(e.Amount)
	}

	categories := make([]CategoryTotal, 0, len(byName))
	for _, ct := range byName {
		if spent.IsPositive() {
			ct.Percentage = ct.Total.Div(spent).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		categories = append(categories, *ct)
	}
	sort.Slice(categories, func(i, j int) bool {
		if c := categories[i].Total.Cmp(categories[j].Total); c != 0 {
			return c > 0
		}
		return categories[i].Category < categories[j].Category
	})

	return &Summary{
		BudgetID:   b.ID,
		Title:      b.Title,
		Amount:     b.Amount,
		Spent:      spent,
		Remaining:  b.Amount.Sub(spent),
		Categories: categories,
	}
}
