package domain

import "github.com/shopspring/decimal"

// MoneyScale — количество знаков после запятой для цен и сумм (NUMERIC(10,2)).
const MoneyScale = 2

// RoundMoney приводит значение к денежной точности.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyScale)
}

// LineTotal считает сумму позиции: round(price * qty, 2).
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return RoundMoney(price.Mul(decimal.NewFromInt(int64(qty))))
}

// SumTotals агрегирует суммы позиций заказа. Пустой набор даёт 0.
func SumTotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return RoundMoney(total)
}
