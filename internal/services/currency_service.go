package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyService formats monetary amounts for display, emails and
// generated documents. Amounts are stored as plain floats and rounded
// to two decimal places at the formatting boundary.
type CurrencyService struct {
	defaultCurrency string
}

func NewCurrencyService(defaultCurrency string) *CurrencyService {
	if defaultCurrency == "" {
		defaultCurrency = "ZMW"
	}
	return &CurrencyService{defaultCurrency: defaultCurrency}
}

// FormatMoney renders an amount as "ZMW 1,234.56". An empty currency
// falls back to the configured default.
func (s *CurrencyService) FormatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = s.defaultCurrency
	}
	return fmt.Sprintf("%s %s", currency, formatAmount(amount))
}

// FormatAmount renders just the grouped number, without a currency code.
func (s *CurrencyService) FormatAmount(amount float64) string {
	return formatAmount(amount)
}

func formatAmount(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)

	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	grouped := groupThousands(parts[0])

	out := grouped + "." + parts[1]
	if negative {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}

	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(digits[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
