package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrencyService_FormatMoney(t *testing.T) {
	svc := NewCurrencyService("ZMW")

	assert.Equal(t, "ZMW 1,234.56", svc.FormatMoney(1234.56, "ZMW"))
	assert.Equal(t, "ZMW 0.00", svc.FormatMoney(0, ""))
	assert.Equal(t, "ZMW 999.99", svc.FormatMoney(999.99, ""))
	assert.Equal(t, "ZMW 1,000.00", svc.FormatMoney(1000, ""))
	assert.Equal(t, "ZMW 2,500,000.00", svc.FormatMoney(2500000, ""))
	assert.Equal(t, "USD 15.50", svc.FormatMoney(15.5, "USD"))
	assert.Equal(t, "ZMW -1,234.50", svc.FormatMoney(-1234.5, ""))
}

func TestCurrencyService_FormatMoneyRounds(t *testing.T) {
	svc := NewCurrencyService("ZMW")

	assert.Equal(t, "ZMW 0.13", svc.FormatMoney(0.125001, ""))
	assert.Equal(t, "ZMW 219.99", svc.FormatMoney(219.994, ""))
}

func TestCurrencyService_DefaultFallback(t *testing.T) {
	svc := NewCurrencyService("")
	assert.Equal(t, "ZMW 10.00", svc.FormatMoney(10, ""))
}

func TestNumberToWords(t *testing.T) {
	assert.Equal(t, "ZERO KWACHA AND 00/100", NumberToWords(0))
	assert.Equal(t, "TWO HUNDRED TWENTY KWACHA AND 00/100", NumberToWords(220))
	assert.Equal(t, "ONE THOUSAND FIVE HUNDRED KWACHA AND 50/100", NumberToWords(1500.50))
	assert.Equal(t, "TWO MILLION FIVE HUNDRED THOUSAND KWACHA AND 00/100", NumberToWords(2500000))
	assert.Equal(t, "FORTY-TWO KWACHA AND 75/100", NumberToWords(42.75))
}
