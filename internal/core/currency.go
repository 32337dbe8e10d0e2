package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is one entry of the currency picker.
type Currency struct {
	Code   string
	Symbol string
}

// Currencies lists the codes offered in the subscription form.
var Currencies = []Currency{
	{Code: "USD", Symbol: "$"},
	{Code: "EUR", Symbol: "€"},
	{Code: "INR", Symbol: "₹"},
	{Code: "GBP", Symbol: "£"},
	{Code: "AUD", Symbol: "A$"},
	{Code: "CAD", Symbol: "C$"},
	{Code: "SGD", Symbol: "S$"},
	{Code: "AED", Symbol: "د.إ"},
	{Code: "JPY", Symbol: "¥"},
	{Code: "PKR", Symbol: "₨"},
}

var printer = message.NewPrinter(language.English)

// CurrencySymbol returns the picker symbol for code. Other valid ISO codes
// fall back to the x/text narrow symbol, anything else to the code itself.
func CurrencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Currencies {
		if c.Code == code {
			return c.Symbol
		}
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code
	}
	return printer.Sprint(currency.NarrowSymbol(unit))
}

// FormatAmount renders a plain amount with grouping and at most two
// fraction digits ("1,234.5").
func FormatAmount(amount decimal.Decimal) string {
	f := amount.Round(2).InexactFloat64()
	return printer.Sprint(number.Decimal(f, number.MinFractionDigits(0), number.MaxFractionDigits(2)))
}

// FormatMoney prefixes the formatted amount with the currency symbol.
func FormatMoney(amount decimal.Decimal, code string) string {
	sym := CurrencySymbol(code)
	if amount.IsNegative() {
		return "-" + sym + FormatAmount(amount.Neg())
	}
	return sym + FormatAmount(amount)
}

// FormatPrice is FormatMoney for a stored float price.
func FormatPrice(price float64, code string) string {
	return FormatMoney(decimal.NewFromFloat(SanitizeAmount(price)), code)
}
