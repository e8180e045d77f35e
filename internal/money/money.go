package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Dollars renders a whole-dollar amount with thousands grouping, e.g. $297,500.
func Dollars(v float64) string {
	return printer.Sprintf("$%d", int64(math.Round(v)))
}

// DollarsCents renders an amount with cents, e.g. $213.55.
func DollarsCents(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// Int renders an integer with thousands grouping, e.g. 1,850.
func Int(v int) string {
	return printer.Sprintf("%d", v)
}
