package invoice

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// maxFractionDigits matches the id-ID locale default for plain numbers.
const maxFractionDigits = 3

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatNumber formats v with id-ID grouping, e.g. 1234567.5 -> "1.234.567,5".
func FormatNumber(v float64) string {
	return idPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(maxFractionDigits)))
}

// FormatRupiah formats v as an amount in rupiah, e.g. "Rp 25.000".
func FormatRupiah(v float64) string {
	return "Rp " + FormatNumber(v)
}

// FormatPercent formats a tax rate without trailing zeros, e.g. 11 -> "11".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
