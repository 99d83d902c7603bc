/**
 * @description
 * This package owns all money math for the onboarding flow: converting base
 * USD prices into the visitor's local currency for display, and holding the
 * authoritative price catalog used when a charge is actually created.
 *
 * Localization is a pure function. It never fails: a country we do not have
 * a rate for simply resolves to USD with the amount unchanged.
 *
 * @dependencies
 * - golang.org/x/text: locale-aware number formatting for display strings.
 */

package pricing

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// LocalizedPrice is the result of resolving a base USD amount against a
// country's currency. AmountMinor is in the target currency's minor unit.
type LocalizedPrice struct {
	AmountMinor int64
	Currency    string
	Symbol      string
	Formatted   string
}

// countryCurrency describes the currency used for one supported country.
// Rate is units of the local currency per one US dollar.
type countryCurrency struct {
	Currency string
	Symbol   string
	Rate     float64
}

// Display rates are intentionally static. They exist so a visitor sees a
// familiar currency, not to drive settlement; providers charge in their own
// settlement currency at checkout time.
var countryCurrencies = map[string]countryCurrency{
	"US": {Currency: "USD", Symbol: "$", Rate: 1},
	"NG": {Currency: "NGN", Symbol: "₦", Rate: 1500},
	"GB": {Currency: "GBP", Symbol: "£", Rate: 0.79},
	"CA": {Currency: "CAD", Symbol: "CA$", Rate: 1.36},
	"AU": {Currency: "AUD", Symbol: "A$", Rate: 1.52},
	"IN": {Currency: "INR", Symbol: "₹", Rate: 83},
	"KE": {Currency: "KES", Symbol: "KSh", Rate: 129},
	"GH": {Currency: "GHS", Symbol: "GH₵", Rate: 15.5},
	"ZA": {Currency: "ZAR", Symbol: "R", Rate: 18},
	"DE": {Currency: "EUR", Symbol: "€", Rate: 0.92},
	"FR": {Currency: "EUR", Symbol: "€", Rate: 0.92},
	"ES": {Currency: "EUR", Symbol: "€", Rate: 0.92},
	"IT": {Currency: "EUR", Symbol: "€", Rate: 0.92},
	"NL": {Currency: "EUR", Symbol: "€", Rate: 0.92},
}

var usd = countryCurrency{Currency: "USD", Symbol: "$", Rate: 1}

var printer = message.NewPrinter(language.English)

// Localize converts a base USD amount (in cents) to the currency of the given
// ISO 3166-1 alpha-2 country code. Unknown or blank codes fall back to USD
// identity. Deterministic for identical inputs; never returns an error.
func Localize(baseUSDCents int64, countryCode string) LocalizedPrice {
	cc := resolveCountry(countryCode)

	// Rounding policy: round half up to the minor unit, applied exactly once.
	minor := int64(math.Floor(float64(baseUSDCents)*cc.Rate + 0.5))

	return LocalizedPrice{
		AmountMinor: minor,
		Currency:    cc.Currency,
		Symbol:      cc.Symbol,
		Formatted:   formatMinor(cc.Symbol, minor),
	}
}

// RateFor returns the display rate for a currency used by a supported
// country, or 1 if the currency is unknown.
func RateFor(currencyCode string) float64 {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	for _, cc := range countryCurrencies {
		if cc.Currency == code {
			return cc.Rate
		}
	}
	return 1
}

func resolveCountry(countryCode string) countryCurrency {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return usd
	}
	if cc, ok := countryCurrencies[code]; ok {
		return cc
	}
	return usd
}

func formatMinor(symbol string, minor int64) string {
	return printer.Sprintf("%s%v", symbol, number.Decimal(float64(minor)/100, number.Scale(2)))
}
