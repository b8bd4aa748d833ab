package domain

import (
	"regexp"
	"strings"
)

type CurrencyCode string

const (
	// LocalCurrency is the currency every stored rate is quoted in.
	LocalCurrency CurrencyCode = "yer"
	// ReserveCurrency is the base of the secondary feed's cross rates.
	ReserveCurrency CurrencyCode = "usd"
)

// TrackedCurrency describes a currency seeded at startup and refreshed by auto-updates.
type TrackedCurrency struct {
	Code     CurrencyCode
	Name     string
	SeedRate float64
	// FeedKey is the field holding the buy rate in the primary feed payload.
	FeedKey string
}

var TrackedCurrencies = []TrackedCurrency{
	{Code: "usd", Name: "دولار أمريكي", SeedRate: 530, FeedKey: "usd_buy"},
	{Code: "eur", Name: "يورو", SeedRate: 580, FeedKey: "eur_buy"},
	{Code: "sar", Name: "ريال سعودي", SeedRate: 141, FeedKey: "sar_buy"},
	{Code: "aed", Name: "درهم إماراتي", SeedRate: 144, FeedKey: "aed_buy"},
	{Code: "gbp", Name: "جنيه إسترليني", SeedRate: 670, FeedKey: "gbp_buy"},
	{Code: "kwd", Name: "دينار كويتي", SeedRate: 1720, FeedKey: "kwd_buy"},
	{Code: "qar", Name: "ريال قطري", SeedRate: 145, FeedKey: "qar_buy"},
	{Code: "omr", Name: "ريال عماني", SeedRate: 1375, FeedKey: "omr_buy"},
	{Code: "bhd", Name: "دينار بحريني", SeedRate: 1405, FeedKey: "bhd_buy"},
}

var codeRe = regexp.MustCompile(`^[a-z]{3}$`)

// NormalizeCode lowercases and trims a currency code; lookups are case-insensitive.
func NormalizeCode(s string) CurrencyCode {
	return CurrencyCode(strings.ToLower(strings.TrimSpace(s)))
}

func ValidateCode(c CurrencyCode) bool {
	return codeRe.MatchString(string(c))
}

func (c CurrencyCode) Upper() string { return strings.ToUpper(string(c)) }

func LookupTracked(c CurrencyCode) (TrackedCurrency, bool) {
	for _, t := range TrackedCurrencies {
		if t.Code == c {
			return t, true
		}
	}
	return TrackedCurrency{}, false
}

func TrackedCodes() []CurrencyCode {
	out := make([]CurrencyCode, 0, len(TrackedCurrencies))
	for _, t := range TrackedCurrencies {
		out = append(out, t.Code)
	}
	return out
}

// SeedRates returns the initial current-rate rows for every tracked currency.
func SeedRates() []CurrentRate {
	out := make([]CurrentRate, 0, len(TrackedCurrencies))
	for _, t := range TrackedCurrencies {
		out = append(out, CurrentRate{Code: t.Code, Name: t.Name, Rate: t.SeedRate})
	}
	return out
}
