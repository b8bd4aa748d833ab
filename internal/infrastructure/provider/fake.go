package provider

import (
	"context"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
)

// Ensure Fake implements application.RateSource.
var _ application.RateSource = (*Fake)(nil)

// Fake returns fixed rates; used with PROVIDER=fake.
type Fake struct {
	rates map[domain.CurrencyCode]float64
}

func NewFake(rates map[domain.CurrencyCode]float64) *Fake {
	if rates == nil {
		rates = map[domain.CurrencyCode]float64{}
		for _, tc := range domain.TrackedCurrencies {
			rates[tc.Code] = tc.SeedRate
		}
	}
	return &Fake{rates: rates}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) FetchRates(_ context.Context, codes []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	out := make(map[domain.CurrencyCode]float64, len(codes))
	for _, c := range codes {
		if r, ok := f.rates[c]; ok {
			out[c] = r
		}
	}
	return out, nil
}
