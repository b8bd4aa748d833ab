package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/httpx"
)

const yemenExchangeRatesPath = "/api/v1/rates"

// YemenExchange is the primary source: it quotes local-currency buy rates directly.
type YemenExchange struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateSource = (*YemenExchange)(nil)

type yemenRatesResp struct {
	Data map[string]feedNumber `json:"data"`
}

func (p *YemenExchange) Name() string { return "Yemen Exchange API" }

func (p *YemenExchange) FetchRates(ctx context.Context, codes []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	if p.BaseURL == "" {
		return nil, errors.New("yemenexchange: missing configuration")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("yemenexchange: invalid base url: %w", err)
	}
	u = u.JoinPath(yemenExchangeRatesPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("yemenexchange: create request: %w", err)
	}
	var body yemenRatesResp
	if err := client(p.Client).DoJSON(ctx, req, &body); err != nil {
		return nil, fmt.Errorf("yemenexchange: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, errors.New("yemenexchange: response has no data")
	}

	out := make(map[domain.CurrencyCode]float64, len(codes))
	for _, c := range codes {
		v, ok := body.Data[feedKey(c)]
		if !ok || !domain.ValidRate(float64(v)) {
			continue
		}
		out[c] = float64(v)
	}
	if len(out) == 0 {
		return nil, errors.New("yemenexchange: no tracked currency in response")
	}
	return out, nil
}

func feedKey(c domain.CurrencyCode) string {
	if tc, ok := domain.LookupTracked(c); ok {
		return tc.FeedKey
	}
	return string(c) + "_buy"
}

func client(c *httpx.Client) *httpx.Client {
	if c == nil {
		return &httpx.Client{}
	}
	return c
}
