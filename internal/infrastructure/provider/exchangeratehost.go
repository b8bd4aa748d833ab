package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/httpx"
)

const exchangeRateHostLatestPath = "/latest"

// ExchangeRateHost is the secondary source. It quotes cross rates against the reserve
// currency, so every rate is converted into local-currency units.
type ExchangeRateHost struct {
	BaseURL string
	APIKey  string
	Client  *httpx.Client
}

var _ application.RateSource = (*ExchangeRateHost)(nil)

// xrhLatestResp covers both the "rates" form and the pair-keyed "quotes" form ("USDEUR")
// returned by newer API versions.
type xrhLatestResp struct {
	Success *bool                 `json:"success"`
	Base    string                `json:"base"`
	Source  string                `json:"source"`
	Rates   map[string]feedNumber `json:"rates"`
	Quotes  map[string]feedNumber `json:"quotes"`
	Error   *xrhError             `json:"error,omitempty"`
}

type xrhError struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

func (p *ExchangeRateHost) Name() string { return "Exchange Rate API" }

func (p *ExchangeRateHost) FetchRates(ctx context.Context, codes []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	if p.BaseURL == "" {
		return nil, errors.New("exchangeratehost: missing configuration")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("exchangeratehost: invalid base url: %w", err)
	}
	u = u.JoinPath(exchangeRateHostLatestPath)
	q := u.Query()
	q.Set("base", domain.ReserveCurrency.Upper())
	if p.APIKey != "" {
		q.Set("access_key", p.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("exchangeratehost: create request: %w", err)
	}
	var body xrhLatestResp
	if err := client(p.Client).DoJSON(ctx, req, &body); err != nil {
		return nil, fmt.Errorf("exchangeratehost: %w", err)
	}
	if body.Success != nil && !*body.Success {
		if body.Error != nil {
			return nil, fmt.Errorf("exchangeratehost: %d %s", body.Error.Code, body.Error.Info)
		}
		return nil, errors.New("exchangeratehost: unsuccessful response")
	}

	rates := reserveRates(body)
	if len(rates) == 0 {
		return nil, errors.New("exchangeratehost: response has no rates")
	}
	rates[domain.ReserveCurrency.Upper()] = 1

	local := rates[domain.LocalCurrency.Upper()]
	if !domain.ValidRate(local) {
		return nil, fmt.Errorf("exchangeratehost: missing rate for %s", domain.LocalCurrency.Upper())
	}

	out := make(map[domain.CurrencyCode]float64, len(codes))
	for _, c := range codes {
		r := rates[c.Upper()]
		if !domain.ValidRate(r) {
			continue
		}
		out[c] = ToLocal(r, local)
	}
	return out, nil
}

// ToLocal converts a reserve-quoted rate into local-currency units per unit of the currency.
func ToLocal(reserveToCurrency, reserveToLocal float64) float64 {
	return (1 / reserveToCurrency) * reserveToLocal
}

func reserveRates(body xrhLatestResp) map[string]float64 {
	out := make(map[string]float64, len(body.Rates)+len(body.Quotes))
	for k, v := range body.Rates {
		out[strings.ToUpper(k)] = float64(v)
	}
	base := strings.ToUpper(body.Source)
	if base == "" {
		base = domain.ReserveCurrency.Upper()
	}
	for k, v := range body.Quotes {
		k = strings.ToUpper(k)
		if strings.HasPrefix(k, base) && len(k) == len(base)+3 {
			out[k[len(base):]] = float64(v)
		}
	}
	return out
}
