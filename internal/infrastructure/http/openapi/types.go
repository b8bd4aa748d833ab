// Package openapi holds the wire types and handler interface described by api/openapi.yaml.
package openapi

import "time"

type CurrentRate struct {
	Id               int64     `json:"id"`
	CurrencyCode     string    `json:"currency_code"`
	CurrencyName     string    `json:"currency_name"`
	Rate             float64   `json:"rate"`
	ChangePercentage float64   `json:"change_percentage"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type RateHistoryEntry struct {
	Id               int64     `json:"id"`
	CurrencyCode     string    `json:"currency_code"`
	Rate             float64   `json:"rate"`
	ChangePercentage float64   `json:"change_percentage"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type UpdateRateRequest struct {
	CurrencyCode string   `json:"currency_code" validate:"required,len=3,alpha"`
	Rate         *float64 `json:"rate" validate:"required,gt=0"`
}

type UpdateRateResponse struct {
	Success          bool    `json:"success"`
	Rate             float64 `json:"rate"`
	ChangePercentage float64 `json:"changePercentage"`
}

type AutoUpdateResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Source  *string  `json:"source,omitempty"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UpdateRateParams defines parameters for UpdateRate.
type UpdateRateParams struct {
	// XIdempotencyKey makes a retried manual update a no-op.
	XIdempotencyKey *string `json:"X-Idempotency-Key,omitempty"`
}
