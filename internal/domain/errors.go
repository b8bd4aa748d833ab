package domain

import "errors"

var (
	ErrInvalidRate     = errors.New("invalid rate")
	ErrInvalidCurrency = errors.New("invalid currency code")
)
