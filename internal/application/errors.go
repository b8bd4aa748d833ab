package application

import "errors"

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")
var ErrBadRequest = errors.New("bad request")

// ErrSourcesUnavailable is returned when every configured rate source failed.
var ErrSourcesUnavailable = errors.New("all rate sources failed")
