package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/http/openapi"
	"currency-rates-service/internal/infrastructure/logx"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var _ openapi.ServerInterface = (*Server)(nil)

// RatesAPI is the part of the rates service exposed over HTTP.
type RatesAPI interface {
	ListCurrentRates(ctx context.Context) ([]domain.CurrentRate, error)
	GetHistory(ctx context.Context, code string) ([]domain.RateHistoryEntry, error)
	ManualUpdate(ctx context.Context, code string, rate float64, idem *string) (application.ReconcileResult, error)
	UpdateAllFromSource(ctx context.Context) (application.AutoUpdateResult, error)
	Ready(ctx context.Context) error
}

type Server struct {
	svc      RatesAPI
	validate *validator.Validate
	ping     func(ctx context.Context) error
}

func NewServer(svc RatesAPI) *Server {
	return &Server{svc: svc, validate: validator.New(validator.WithRequiredStructEnabled()), ping: svc.Ready}
}

// SetReadyCheck replaces the readiness probe.
func (s *Server) SetReadyCheck(f func(ctx context.Context) error) { s.ping = f }

func (s *Server) ListCurrencyRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.svc.ListCurrentRates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]openapi.CurrentRate, 0, len(rates))
	for _, c := range rates {
		out = append(out, openapi.CurrentRate{
			Id:               c.ID,
			CurrencyCode:     string(c.Code),
			CurrencyName:     c.Name,
			Rate:             c.Rate,
			ChangePercentage: c.ChangePercentage,
			UpdatedAt:        c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetCurrencyHistory(w http.ResponseWriter, r *http.Request, code string) {
	entries, err := s.svc.GetHistory(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]openapi.RateHistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, openapi.RateHistoryEntry{
			Id:               e.ID,
			CurrencyCode:     string(e.Code),
			Rate:             e.Rate,
			ChangePercentage: e.ChangePercentage,
			UpdatedAt:        e.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) UpdateRate(w http.ResponseWriter, r *http.Request, params openapi.UpdateRateParams) {
	var body openapi.UpdateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.svc.ManualUpdate(r.Context(), body.CurrencyCode, *body.Rate, params.XIdempotencyKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, openapi.UpdateRateResponse{
		Success:          true,
		Rate:             res.Rate,
		ChangePercentage: res.ChangePercentage,
	})
}

func (s *Server) UpdateRatesAuto(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.UpdateAllFromSource(r.Context())
	resp := openapi.AutoUpdateResponse{
		Success: res.Success,
		Message: res.Message,
		Updated: res.Updated,
	}
	if res.Source != "" {
		src := res.Source
		resp.Source = &src
	}
	for _, c := range res.Failed {
		resp.Failed = append(resp.Failed, string(c))
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
		if errors.Is(err, application.ErrSourcesUnavailable) {
			status = http.StatusBadGateway
		}
		logx.L().Warn("auto_update_request_failed", zap.Int("status", status), zap.Error(err), zap.String("request_id", requestIDFrom(r.Context())))
	}
	writeJSON(w, status, resp)
}

// fail maps service errors onto the JSON error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, "currency not found")
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, "duplicate request")
	default:
		logx.L().Error("request_failed", zap.String("path", r.URL.Path), zap.Error(err), zap.String("request_id", requestIDFrom(r.Context())))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", jsonFieldName(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func jsonFieldName(field string) string {
	switch field {
	case "CurrencyCode":
		return "currency_code"
	case "Rate":
		return "rate"
	}
	return field
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, openapi.Error{Code: status, Message: msg})
}
