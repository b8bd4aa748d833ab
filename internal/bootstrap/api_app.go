package bootstrap

import (
	"context"
	"net/http"

	"currency-rates-service/internal/config"
	httpserver "currency-rates-service/internal/infrastructure/http"
	"currency-rates-service/internal/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// InitAPI builds the HTTP handler with every dependency behind it.
func InitAPI(ctx context.Context, cfg config.Config) (http.Handler, func(), error) {
	m := NewMetrics()
	svc, cleanup, err := BuildService(ctx, cfg, m)
	if err != nil {
		return nil, func() {}, err
	}
	h, err := httpserver.NewRouter(httpserver.NewServer(svc), httpserver.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.APIRateLimit,
		Metrics:     m,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return h, cleanup, nil
}

// NewMetrics returns service metrics on a registry that also exports runtime collectors.
func NewMetrics() *metrics.RateMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg)
}
