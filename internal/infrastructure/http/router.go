package httpserver

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"time"

	"currency-rates-service/internal/infrastructure/http/openapi"
	"currency-rates-service/internal/infrastructure/logx"
	"currency-rates-service/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"
const traceIDKey contextKey = "trace_id"

//go:embed web/*.html
var webFS embed.FS

// RouterConfig carries the optional edge concerns. The zero value disables CORS,
// rate limiting and metrics.
type RouterConfig struct {
	CORSOrigins []string
	// RateLimit uses the limiter format, e.g. "300-M". Applied to /api only.
	RateLimit string
	Metrics   *metrics.RateMetrics
	// OpenAPIPaths are tried in order when serving /openapi.yaml.
	OpenAPIPaths []string
}

func NewRouter(s *Server, cfg RouterConfig) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(traceID())
	r.Use(recoverer())
	r.Use(accessLog(cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(newCORS(cfg.CORSOrigins).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.ping != nil {
			if err := s.ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "db not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	var apiMiddlewares []openapi.MiddlewareFunc
	if cfg.RateLimit != "" {
		mw, err := rateLimit(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		apiMiddlewares = append(apiMiddlewares, mw)
	}

	// Binding errors use the JSON error envelope.
	openapi.HandlerWithOptions(s, openapi.ChiServerOptions{
		BaseRouter:  r,
		Middlewares: apiMiddlewares,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, err.Error())
		},
	})

	pages, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	for route, file := range map[string]string{
		"/":        "index.html",
		"/about":   "about.html",
		"/contact": "contact.html",
		"/admin":   "admin.html",
	} {
		r.Get(route, staticPage(pages, file))
	}

	openapiPaths := cfg.OpenAPIPaths
	if len(openapiPaths) == 0 {
		openapiPaths = []string{"api/openapi.yaml", "/usr/local/share/currency-rates/openapi.yaml"}
	}
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		var data []byte
		var err error
		for _, p := range openapiPaths {
			data, err = os.ReadFile(p)
			if err == nil {
				break
			}
		}
		if err != nil {
			http.Error(w, "failed to load openapi spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})

	// Serve minimal Swagger UI
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(swaggerHTML))
	})
	return r, nil
}

func staticPage(pages fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := fs.ReadFile(pages, name)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Idempotency-Key", "X-Request-ID", "X-Trace-Id"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// rateLimit limits API calls per client IP with an in-process store.
func rateLimit(formatted string) (openapi.MiddlewareFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	mw := limiterhttp.NewMiddleware(
		limiter.New(memory.NewStore(), rate),
		limiterhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logx.L().Warn("rate_limit_exceeded", zap.String("path", r.URL.Path), zap.String("request_id", requestIDFrom(r.Context())))
			writeError(w, http.StatusTooManyRequests, "too many requests")
		}),
		limiterhttp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logx.L().Error("rate_limit_check_failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}),
	)
	return mw.Handler, nil
}

func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logx.L().Error("panic recovered", zap.Any("error", rec), zap.String("request_id", requestIDFrom(r.Context())))
					writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func accessLog(m *metrics.RateMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(sr, r)
			took := time.Since(start)
			tid, _ := r.Context().Value(traceIDKey).(string)
			logx.L().Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.Int("bytes", sr.bytes),
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("trace_id", tid),
				zap.Duration("duration", took),
			)
			if m != nil {
				route := "unmatched"
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				m.ObserveHTTP(r.Method, route, sr.status, took)
			}
		})
	}
}

func traceID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get("X-Trace-Id")
			if tid == "" {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Trace-Id", tid)
			ctx := context.WithValue(r.Context(), traceIDKey, tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const swaggerHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <title>currency-rates-service API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
    window.onload = () => {
      SwaggerUIBundle({
        url: "/openapi.yaml",
        dom_id: "#swagger-ui",
        presets: [SwaggerUIBundle.presets.apis],
        layout: "BaseLayout",
        requestInterceptor: (req) => {
          const headers = req.headers || {};
          const u = new URL(req.url, window.location.href);
          // Manual updates get a fresh idempotency key unless one was typed in.
          if (req.method === "POST" && u.pathname === "/api/update-rate" &&
              !headers["X-Idempotency-Key"] && window.crypto && window.crypto.randomUUID) {
            headers["X-Idempotency-Key"] = window.crypto.randomUUID();
          }
          u.protocol = window.location.protocol;
          u.host = window.location.host;
          req.url = u.toString();
          req.headers = headers;
          return req;
        }
      });
    };
  </script>
</body>
</html>`
