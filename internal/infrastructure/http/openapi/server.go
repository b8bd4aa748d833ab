package openapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Current rate of every tracked currency
	// (GET /api/currency-rates)
	ListCurrencyRates(w http.ResponseWriter, r *http.Request)
	// Last archived rates of one currency, newest first
	// (GET /api/currency-history/{code})
	GetCurrencyHistory(w http.ResponseWriter, r *http.Request, code string)
	// Set the rate of one currency
	// (POST /api/update-rate)
	UpdateRate(w http.ResponseWriter, r *http.Request, params UpdateRateParams)
	// Refresh every tracked currency from the external sources
	// (POST /api/update-rates-auto)
	UpdateRatesAuto(w http.ResponseWriter, r *http.Request)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts requests to typed parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) ListCurrencyRates(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.ListCurrencyRates))
}

func (siw *ServerInterfaceWrapper) GetCurrencyHistory(w http.ResponseWriter, r *http.Request) {
	var code string
	err := runtime.BindStyledParameterWithOptions("simple", "code", chi.URLParam(r, "code"), &code,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "code", Err: err})
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetCurrencyHistory(w, r, code)
	}))
}

func (siw *ServerInterfaceWrapper) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var params UpdateRateParams

	if valueList, found := r.Header[http.CanonicalHeaderKey("X-Idempotency-Key")]; found {
		if n := len(valueList); n != 1 {
			siw.ErrorHandlerFunc(w, r, &TooManyValuesForParamError{ParamName: "X-Idempotency-Key", Count: n})
			return
		}
		var key string
		err := runtime.BindStyledParameterWithOptions("simple", "X-Idempotency-Key", valueList[0], &key,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false, Required: false})
		if err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "X-Idempotency-Key", Err: err})
			return
		}
		params.XIdempotencyKey = &key
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateRate(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) UpdateRatesAuto(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.UpdateRatesAuto))
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

type TooManyValuesForParamError struct {
	ParamName string
	Count     int
}

func (e *TooManyValuesForParamError) Error() string {
	return fmt.Sprintf("Expected one value for %s, got %d", e.ParamName, e.Count)
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API description.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/currency-rates", wrapper.ListCurrencyRates)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/currency-history/{code}", wrapper.GetCurrencyHistory)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/update-rate", wrapper.UpdateRate)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/update-rates-auto", wrapper.UpdateRatesAuto)
	})
	return r
}
