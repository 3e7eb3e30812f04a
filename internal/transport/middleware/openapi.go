package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidator checks parameters and JSON bodies against the API document
// before they reach a handler. Routes missing from the document pass through.
type OpenAPIValidator struct {
	*transport.BaseHandler
	router routers.Router
}

func NewOpenAPIValidator(spec []byte, lg *slog.Logger) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	return &OpenAPIValidator{
		BaseHandler: transport.NewBaseHandler(lg),
		router:      router,
	}, nil
}

func (v *OpenAPIValidator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.WriteAppError(w, requestValidationError(err))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestValidationError names the offending parameter or body field.
func requestValidationError(err error) *internal.AppError {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	field := "body"
	if reqErr.Parameter != nil {
		field = reqErr.Parameter.Name
	}

	message := reqErr.Reason
	var schemaErr *openapi3.SchemaError
	if errors.As(reqErr.Err, &schemaErr) {
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			if reqErr.Parameter != nil {
				field = field + "." + strings.Join(pointer, ".")
			} else {
				field = strings.Join(pointer, ".")
			}
		}
		message = schemaErr.Reason
	}
	if message == "" {
		message = reqErr.Error()
	}

	return internal.NewValidationFieldError(field, message, internal.ErrCodeValidationFailed)
}
