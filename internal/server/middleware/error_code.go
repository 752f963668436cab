package middleware

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

type errorCodeKey struct{}

// ErrorCodeMiddleware reads the failure status a caller asked for from the
// header named by header() and stores it in the request context. Invalid
// values are logged and ignored so the configured default applies.
func ErrorCodeMiddleware(header func() string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := header()
			if name == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw := r.Header.Get(name)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			code, err := ParseStatusCode(raw)
			if err != nil {
				logger.Warn("Invalid error code header",
					zap.String("header", name),
					zap.String("value", raw),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), errorCodeKey{}, code)))
		})
	}
}

// ErrorCodeFromContext returns the override stored by ErrorCodeMiddleware.
func ErrorCodeFromContext(ctx context.Context) (int, bool) {
	code, ok := ctx.Value(errorCodeKey{}).(int)
	return code, ok
}

// ParseStatusCode converts a string status code to int, accepting 200-599.
func ParseStatusCode(code string) (int, error) {
	statusCode, err := strconv.Atoi(code)
	if err != nil {
		return 0, err
	}
	if statusCode < constants.MinStatusCode || statusCode > constants.MaxStatusCode {
		return 0, &InvalidStatusCodeError{Code: statusCode}
	}
	return statusCode, nil
}

// InvalidStatusCodeError represents an out-of-range HTTP status code
type InvalidStatusCodeError struct {
	Code int
}

func (e *InvalidStatusCodeError) Error() string {
	return strconv.Itoa(e.Code) + " is not a valid HTTP status code"
}
