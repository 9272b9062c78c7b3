// Package identity attributes requests to an operator.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	OperatorHeaderName = "X-Operator-ID"
	AnonymousOperator  = "anonymous"
)

type contextKey int

const (
	operatorIDKey contextKey = iota
)

var operatorIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)

// WithOperator returns a context carrying the operator id.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, sanitizeOperatorID(operatorID))
}

// OperatorFromContext extracts the operator id from the request context.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorIDKey).(string); ok && v != "" {
		return v
	}
	return AnonymousOperator
}

func sanitizeOperatorID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !operatorIDPattern.MatchString(id) {
		return AnonymousOperator
	}
	return id
}

func operatorIDFromRequest(r *http.Request) string {
	id := r.Header.Get(OperatorHeaderName)
	if id == "" {
		id = r.URL.Query().Get("operator_id")
	}
	return sanitizeOperatorID(id)
}

// Middleware injects the operator id taken from the X-Operator-ID header.
// Requests without one are attributed to "anonymous".
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithOperator(r.Context(), operatorIDFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
