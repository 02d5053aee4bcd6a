package pagination

import (
	"context"
	"net/http"
)

type contextKey string

const paramsContextKey contextKey = "github.com/shopmart/api/internal/platform/pagination/params"

// WithParams stores the parsed pagination parameters on the context.
func WithParams(ctx context.Context, params Params) context.Context {
	return context.WithValue(ctx, paramsContextKey, params)
}

// FromContext retrieves pagination parameters attached by Middleware or WithParams.
func FromContext(ctx context.Context) (Params, bool) {
	params, ok := ctx.Value(paramsContextKey).(Params)
	return params, ok
}

// Middleware parses paging parameters once per request and hands malformed ones to onError.
func Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, err := FromRequest(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithParams(r.Context(), params)))
		})
	}
}
