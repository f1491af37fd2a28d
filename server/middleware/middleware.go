// Package middleware holds the HTTP middleware of the directory server.
//
// Transport-wide concerns (panic recovery, request ids, access logs, body
// limits) use the net/http Middleware signature and wrap the root handler.
// Auth is a Gin handler because only the provider routes require a token.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware. The first in the list is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
