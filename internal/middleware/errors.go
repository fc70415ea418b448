package middleware

import (
	"fmt"
	"html"
	"net/http"
)

// ErrorRenderer writes a complete error page for status.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int, message string)

// PlainError is the renderer used when none is configured.
func PlainError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<!doctype html><title>%d</title><p>%s</p>", status, html.EscapeString(message))
}

func orPlain(render ErrorRenderer) ErrorRenderer {
	if render == nil {
		return PlainError
	}
	return render
}
