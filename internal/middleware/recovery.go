package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

func Recovery(render ErrorRenderer) func(http.Handler) http.Handler {
	render = orPlain(render)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					slog.Error("panic recovered",
						"request_id", RequestIDFromContext(r.Context()),
						"error", fmt.Sprintf("%v", recovered),
						"stack", string(debug.Stack()),
					)
					render(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again.")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
