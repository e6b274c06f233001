package middleware

import (
	"net/http"
	"strings"

	"bus-booking/pkg/utils"
)

const holderTokenHeader = "X-Holder-Token"

// HolderToken puts the X-Holder-Token header, if any, on the request context.
func HolderToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := strings.TrimSpace(r.Header.Get(holderTokenHeader)); token != "" {
				r = r.WithContext(utils.SetHolderToken(r.Context(), token))
			}
			next.ServeHTTP(w, r)
		})
	}
}
