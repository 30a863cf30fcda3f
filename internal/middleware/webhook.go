package middleware

import (
	"crypto/subtle"
	"net/http"
)

// HeaderWebhookToken carries the shared secret of inbound business webhooks.
const HeaderWebhookToken = "X-Webhook-Token"

// WebhookToken rejects requests whose X-Webhook-Token does not match
// token. An empty token disables the check so that local setups keep
// working without a secret.
func WebhookToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderWebhookToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid webhook token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
