package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/doctorauto/sophia/internal/port/cache"
)

const (
	// HeaderIdempotencyKey lets a retrying proxy replay a POST safely.
	HeaderIdempotencyKey = "Idempotency-Key"
	maxIdempotencyBody   = 1 << 20
	maxIdempotencyKeyLen = 200
)

type idempotencyEntry struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response of a POST carrying an
// Idempotency-Key that was seen within ttl. Server errors are not stored
// so that a retry can succeed. Cache failures fall through to the handler.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || key == "" || len(key) > maxIdempotencyKeyLen {
				next.ServeHTTP(w, r)
				return
			}
			cacheKey := "idem:" + r.URL.Path + ":" + key

			var cached idempotencyEntry
			found, err := cache.GetJSON(r.Context(), c, cacheKey, &cached)
			if err != nil {
				slog.WarnContext(r.Context(), "idempotency lookup failed", "key", key, "error", err)
			}
			if found {
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			entry := idempotencyEntry{
				StatusCode:  rec.statusCode,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := cache.SetJSON(r.Context(), c, cacheKey, entry, ttl); err != nil {
				slog.WarnContext(r.Context(), "idempotency store failed", "key", key, "error", err)
			}
		})
	}
}

// responseRecorder tees the response body for storage.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
