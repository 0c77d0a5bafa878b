package middleware

import (
	"encoding/json"
	"mime"
	"net/http"
	"time"

	"case-console/internal/model"
)

// Timeout bounds how long a handler may take. Multipart requests get
// uploadTimeout instead, since the image body is read inside the handler.
func Timeout(timeout time.Duration, uploadTimeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if uploadTimeout < timeout {
		uploadTimeout = timeout
	}

	body, _ := json.Marshal(model.Fail("REQUEST_TIMEOUT", "request timed out", ""))

	return func(next http.Handler) http.Handler {
		regular := http.TimeoutHandler(next, timeout, string(body))
		upload := http.TimeoutHandler(next, uploadTimeout, string(body))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if isMultipart(r) {
				upload.ServeHTTP(w, r)
				return
			}
			regular.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
