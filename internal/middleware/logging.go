package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
	errorTailLimit  = 4 << 10
)

const requestIDContextKey contextKey = "request_id"

// Logging writes one access log line per request and tags the request
// with an id, reusing a sane X-Request-ID sent by the caller.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestIDFrom(r)
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)

		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []slog.Attr{
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.written),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("client_ip", clientIP(r)),
		}
		attrs = append(attrs, rec.errorAttrs()...)

		slog.Default().LogAttrs(ctx, levelFor(rec.status), "request", attrs...)
	})
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

func requestIDFrom(r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return id
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// statusRecorder remembers the status and size of a response and keeps
// the head of error bodies so their envelope code can be logged.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
	errorTail   bytes.Buffer
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status >= http.StatusBadRequest {
		if room := errorTailLimit - s.errorTail.Len(); room > 0 {
			s.errorTail.Write(b[:min(room, len(b))])
		}
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += n
	return n, err
}

func (s *statusRecorder) errorAttrs() []slog.Attr {
	if s.errorTail.Len() == 0 {
		return nil
	}
	var env struct {
		Error *struct {
			Code    string `json:"code"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(s.errorTail.Bytes(), &env); err != nil || env.Error == nil {
		return nil
	}
	attrs := []slog.Attr{slog.String("error_code", env.Error.Code)}
	if env.Error.Details != "" {
		attrs = append(attrs, slog.String("error_details", env.Error.Details))
	}
	return attrs
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack lets websocket upgrades pass through.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
