package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

type contextKey string

// ContextKeyRequestID carries the request id assigned by RequestID.
const ContextKeyRequestID contextKey = "request-id"

// RequestID assigns every request a unique id, exposed in the X-Request-ID
// response header and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id carried by ctx, if any.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// Tracing wraps each request in a server span named "<method> <path>" with
// standard HTTP attributes. Status codes of 500 and above mark the span as
// failed.
func Tracing(tracer tracing.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				tracing.WithSpanKind(tracing.SpanKindServer),
				tracing.WithAttributes(
					tracing.String("http.request.method", r.Method),
					tracing.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			span.SetAttributes(tracing.Int("http.response.status_code", recorder.status))
			if recorder.status >= http.StatusInternalServerError {
				span.SetStatus(tracing.StatusCodeError, http.StatusText(recorder.status))
				return
			}
			span.SetStatus(tracing.StatusCodeOK, "")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
