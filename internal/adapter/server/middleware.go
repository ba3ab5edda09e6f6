package server

import (
	"net/http"
	"time"

	"costume-portal/internal/core/domain/types"
)

type responseWriterWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWriterWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (api *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		rw := &responseWriterWrapper{ResponseWriter: w}

		api.log.Debug(
			r.Context(),
			types.ActionRequestReceived,
			"started",
			"method", r.Method,
			"URL", r.URL.Path,
			"host", r.Host,
		)

		next.ServeHTTP(rw, r)

		duration := time.Since(startTime)

		api.log.Debug(
			r.Context(),
			types.ActionRequestReceived,
			"completed",
			"method", r.Method,
			"URL", r.URL.Path,
			"status", rw.status,
			"duration", duration,
		)
	})
}
