package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/sessionfolder/pkg/logger"
)

// Check reports whether a dependency can serve traffic.
type Check func(context.Context) error

// LivenessHandler always answers 200 OK with body "ALIVE".
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler answers 503 "NOT_READY" until ready is closed or while any
// check fails, and 200 "READY" otherwise. A nil ready channel is treated as
// already open. Checks run with the request context.
func ReadinessHandler(log *slog.Logger, ready <-chan struct{}, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ready != nil {
			select {
			case <-ready:
			default:
				notReady(w)
				return
			}
		}

		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", logger.Error(err))
				notReady(w)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

func notReady(w http.ResponseWriter) {
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("NOT_READY"))
}
