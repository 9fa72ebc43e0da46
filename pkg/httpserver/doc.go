// Package httpserver wraps net/http with graceful shutdown, a ready gate and
// health probes.
//
// Run blocks until the context is cancelled or an interrupt/TERM signal
// arrives, then shuts the server down within the configured deadline. With
// WithReadyGate the server does not listen until the gate is closed, which
// lets a host hold traffic back until its storage reports ready.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/livez", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, store.Ready(), store.Healthcheck))
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithReadyGate(store.Ready()),
//	)
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run wraps listen errors with ErrStart and a gate that never opens with
// ErrNotReady. Shutdown wraps shutdown errors with ErrShutdown.
package httpserver
