// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// New creates a *slog.Logger configured by Option functions: output format
// (text or json), minimum level, static attributes, and ContextExtractor
// callbacks that pull attributes from a context on every Handle call.
// NewFromConfig does the same from a Config loaded with pkg/config.
//
// # Architecture
//
// New picks slog.NewTextHandler or slog.NewJSONHandler based on the Format and
// wraps the result in a handler that runs the registered extractors before
// delegating. SessionIDExtractor logs the session id placed in the context by
// WithSessionID; StringExtractor adapts any string getter such as a router's
// request id.
//
// Helper constructors in attr.go (Error, SessionID, StorageKey, Count, ...)
// keep attribute names consistent across the session store, the reaper and
// the demo server.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionfolder/pkg/logger"
//
//	func main() {
//	    log := logger.New(logger.WithDevelopment("sessionfolder"))
//	    logger.SetAsDefault(log)
//
//	    log.InfoContext(ctx, "session folder provisioned",
//	        logger.SessionID(sid),
//	        logger.StorageKey(key),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// Components that accept an optional logger fall back to Discard.
//
// # Error Handling
//
// Error and Errors produce attributes only when the supplied error value is
// non-nil, so calls like
//
//	log.Info("sweep finished", logger.Error(err))
//
// need no additional nil check.
package logger
