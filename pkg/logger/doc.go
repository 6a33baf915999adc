// Package logger builds the service's slog logger: JSON to stdout, attributes
// pulled from the context on every call, and an optional Sentry fan-out.
//
//	log := logger.New(cfg,
//	    logger.FieldExtractor(logger.BroadcastID),
//	    logger.FieldExtractor(logger.ContactID),
//	)
//
//	ctx = logger.WithField(ctx, logger.BroadcastID, id)
//	log.InfoContext(ctx, "broadcast sent")
//	// {"level":"INFO","msg":"broadcast sent","broadcast_id":42}
//
// With a Sentry DSN configured, errors become Sentry issues and warnings are
// stored as Sentry logs. Call Flush before the process exits.
package logger
