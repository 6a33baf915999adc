// Package job runs background tasks on River, a Postgres-backed queue.
//
// Tasks are plain structs with a name and a typed handler. The payload type is
// inferred from the Handle signature and travels as JSON:
//
//	type SendEmail struct{ ... }
//
//	func (t *SendEmail) Name() string { return "send-email" }
//	func (t *SendEmail) Handle(ctx context.Context, p SendEmailPayload) error { ... }
//
//	manager, err := job.NewManager(pool,
//	    job.WithTask(sendEmail),
//	    job.WithScheduledTask(dispatcher, job.InQueue("send-broadcasts"), job.MaxAttempts(3)),
//	    job.WithQueue("send-emails", 20),
//	)
//
// Scheduled tasks additionally implement Schedule() returning a five-field cron
// expression, and Handle(ctx) without a payload.
//
// # Retries
//
// A returned error is retried with River's backoff until MaxAttempts is
// reached. Wrap an error with Fatal to cancel the job instead. Handlers that
// need to act on their last attempt read AttemptFromContext:
//
//	if a, ok := job.AttemptFromContext(ctx); ok && a.Final() {
//	    // record the permanent failure
//	}
//
// # Uniqueness
//
// UniqueFor with UniqueKey makes River drop a second job with the same task
// name and key inside the window:
//
//	manager.Enqueue(ctx, "send-email", payload,
//	    job.UniqueFor(24*time.Hour),
//	    job.UniqueKey("broadcast-1-contact-7"))
package job
