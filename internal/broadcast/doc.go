// Package broadcast fans a broadcast out into individually tracked emails.
//
// A send request moves a draft to sending. The Dispatcher, a periodic task,
// then picks the oldest sending broadcast and enqueues one send-email job per
// recipient, one id-ordered page at a time, until a page comes back empty.
// The SendWorker renders and sends each email at most once, keyed by the
// broadcast and contact pair. The Webhook reconciler folds provider delivery
// events into each email's activity log, and the Unsubscriber handles the
// signed links embedded in every email.
//
// Persistence is behind the Store interfaces; internal/repository provides
// the Postgres implementation.
package broadcast
