// Package lock provides non-blocking distributed locks.
//
// Three backends implement Locker:
//
//   - Redis: SET NX with a TTL and an owner token; released with a
//     compare-and-delete script. Preferred across hosts.
//   - Postgres: session advisory locks held on a dedicated connection. The TTL
//     is ignored; the lock lives until Release or until the connection drops.
//   - Memory: a process-local map for tests and single-instance deployments.
//
// A lease that is never released expires with its TTL on Redis and Memory,
// which makes those two usable as a short-lived deduplication claim:
//
//	lease, err := locker.TryAcquire(ctx, "webhook:"+deliveryID, 5*time.Minute)
//	if errors.Is(err, lock.ErrNotAcquired) {
//	    return // already processed
//	}
package lock
