// Package redis opens the go-redis client used for distributed locks and
// webhook replay claims. Redis is optional: an empty URL means the service
// falls back to Postgres advisory locks.
package redis
