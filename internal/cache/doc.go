// Package cache implements the shared response cache.
//
// Every accepted provider message is written here keyed by the
// originating input's cache key, wrapped in an Envelope carrying the
// MaxAge: -1 freshness override. Two backends are provided: an
// in-process Local cache and a Redis-backed cache for multi-process
// deployments.
package cache
