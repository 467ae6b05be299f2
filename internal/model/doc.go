// Package model defines the data structures used throughout ghnotify.
//
// These models are shared by the API client, the persistence layer and the
// sync scheduler. JSON tags follow the GitHub REST API field names so the
// same types decode API payloads and serialize into the bbolt store.
//
// # NotificationThread
//
// [NotificationThread] is an immutable snapshot of a GitHub notification
// thread fetched on each poll. Its identity is ID; two snapshots of the same
// thread are compared by UpdatedAt, which is kept as the raw ISO-8601 string
// returned by the API.
//
// # Sync bookkeeping
//
// [SyncState] is the single persisted row holding the collection validators
// (Last-Modified / ETag) and the last sync time. [SeenThread] is the per
// thread dedup record updated whenever a notification is delivered.
//
// # RateLimit
//
// [RateLimit] mirrors the X-RateLimit-* response headers.
package model
