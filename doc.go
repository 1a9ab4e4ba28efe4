// Package authclient provides client-side session and authentication
// management for programs that consume a community-platform REST backend:
// bearer-token inspection, durable cross-process session storage, login and
// registration actions, and a controller that owns the in-memory auth state
// machine.
//
// Token handling:
//   - The bearer token is decoded, never verified. Signature verification is
//     the backend's responsibility; the client only inspects claims to decide
//     whether a locally stored session is worth revalidating, and to derive
//     display identity. Any structural decode failure is treated as "no
//     session", never as a hard error.
//
// Session lifecycle:
//   - Controller centralizes the phase graph (initializing, unauthenticated,
//     authenticated), runs every trigger (startup, explicit action, external
//     storage change) through a single re-establish path, and publishes state
//     snapshots to subscribers. Expired, malformed, or backend-rejected
//     tokens collapse to a silent logout.
//
// Cross-process sync:
//   - SessionStore implementations deliver change notifications when another
//     process writes or clears the persisted token, mirroring the browser
//     storage-event contract: self-originated writes are not observed.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the Controller and
//     the OAuth flow. Sink errors are logged, never propagated, so auditing
//     can fan out to logs or queues without blocking authentication.
package authclient
