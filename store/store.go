// Package store provides SessionStore implementations: a file-backed store
// with cross-process change notifications, a bun/sqlite-backed variant for
// hosts that already carry a database, and an in-memory store for tests.
//
// All implementations share the same contract: single-key atomicity, and no
// notification for writes performed through the same instance (mirroring the
// browser storage-event guarantee the auth controller is built around).
package store

import (
	"github.com/google/uuid"
)

// record is the persisted session envelope. Writer identifies the store
// instance that performed the mutation so self-originated changes can be
// suppressed; Seq deduplicates change notifications.
type record struct {
	Token  string `json:"token"`
	Writer string `json:"writer"`
	Seq    int64  `json:"seq"`
}

func newWriterID() string {
	return uuid.NewString()
}
