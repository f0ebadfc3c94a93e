package core

import (
	"context"
	"time"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent announces that an owner's records changed. Receivers re-query;
// the event carries no payload beyond identifiers and gives no ordering guarantee.
type ChangeEvent struct {
	OwnerID  string     `json:"owner_id"`
	Kind     RecordKind `json:"kind"`
	Op       ChangeOp   `json:"op"`
	RecordID string     `json:"record_id"`
	Origin   string     `json:"origin,omitempty"`
	At       time.Time  `json:"at"`
	// Record is set on inserts so mirrors can copy the row without a read.
	Record *Record `json:"record,omitempty"`
}

// Notifier receives change events. Implementations must not block the write path for long.
type Notifier interface {
	Notify(ctx context.Context, ev ChangeEvent) error
}
