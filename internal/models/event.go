// internal/models/event.go
package models

import "time"

// StateChangeEvent is one row of the append-only audit log. FromState is nil
// only on the event that records the application's creation.
type StateChangeEvent struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"seq"`
	ApplicationID string     `json:"application_id"`
	RecordType    RecordType `json:"application_type"`
	FromState     *Status    `json:"from_state"`
	ToState       Status     `json:"to_state"`
	ActorID       string     `json:"actor_id"`
	ActorRole     Role       `json:"actor_role"`
	Reason        string     `json:"reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsCreation reports whether e records the application's creation.
func (e StateChangeEvent) IsCreation() bool {
	return e.FromState == nil
}

// AuditQuery filters the audit search index.
type AuditQuery struct {
	ActorID    string
	ToState    *Status
	RecordType *RecordType
	Size       int
}
