package state

import "time"

// Status is the liveness state of a node.
type Status string

// Node statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// MetaState is a snapshot of a node's bookkeeping. It is not a
// subscription; read it again after a change notification.
type MetaState struct {
	Status      Status    `json:"status"`
	Err         error     `json:"-"`
	LastUpdated time.Time `json:"last_updated"`
	IsDirty     bool      `json:"is_dirty"`
}

// Reserved read keys.
const (
	// MetaKey reads the node's MetaState.
	MetaKey = "$meta"
	// ChangesKey reads the node's notification bus.
	ChangesKey = "$changes"
	// LengthKey reads the number of items of a list.
	LengthKey = "length"
)

func (m *nodeMeta) snapshotMeta() MetaState {
	status := m.status
	if status == "" {
		status = StatusReady
	}
	return MetaState{
		Status:      status,
		Err:         m.err,
		LastUpdated: m.updated,
		IsDirty:     m.dirty,
	}
}
