package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/plan"
)

// Snapshot is the stable, language-neutral export of a session's state.
// Import(Export(m)) yields a manager whose subsequent transitions are
// observationally identical to m's.
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	Phase     Phase                `json:"phase"`
	Cursor    int                  `json:"cursor"`
	Plan      *plan.Plan           `json:"plan"`
	Completed []string             `json:"completed"`
	History   []codec.HistoryEntry `json:"history"`
	Logs      []codec.LogEntry     `json:"logs"`
	LastError *codec.VerdictError  `json:"lastError,omitempty"`
	DebugMode bool                 `json:"debugMode"`
	NextSteps []string             `json:"nextSteps,omitempty"`
	Attempts  int                  `json:"attempts"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Export returns an immutable deep copy of the session state.
func (m *Manager) Export() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		SessionID: m.sessionID,
		Phase:     m.phase,
		Cursor:    m.cursor,
		Plan:      m.plan.Clone(),
		Completed: append([]string(nil), m.completed...),
		History:   append([]codec.HistoryEntry(nil), m.history...),
		Logs:      append([]codec.LogEntry(nil), m.logs...),
		DebugMode: m.debugMode,
		NextSteps: append([]string(nil), m.nextSteps...),
		Attempts:  m.attempts,
		CreatedAt: m.createdAt,
		UpdatedAt: m.updatedAt,
	}
	if m.lastError != nil {
		cp := *m.lastError
		snap.LastError = &cp
	}
	return snap
}

// Import reconstructs a manager from a snapshot, preserving timestamps.
func Import(snap *Snapshot, opts ...Option) (*Manager, error) {
	if snap == nil {
		return nil, errors.ErrStateInvariant("import of nil snapshot")
	}
	if snap.SessionID == "" {
		return nil, errors.ErrStateInvariant("snapshot has no session identifier")
	}
	switch snap.Phase {
	case PhaseIdle, PhasePlanning, PhaseExecuting, PhaseCompleted, PhaseFailed:
	default:
		return nil, errors.ErrStateInvariant(fmt.Sprintf("snapshot has unknown phase %q", snap.Phase))
	}
	if snap.Plan != nil {
		if err := snap.Plan.Validate(); err != nil {
			return nil, err
		}
		if snap.Cursor < 0 || snap.Cursor > len(snap.Plan.Tasks) {
			return nil, errors.ErrStateInvariant(fmt.Sprintf("snapshot cursor %d out of range", snap.Cursor))
		}
	}

	m := NewManager(WithSessionID(snap.SessionID))
	for _, opt := range opts {
		opt(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = snap.Phase
	m.cursor = snap.Cursor
	m.plan = snap.Plan.Clone()
	m.completed = append([]string(nil), snap.Completed...)
	m.history = append([]codec.HistoryEntry(nil), snap.History...)
	m.logs = append([]codec.LogEntry(nil), snap.Logs...)
	m.debugMode = snap.DebugMode
	m.nextSteps = append([]string(nil), snap.NextSteps...)
	m.attempts = snap.Attempts
	m.createdAt = snap.CreatedAt
	m.updatedAt = snap.UpdatedAt
	if snap.LastError != nil {
		cp := *snap.LastError
		m.lastError = &cp
	}
	return m, nil
}

// MarshalSnapshot serializes a snapshot as indented JSON for files.
func MarshalSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot parses a snapshot from JSON.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
