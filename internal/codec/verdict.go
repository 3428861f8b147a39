// Package codec owns the wire contract with the oracle: it is the only
// package that knows the verdict dialect. Everything else consumes typed
// Verdict values and hands the codec typed views to format.
package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

// VerdictStatus is the oracle's judgement for one task attempt.
type VerdictStatus string

const (
	VerdictSuccess    VerdictStatus = "success"
	VerdictFailed     VerdictStatus = "failed"
	VerdictNeedsDebug VerdictStatus = "needs-debug"
)

// LogLevel classifies a structured log entry from the oracle.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogEntry is a structured record emitted by the oracle as part of a verdict.
type LogEntry struct {
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FileChange reports a file the oracle claims to have touched. Advisory for
// observers; the core does not verify it.
type FileChange struct {
	Path   string `json:"path"`
	Action string `json:"action"` // created, modified, deleted
}

// VerdictError carries the failure detail for non-success verdicts.
type VerdictError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

// Verdict is the oracle's structured reply for one task attempt.
type Verdict struct {
	Status       VerdictStatus `json:"status"`
	Result       string        `json:"result"`
	LogEntries   []LogEntry    `json:"log_entries"`
	FilesChanged []FileChange  `json:"files_changed,omitempty"`
	NextSteps    []string      `json:"next_steps,omitempty"`
	Error        *VerdictError `json:"error,omitempty"`
}

// HistoryEntry is the LLM-facing record of a prior step, fed back to the
// oracle on later calls for context continuity.
type HistoryEntry struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"` // completed, failed, debug
	Summary   string `json:"summary"`
	Iteration int    `json:"iteration"`
}

// ErrorMessage returns the verdict's error message, or "" when absent.
func (v *Verdict) ErrorMessage() string {
	if v.Error == nil {
		return ""
	}
	return v.Error.Message
}

// EncodeVerdict serializes a verdict to the wire form. Parse(Encode(v)) is
// the identity for any well-formed verdict.
func EncodeVerdict(v *Verdict) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode verdict: %w", err)
	}
	return string(data), nil
}

// validActions for files_changed entries.
var validActions = map[string]bool{
	"created":  true,
	"modified": true,
	"deleted":  true,
}

var validLevels = map[LogLevel]bool{
	LevelDebug:   true,
	LevelInfo:    true,
	LevelWarning: true,
	LevelError:   true,
}

var validStatuses = map[VerdictStatus]bool{
	VerdictSuccess:    true,
	VerdictFailed:     true,
	VerdictNeedsDebug: true,
}
