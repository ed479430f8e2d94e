package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	AuditActionExecute  AuditEventType = "action_execute"
	AuditActionComplete AuditEventType = "action_complete"
	AuditActionRollback AuditEventType = "action_rollback"

	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	AuditFileWrite  AuditEventType = "file_write"
	AuditFileDelete AuditEventType = "file_delete"

	AuditProjectImport AuditEventType = "project_import"
	AuditProjectDelete AuditEventType = "project_delete"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	ProjectID  string                 `json:"project,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes audit events scoped to a project.
type AuditLogger struct {
	projectID string
}

// InitAudit opens the audit log file. No-op unless debug mode is enabled.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	file, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("%s_audit.jsonl", date)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

func closeAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an audit logger scoped to a project.
func Audit(projectID string) *AuditLogger {
	return &AuditLogger{projectID: projectID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.ProjectID == "" {
		event.ProjectID = a.projectID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// ActionComplete records the outcome of one agent action.
func (a *AuditLogger) ActionComplete(action, target string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditActionComplete,
		Action:    action,
		Target:    target,
		Success:   success,
		Error:     errMsg,
	})
}

// ActionRollback records an atomic plan that was discarded.
func (a *AuditLogger) ActionRollback(actions int, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditActionRollback,
		Error:     errMsg,
		Fields:    map[string]interface{}{"actions": actions},
	})
}

// LLMCall records a model round trip.
func (a *AuditLogger) LLMCall(model string, durationMs int64, success bool, errMsg string) {
	eventType := AuditLLMResponse
	if !success {
		eventType = AuditLLMError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// FileOp records a file write or delete made on behalf of the agent.
func (a *AuditLogger) FileOp(op AuditEventType, path string, size int) {
	a.Log(AuditEvent{
		EventType: op,
		Target:    path,
		Success:   true,
		Fields:    map[string]interface{}{"size": size},
	})
}
