// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Execution lifecycle events
	ExecutionStarted   EventType = "EXECUTION_STARTED"
	ExecutionCompleted EventType = "EXECUTION_COMPLETED"
	ExecutionFailed    EventType = "EXECUTION_FAILED"
	ExecutionStopped   EventType = "EXECUTION_STOPPED"

	// Trade events
	TradeExecuted EventType = "TRADE_EXECUTED"
	TradeRejected EventType = "TRADE_REJECTED"

	// Agent lifecycle events
	AgentCreated   EventType = "AGENT_CREATED"
	AgentUpdated   EventType = "AGENT_UPDATED"
	AgentSuspended EventType = "AGENT_SUSPENDED"
	AgentResumed   EventType = "AGENT_RESUMED"
	AgentDeleted   EventType = "AGENT_DELETED"

	// Maintenance events
	SessionReaped   EventType = "SESSION_REAPED"
	SnapshotCreated EventType = "SNAPSHOT_CREATED"
	BackupCompleted EventType = "BACKUP_COMPLETED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllTypes returns every event type the stream can carry.
func AllTypes() []EventType {
	return []EventType{
		ExecutionStarted,
		ExecutionCompleted,
		ExecutionFailed,
		ExecutionStopped,
		TradeExecuted,
		TradeRejected,
		AgentCreated,
		AgentUpdated,
		AgentSuspended,
		AgentResumed,
		AgentDeleted,
		SessionReaped,
		SnapshotCreated,
		BackupCompleted,
		ErrorOccurred,
	}
}
