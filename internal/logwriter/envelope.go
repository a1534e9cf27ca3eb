// Package logwriter buffers the follow-up events, rejections and client
// responses a command processor produces, so they commit or abort
// together with the state-store mutations made in the same transaction.
package logwriter

// RecordType distinguishes a command from its follow-up events and
// rejections on the log.
type RecordType int8

const (
	RecordTypeCommand RecordType = iota
	RecordTypeEvent
	RecordTypeRejection
)

// Intent tags the lifecycle phase a record represents.
type Intent string

const (
	IntentDeleteResource         Intent = "DeleteResource"
	IntentResourceDeletionDeleting Intent = "ResourceDeletion.DELETING"
	IntentResourceDeletionDeleted  Intent = "ResourceDeletion.DELETED"
	IntentProcessDeleting          Intent = "Process.DELETING"
	IntentProcessDeleted           Intent = "Process.DELETED"
	IntentDecisionDeleted          Intent = "Decision.DELETED"
	IntentDecisionRequirementsDeleted Intent = "DecisionRequirements.DELETED"
)

// ValueType names the record payload's schema.
type ValueType string

const (
	ValueTypeResourceDeletion      ValueType = "RESOURCE_DELETION"
	ValueTypeProcess               ValueType = "PROCESS"
	ValueTypeDecision              ValueType = "DECISION"
	ValueTypeDecisionRequirements  ValueType = "DECISION_REQUIREMENTS"
)

// RejectionKind enumerates the rejection reasons this core can produce.
type RejectionKind string

const (
	RejectionNotFound     RejectionKind = "NOT_FOUND"
	RejectionInvalidState RejectionKind = "INVALID_STATE"
)

// Record is the inbound/outbound log record envelope: every command,
// event and rejection this subsystem reads or writes takes this shape.
type Record struct {
	Key                  int64
	SourceRecordPosition int64
	RecordType           RecordType
	Intent               Intent
	ValueType            ValueType
	PartitionId          uint32
	Distributed          bool
	Value                []byte

	RejectionKind    RejectionKind
	RejectionMessage string
}
