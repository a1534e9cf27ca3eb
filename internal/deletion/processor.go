// Package deletion implements the DeleteResource state machine: classify
// the target resource, cascade the delete through its children, emit the
// lifecycle events, and hand the command off to distribution.
package deletion

import (
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/pbinitiative/resourced/internal/distribution"
	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/logwriter"
	"github.com/pbinitiative/resourced/internal/records"
	"github.com/pbinitiative/resourced/internal/resourcestate"
)

// KeyGenerator allocates the monotonic keys the processor assigns to
// outer and inner events.
type KeyGenerator interface {
	Next() int64
}

// ActiveInstanceChecker answers whether a process still has running
// instances; supplied by the (out-of-scope) element-instance state.
type ActiveInstanceChecker interface {
	HasActiveProcessInstances(processKey int64) bool
}

// Distributor is the subset of command distribution the processor drives
// directly.
type Distributor interface {
	DistributeCommand(key int64, command distribution.Command) error
	AcknowledgeCommand(key int64, originatingPartition uint32) error
}

var processRecordCodec = kv.MsgpackCodec[records.ProcessRecord]{}
var decisionRecordCodec = kv.MsgpackCodec[records.DecisionRecord]{}
var drgRecordCodec = kv.MsgpackCodec[records.DrgRecord]{}
var deleteCommandCodec = kv.MsgpackCodec[records.DeleteResourceCommand]{}

// appliedDistributedCommands marks every distributed command key this
// partition has already applied, so a redelivered distributed command
// (the peer never saw our ack, and retried) is a silent no-op instead of
// raising NoSuchResourceError against a resource the first delivery
// already removed.
var appliedDistributedCommands = kv.NewColumnFamily[int64, struct{}]("applied_distributed_commands", kv.Int64Codec{}, kv.NilCodec{})

// Processor implements the DeleteResource command lifecycle described by
// the partition state machine: RECEIVED -> DELETING -> (CASCADE) ->
// DELETED -> DISTRIBUTED/ACKNOWLEDGED, with NOT_FOUND/INVALID_STATE
// rejection branches.
type Processor struct {
	store       *kv.Store
	resources   *resourcestate.ResourceState
	writers     *logwriter.Builder
	appender    logwriter.Appender
	keys        KeyGenerator
	instances   ActiveInstanceChecker
	distributor Distributor
	partitionId uint32
	logger      hclog.Logger
}

func NewProcessor(
	store *kv.Store,
	resources *resourcestate.ResourceState,
	writers *logwriter.Builder,
	appender logwriter.Appender,
	keys KeyGenerator,
	instances ActiveInstanceChecker,
	distributor Distributor,
	partitionId uint32,
	logger hclog.Logger,
) *Processor {
	return &Processor{
		store:       store,
		resources:   resources,
		writers:     writers,
		appender:    appender,
		keys:        keys,
		instances:   instances,
		distributor: distributor,
		partitionId: partitionId,
		logger:      logger.Named("deletion-processor"),
	}
}

// ProcessNewCommand handles a DeleteResource command received directly
// from this partition's own log, allocating a fresh event key and
// distributing the applied command to every peer partition on success. The
// returned Record is the buffered client response, present whenever no
// error escapes processing.
func (p *Processor) ProcessNewCommand(cmd records.DeleteResourceCommand, sourceRecordPosition int64) (logwriter.Record, bool, error) {
	eventKey := p.keys.Next()
	return p.process(eventKey, p.partitionId, cmd, sourceRecordPosition, false)
}

// ProcessDistributedCommand handles a DeleteResource command received from
// a peer partition, reusing the originator's key so replay stays
// deterministic, and acknowledges the originating partition instead of
// distributing on success. Distributed commands never produce a client
// response, so the returned Record is always the zero value.
func (p *Processor) ProcessDistributedCommand(key int64, originatingPartition uint32, cmd records.DeleteResourceCommand, sourceRecordPosition int64) (logwriter.Record, bool, error) {
	return p.process(key, originatingPartition, cmd, sourceRecordPosition, true)
}

func (p *Processor) process(eventKey int64, originatingPartition uint32, cmd records.DeleteResourceCommand, sourceRecordPosition int64, distributed bool) (logwriter.Record, bool, error) {
	writers := p.writers.ConfigureSourceContext(sourceRecordPosition, distributed)
	cmdValue := deleteCommandCodec.Encode(cmd)

	var rejectErr error
	var alreadyApplied bool
	err := p.store.Update(func(tx *kv.Transaction) error {
		if distributed {
			applied, err := appliedDistributedCommands.Exists(tx, eventKey)
			if err != nil {
				return err
			}
			if applied {
				alreadyApplied = true
				return nil
			}
		}

		writers.State.AppendFollowUpEvent(eventKey, logwriter.IntentResourceDeletionDeleting, logwriter.ValueTypeResourceDeletion, cmdValue)

		classifyErr := p.tryDeleteResources(tx, writers, cmd.ResourceKey)
		if classifyErr != nil {
			if Classify(classifyErr) == ExpectedError {
				rejectErr = classifyErr
				return nil
			}
			return classifyErr
		}

		writers.State.AppendFollowUpEvent(eventKey, logwriter.IntentResourceDeletionDeleted, logwriter.ValueTypeResourceDeletion, cmdValue)
		if distributed {
			return appliedDistributedCommands.Upsert(tx, eventKey, struct{}{})
		}
		return nil
	})
	if err != nil {
		return logwriter.Record{}, false, err
	}

	if alreadyApplied {
		if err := p.distributor.AcknowledgeCommand(eventKey, originatingPartition); err != nil {
			return logwriter.Record{}, false, err
		}
		return logwriter.Record{}, false, writers.Flush(p.appender)
	}

	if rejectErr != nil {
		kind := rejectionKindFor(rejectErr)
		writers.Rejection.AppendRejection(eventKey, kind, rejectErr.Error())
		if !distributed {
			writers.Response.WriteRejectionOnCommand(eventKey, kind, rejectErr.Error())
		}
		if err := writers.Flush(p.appender); err != nil {
			return logwriter.Record{}, false, err
		}
		response, found := writers.PendingResponse()
		return response, found, nil
	}

	if distributed {
		if err := p.distributor.AcknowledgeCommand(eventKey, originatingPartition); err != nil {
			return logwriter.Record{}, false, err
		}
	} else {
		writers.Response.WriteEventOnCommand(eventKey, logwriter.IntentResourceDeletionDeleting, logwriter.ValueTypeResourceDeletion, cmdValue)
		if err := p.distributor.DistributeCommand(eventKey, distribution.Command{
			Key:                  eventKey,
			OriginatingPartition: p.partitionId,
			Intent:               string(logwriter.IntentDeleteResource),
			ValueType:            string(logwriter.ValueTypeResourceDeletion),
			Value:                cmdValue,
		}); err != nil {
			return logwriter.Record{}, false, err
		}
	}
	if err := writers.Flush(p.appender); err != nil {
		return logwriter.Record{}, false, err
	}
	response, found := writers.PendingResponse()
	return response, found, nil
}

func rejectionKindFor(err error) logwriter.RejectionKind {
	var notFound *NoSuchResourceError
	if errors.As(err, &notFound) {
		return logwriter.RejectionNotFound
	}
	return logwriter.RejectionInvalidState
}

// tryDeleteResources classifies resourceKey as a process or a DRG and
// deletes it, cascading to child decisions first. Returns
// NoSuchResourceError if neither exists, or ActiveProcessInstancesError if
// a process has running instances.
func (p *Processor) tryDeleteResources(tx *kv.Transaction, writers *logwriter.Writers, resourceKey int64) error {
	process, found, err := p.resources.GetProcessByKey(tx, resourceKey)
	if err != nil {
		return err
	}
	if found {
		return p.deleteProcess(tx, writers, process)
	}

	drg, found, err := p.resources.FindDrgByKey(tx, resourceKey)
	if err != nil {
		return err
	}
	if found {
		return p.deleteDecisionRequirements(tx, writers, drg)
	}

	return &NoSuchResourceError{ResourceKey: resourceKey}
}

func (p *Processor) deleteProcess(tx *kv.Transaction, writers *logwriter.Writers, process records.ProcessRecord) error {
	stripped := process.WithoutResource()
	strippedValue := processRecordCodec.Encode(stripped)
	writers.State.AppendFollowUpEvent(p.keys.Next(), logwriter.IntentProcessDeleting, logwriter.ValueTypeProcess, strippedValue)

	if p.instances.HasActiveProcessInstances(process.Key) {
		return &ActiveProcessInstancesError{ProcessKey: process.Key}
	}

	if err := p.resources.DeleteProcess(tx, process); err != nil {
		return err
	}
	writers.State.AppendFollowUpEvent(p.keys.Next(), logwriter.IntentProcessDeleted, logwriter.ValueTypeProcess, strippedValue)
	return nil
}

func (p *Processor) deleteDecisionRequirements(tx *kv.Transaction, writers *logwriter.Writers, drg records.DrgRecord) error {
	decisions, err := p.resources.FindDecisionsByDrgKey(tx, drg.DrgKey)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		if err := p.resources.DeleteDecision(tx, d); err != nil {
			return err
		}
		writers.State.AppendFollowUpEvent(p.keys.Next(), logwriter.IntentDecisionDeleted, logwriter.ValueTypeDecision, decisionRecordCodec.Encode(d))
	}

	if err := p.resources.DeleteDrg(tx, drg); err != nil {
		return err
	}
	writers.State.AppendFollowUpEvent(p.keys.Next(), logwriter.IntentDecisionRequirementsDeleted, logwriter.ValueTypeDecisionRequirements, drgRecordCodec.Encode(drg))
	return nil
}
