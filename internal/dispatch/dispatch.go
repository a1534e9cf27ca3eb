// Package dispatch binds intents to processors and routes newly received
// records to processNew versus processDistributed, classifying any error
// a processor raises into expected-vs-unexpected before deciding whether
// the partition can continue.
package dispatch

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pbinitiative/resourced/internal/deletion"
	"github.com/pbinitiative/resourced/internal/kv"
	"github.com/pbinitiative/resourced/internal/logwriter"
	"github.com/pbinitiative/resourced/internal/records"
)

// ErrorOutcome is what the dispatcher reports back to its caller after an
// uncaught processor error: continue processing the log, or halt and
// report a crash so the supervising layer can recover from it.
type ErrorOutcome int

const (
	OutcomeExpectedError ErrorOutcome = iota
	OutcomeUnexpectedError
)

// InboundRecord is the envelope a record is read from the log as, before
// dispatch decides which processor handles it and how.
type InboundRecord struct {
	Key                  int64
	SourceRecordPosition int64
	RecordType           logwriter.RecordType
	Intent               logwriter.Intent
	ValueType            logwriter.ValueType
	PartitionId          uint32
	Distributed          bool
	Value                []byte
}

var deleteCommandCodec = kv.MsgpackCodec[records.DeleteResourceCommand]{}

// Dispatcher routes inbound command records to the processor bound to
// their intent, and classifies any error that escapes processing.
type Dispatcher struct {
	deletionProcessor *deletion.Processor
	logger            hclog.Logger
}

func NewDispatcher(deletionProcessor *deletion.Processor, logger hclog.Logger) *Dispatcher {
	return &Dispatcher{deletionProcessor: deletionProcessor, logger: logger.Named("dispatch")}
}

// Dispatch routes rec to its bound processor, distinguishing a newly
// received command from one replayed via cross-partition distribution by
// the Distributed flag on the envelope. The returned Record is the
// buffered client response the processor produced, if any, so a caller
// can actually deliver it; found is false when no response was written
// (every distributed command, or any record type this dispatcher failed
// to route).
func (d *Dispatcher) Dispatch(rec InboundRecord) (ErrorOutcome, logwriter.Record, bool, error) {
	if rec.RecordType != logwriter.RecordTypeCommand {
		return OutcomeUnexpectedError, logwriter.Record{}, false, fmt.Errorf("dispatch: record %d is not a command", rec.Key)
	}

	switch rec.Intent {
	case logwriter.IntentDeleteResource:
		return d.dispatchDeleteResource(rec)
	default:
		return OutcomeUnexpectedError, logwriter.Record{}, false, fmt.Errorf("dispatch: no processor bound for intent %q", rec.Intent)
	}
}

func (d *Dispatcher) dispatchDeleteResource(rec InboundRecord) (ErrorOutcome, logwriter.Record, bool, error) {
	cmd, err := deleteCommandCodec.Decode(rec.Value)
	if err != nil {
		return OutcomeUnexpectedError, logwriter.Record{}, false, err
	}

	var response logwriter.Record
	var found bool
	var procErr error
	if rec.Distributed {
		// rec.PartitionId carries the partition that originated this
		// distributed command, so the ack this processor sends on success
		// routes back to it rather than to this (receiving) partition.
		response, found, procErr = d.deletionProcessor.ProcessDistributedCommand(rec.Key, rec.PartitionId, cmd, rec.SourceRecordPosition)
	} else {
		response, found, procErr = d.deletionProcessor.ProcessNewCommand(cmd, rec.SourceRecordPosition)
	}
	if procErr == nil {
		return OutcomeExpectedError, response, found, nil
	}

	outcome, handleErr := d.tryHandleError(procErr)
	return outcome, logwriter.Record{}, false, handleErr
}

// tryHandleError classifies a processor error the way the processor
// itself already did via deletion.Classify. Dispatch never writes a
// rejection or response itself: the processor writes NOT_FOUND and
// INVALID_STATE rejections on its own and returns no error for them, and
// an error it does return comes with nothing flushed. This only decides
// whether the partition can continue past this command.
func (d *Dispatcher) tryHandleError(err error) (ErrorOutcome, error) {
	if deletion.Classify(err) == deletion.ExpectedError {
		return OutcomeExpectedError, nil
	}
	d.logger.Error("unexpected error processing command, halting partition", "error", err)
	return OutcomeUnexpectedError, err
}
