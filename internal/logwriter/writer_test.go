package logwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateWriterAppendsInOrder(t *testing.T) {
	builder := NewBuilder(1)
	writers := builder.ConfigureSourceContext(100, false)

	writers.State.AppendFollowUpEvent(10, IntentProcessDeleting, ValueTypeProcess, []byte("a"))
	writers.State.AppendFollowUpEvent(11, IntentProcessDeleted, ValueTypeProcess, []byte("b"))

	events := writers.Events()
	require.Len(t, events, 2)
	assert.Equal(t, IntentProcessDeleting, events[0].Intent)
	assert.Equal(t, IntentProcessDeleted, events[1].Intent)
	assert.Equal(t, int64(100), events[0].SourceRecordPosition)
	assert.Equal(t, uint32(1), events[0].PartitionId)
}

func TestConfigureSourceContextIsolatesBuffersPerCommand(t *testing.T) {
	builder := NewBuilder(1)

	first := builder.ConfigureSourceContext(100, false)
	first.State.AppendFollowUpEvent(1, IntentProcessDeleting, ValueTypeProcess, nil)

	second := builder.ConfigureSourceContext(200, false)
	second.State.AppendFollowUpEvent(2, IntentProcessDeleted, ValueTypeProcess, nil)

	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
	assert.Equal(t, int64(100), first.Events()[0].SourceRecordPosition)
	assert.Equal(t, int64(200), second.Events()[0].SourceRecordPosition)
}

func TestResponseWriterOverwritesPriorResponse(t *testing.T) {
	writers := NewBuilder(1).ConfigureSourceContext(100, false)

	writers.Response.WriteEventOnCommand(5, IntentDeleteResource, ValueTypeResourceDeletion, []byte("x"))
	writers.Response.WriteRejectionOnCommand(5, RejectionNotFound, "no such resource")

	response, found := writers.PendingResponse()
	require.True(t, found)
	assert.Equal(t, RecordTypeRejection, response.RecordType)
	assert.Equal(t, RejectionNotFound, response.RejectionKind)
}

func TestPendingResponseAbsentWhenNeverWritten(t *testing.T) {
	writers := NewBuilder(1).ConfigureSourceContext(100, true)
	_, found := writers.PendingResponse()
	assert.False(t, found)
}

func TestDistributedFlagPropagatesToEvents(t *testing.T) {
	writers := NewBuilder(1).ConfigureSourceContext(100, true)
	writers.State.AppendFollowUpEvent(1, IntentProcessDeleting, ValueTypeProcess, nil)
	require.Len(t, writers.Events(), 1)
	assert.True(t, writers.Events()[0].Distributed)
}

type recordingAppender struct {
	appended []Record
}

func (a *recordingAppender) Append(records []Record) error {
	a.appended = append(a.appended, records...)
	return nil
}

func TestFlushAppendsEventsBeforeRejections(t *testing.T) {
	writers := NewBuilder(1).ConfigureSourceContext(100, false)
	writers.State.AppendFollowUpEvent(1, IntentProcessDeleting, ValueTypeProcess, nil)
	writers.Rejection.AppendRejection(2, RejectionInvalidState, "still running")
	writers.State.AppendFollowUpEvent(3, IntentProcessDeleted, ValueTypeProcess, nil)

	appender := &recordingAppender{}
	require.NoError(t, writers.Flush(appender))

	require.Len(t, appender.appended, 3)
	assert.Equal(t, RecordTypeEvent, appender.appended[0].RecordType)
	assert.Equal(t, RecordTypeEvent, appender.appended[1].RecordType)
	assert.Equal(t, RecordTypeRejection, appender.appended[2].RecordType)
}

func TestFlushNoopWhenNothingBuffered(t *testing.T) {
	writers := NewBuilder(1).ConfigureSourceContext(100, false)
	appender := &recordingAppender{}
	require.NoError(t, writers.Flush(appender))
	assert.Empty(t, appender.appended)
}
