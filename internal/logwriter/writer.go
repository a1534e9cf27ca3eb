package logwriter

// buffer accumulates the records a single command produces. It is shared
// by the three writer facades below so a StateWriter append and a
// ResponseWriter write end up in the same pending batch, flushed together
// once the owning transaction commits.
type buffer struct {
	partitionId          uint32
	sourceRecordPosition int64
	distributed          bool

	events     []Record
	rejections []Record
	response   *Record
}

// Builder mints a fresh Writers bundle per command, configured with that
// command's source position the way a stream processor's RecordsBuilder
// does before handing control to a processor.
type Builder struct {
	partitionId uint32
}

func NewBuilder(partitionId uint32) *Builder {
	return &Builder{partitionId: partitionId}
}

// ConfigureSourceContext returns a Writers bundle bound to sourceRecordPosition.
func (b *Builder) ConfigureSourceContext(sourceRecordPosition int64, distributed bool) *Writers {
	buf := &buffer{
		partitionId:          b.partitionId,
		sourceRecordPosition: sourceRecordPosition,
		distributed:          distributed,
	}
	return &Writers{
		buf:       buf,
		State:     StateWriter{buf: buf},
		Rejection: RejectionWriter{buf: buf},
		Response:  ResponseWriter{buf: buf},
	}
}

// Writers bundles the three sibling writers a processor uses, all backed
// by the same pending buffer.
type Writers struct {
	buf       *buffer
	State     StateWriter
	Rejection RejectionWriter
	Response  ResponseWriter
}

// Events returns the buffered follow-up events, in append order.
func (w *Writers) Events() []Record { return w.buf.events }

// Rejections returns the buffered rejection records, in append order.
func (w *Writers) Rejections() []Record { return w.buf.rejections }

// PendingResponse returns the buffered client response, if any was written.
func (w *Writers) PendingResponse() (Record, bool) {
	if w.buf.response == nil {
		return Record{}, false
	}
	return *w.buf.response, true
}

// StateWriter appends follow-up events: durable, authoritative for replay.
type StateWriter struct {
	buf *buffer
}

func (s StateWriter) AppendFollowUpEvent(key int64, intent Intent, valueType ValueType, value []byte) {
	s.buf.events = append(s.buf.events, Record{
		Key:                  key,
		SourceRecordPosition: s.buf.sourceRecordPosition,
		RecordType:           RecordTypeEvent,
		Intent:               intent,
		ValueType:            valueType,
		PartitionId:          s.buf.partitionId,
		Distributed:          s.buf.distributed,
		Value:                value,
	})
}

// RejectionWriter records a refusal in the log, distinct from the response
// a client sees: the rejection is the durable record, the response is
// best-effort delivery.
type RejectionWriter struct {
	buf *buffer
}

func (r RejectionWriter) AppendRejection(commandKey int64, kind RejectionKind, message string) {
	r.buf.rejections = append(r.buf.rejections, Record{
		Key:                  commandKey,
		SourceRecordPosition: r.buf.sourceRecordPosition,
		RecordType:           RecordTypeRejection,
		PartitionId:          r.buf.partitionId,
		RejectionKind:        kind,
		RejectionMessage:     message,
	})
}

// ResponseWriter buffers a single response delivered to the originating
// client once the transaction commits. Distributed commands never write a
// response: there is no client waiting on a peer partition.
type ResponseWriter struct {
	buf *buffer
}

func (r ResponseWriter) WriteEventOnCommand(key int64, intent Intent, valueType ValueType, value []byte) {
	r.buf.response = &Record{
		Key:                  key,
		SourceRecordPosition: r.buf.sourceRecordPosition,
		RecordType:           RecordTypeEvent,
		Intent:               intent,
		ValueType:            valueType,
		PartitionId:          r.buf.partitionId,
		Value:                value,
	}
}

func (r ResponseWriter) WriteRejectionOnCommand(commandKey int64, kind RejectionKind, message string) {
	r.buf.response = &Record{
		Key:                  commandKey,
		SourceRecordPosition: r.buf.sourceRecordPosition,
		RecordType:           RecordTypeRejection,
		RejectionKind:        kind,
		RejectionMessage:     message,
	}
}
