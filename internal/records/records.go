// Package records defines the MessagePack-encoded payloads carried by
// process, decision and DRG events and by the column families that persist
// them.
package records

// ProcessState marks whether a process definition is serving traffic or
// has been rejected for immediate removal pending its last instance.
type ProcessState int8

const (
	ProcessStateActive ProcessState = iota
	ProcessStatePendingDeletion
)

// ProcessRecord is the persisted and wire form of a deployed process
// definition.
type ProcessRecord struct {
	BpmnProcessId string       `msgpack:"bpmnProcessId"`
	Version       int32        `msgpack:"version"`
	Key           int64        `msgpack:"key"`
	ResourceName  string       `msgpack:"resourceName"`
	Checksum      []byte       `msgpack:"checksum,omitempty"`
	Resource      []byte       `msgpack:"resource,omitempty"`
	State         ProcessState `msgpack:"state"`
}

// WithoutResource returns a copy of r with Resource and Checksum cleared,
// used for the DELETING event so it doesn't carry the full resource bytes
// a second time.
func (r ProcessRecord) WithoutResource() ProcessRecord {
	r.Checksum = nil
	r.Resource = nil
	return r
}

// DecisionRecord is the persisted and wire form of a single decision
// within a DRG.
type DecisionRecord struct {
	DecisionId   string `msgpack:"decisionId"`
	DecisionName string `msgpack:"decisionName"`
	Version      int32  `msgpack:"version"`
	DecisionKey  int64  `msgpack:"decisionKey"`
	DrgId        string `msgpack:"drgId"`
	DrgKey       int64  `msgpack:"drgKey"`
}

// DrgRecord is the persisted and wire form of a decision requirements
// graph.
type DrgRecord struct {
	DrgId        string `msgpack:"drgId"`
	DrgName      string `msgpack:"drgName"`
	DrgVersion   int32  `msgpack:"drgVersion"`
	DrgKey       int64  `msgpack:"drgKey"`
	ResourceName string `msgpack:"resourceName"`
	Checksum     []byte `msgpack:"checksum"`
	Resource     []byte `msgpack:"resource"`
}

// DeleteResourceCommand is the inbound command payload: it carries only
// the key of the resource to delete, letting the processor figure out
// whether it names a process or a DRG.
type DeleteResourceCommand struct {
	ResourceKey int64 `msgpack:"resourceKey"`
}
