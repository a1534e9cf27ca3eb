// Package distribution fans a locally applied command out to every peer
// partition and tracks acknowledgements so the originator can retry until
// every peer has applied it exactly once.
package distribution

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/pbinitiative/resourced/internal/cluster/state"
)

// PeerTransport is the out-of-scope RPC collaborator a concrete
// distribution implementation sends distributed commands and
// acknowledgements over. Only this seam is in scope here; the wire
// implementation (gRPC) lives outside this subsystem.
type PeerTransport interface {
	SendCommand(partitionId uint32, commandKey int64, distributed Command) error
	SendAck(partitionId uint32, commandKey int64) error
}

// Command is the payload forwarded to a peer: enough to replay the
// original command deterministically at the same key.
type Command struct {
	Key                  int64
	OriginatingPartition uint32
	Intent               string
	ValueType            string
	Value                []byte
}

// PendingAck is the bookkeeping record kept in the Ledger until every peer
// partition has acknowledged a distributed command.
type PendingAck struct {
	CommandKey   int64
	TargetPartitions []uint32
	Acked        map[uint32]bool
}

func (p *PendingAck) IsSatisfied() bool {
	for _, target := range p.TargetPartitions {
		if !p.Acked[target] {
			return false
		}
	}
	return true
}

// Ledger tracks pending acknowledgements in memory only. Nothing in this
// subsystem writes it to the store, so the pending set does not survive a
// restart.
type Ledger struct {
	logger  hclog.Logger
	pending map[int64]*PendingAck
}

func NewLedger(logger hclog.Logger) *Ledger {
	return &Ledger{logger: logger.Named("distribution"), pending: make(map[int64]*PendingAck)}
}

// Distributor sends a command to every peer partition with a deterministic
// fan-out order and records a pending-ack entry for the originator to
// retry against until every peer has acknowledged.
type Distributor struct {
	ownPartition uint32
	cluster      *state.Cluster
	transport    PeerTransport
	ledger       *Ledger
	logger       hclog.Logger
}

func NewDistributor(ownPartition uint32, cluster *state.Cluster, transport PeerTransport, logger hclog.Logger) *Distributor {
	return &Distributor{
		ownPartition: ownPartition,
		cluster:      cluster,
		transport:    transport,
		ledger:       NewLedger(logger),
		logger:       logger.Named("distributor"),
	}
}

// peerPartitions returns every partition id other than our own, in
// ascending order: stable partition metadata, never wall-clock or map
// iteration order, so the fan-out is identical on every replica.
func (d *Distributor) peerPartitions() []uint32 {
	peers := make([]uint32, 0, len(d.cluster.Partitions))
	for id := range d.cluster.Partitions {
		if id != d.ownPartition {
			peers = append(peers, id)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// DistributeCommand schedules one copy of command per peer partition,
// keyed by the same deterministic key K the originator applied it at, and
// records a pending-ack entry retained until every peer has acknowledged.
func (d *Distributor) DistributeCommand(key int64, command Command) error {
	peers := d.peerPartitions()
	ack := &PendingAck{CommandKey: key, TargetPartitions: peers, Acked: make(map[uint32]bool, len(peers))}
	d.ledger.pending[key] = ack
	for _, partitionId := range peers {
		if err := d.transport.SendCommand(partitionId, key, command); err != nil {
			d.logger.Warn("failed to send distributed command, will retry", "partition", partitionId, "key", key, "error", err)
			continue
		}
	}
	return nil
}

// AcknowledgeCommand is called by a peer after it applies a distributed
// command at the same key, sending the ack back to the partition that
// originated the command rather than this peer's own partition; it never
// produces a client response.
func (d *Distributor) AcknowledgeCommand(key int64, originatingPartition uint32) error {
	return d.transport.SendAck(originatingPartition, key)
}

// OnAckReceived is invoked on the originator when a peer's ack arrives. The
// pending-ack record is discarded once every peer has acked.
func (d *Distributor) OnAckReceived(key int64, fromPartition uint32) error {
	ack, ok := d.ledger.pending[key]
	if !ok {
		return nil
	}
	ack.Acked[fromPartition] = true
	if ack.IsSatisfied() {
		delete(d.ledger.pending, key)
	}
	return nil
}

// RetryUnacknowledged resends every pending command that hasn't been fully
// acknowledged yet, in ascending key order for determinism. It runs only
// when a caller invokes it; no startup or periodic caller is wired in this
// subsystem.
func (d *Distributor) RetryUnacknowledged(resend func(key int64, target uint32) error) error {
	keys := make([]int64, 0, len(d.ledger.pending))
	for k := range d.ledger.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		ack := d.ledger.pending[key]
		for _, target := range ack.TargetPartitions {
			if ack.Acked[target] {
				continue
			}
			if err := resend(key, target); err != nil {
				return fmt.Errorf("failed to retry distributed command %d to partition %d: %w", key, target, err)
			}
		}
	}
	return nil
}

// Pending exposes the current pending-ack set for persistence by the
// caller; distribution itself does not own durability.
func (d *Distributor) Pending() map[int64]*PendingAck {
	return d.ledger.pending
}
