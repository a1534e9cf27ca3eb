package state

// Cluster keeps track of the cluster state and holds
// information about currently active partition and Nodes in the cluster.
// +k8s:deepcopy-gen=true
type Cluster struct {
	// Config stores desired cluster configuration. At the start of the cluster its picked up from app configuration and later updated by calling GRPC API.
	Config ClusterConfig `json:"clusterConfig"`
	// Partitions stores current cluster partition state
	Partitions map[uint32]Partition `json:"partitions"`
	// Nodes stores information about current cluster members
	Nodes map[string]Node `json:"nodes"`
}

// GetPartitionIdFromString Simple hash function to assign partition id to any str string
func (c Cluster) GetPartitionIdFromString(str string) uint32 {
	if len(c.Partitions) == 0 {
		return 0
	}
	var bitSum uint32 = 0
	for _, character := range str {
		bitSum = bitSum + uint32(character)
	}
	return bitSum%uint32(len(c.Partitions)) + 1
}

// +k8s:deepcopy-gen=true
type ClusterConfig struct {
	DesiredPartitions uint32 `json:"desiredPartitions"`
	// Version           int    `json:"version"`
}

// +k8s:deepcopy-gen=true
type Partition struct {
	Id       uint32 `json:"id"`
	LeaderId string `json:"leaderId"`
}

//go:generate go tool stringer -type=NodeState
type NodeState int32

const (
	_ NodeState = iota
	// node is in an error state
	NodeStateError
	// node is active
	NodeStateStarted
	// node is not activated
	NodeStateShutdown
)

//go:generate go tool stringer -type=Role
type Role int32

const (
	_ Role = iota
	RoleFollower
	RoleLeader
)

//go:generate go tool stringer -type=NodePartitionState
type NodePartitionState int32

const (
	_ NodePartitionState = iota
	NodePartitionStateError
	NodePartitionStateJoining
	NodePartitionStateLeaving
	NodePartitionStateInitializing
	NodePartitionStateInitialized
)

// Suffrage marks whether a node participates in the partition's
// replicated-log membership (voter) or only receives a mirrored copy of
// the log (nonvoter).
type Suffrage int32

const (
	Voter Suffrage = iota
	Nonvoter
)

// Node holds the information about a cluster member's identity, its state
// in the zen cluster and assigned partitions.
// +k8s:deepcopy-gen=true
type Node struct {
	Id         string                   `json:"id"`
	Addr       string                   `json:"addr"`
	Suffrage   Suffrage                 `json:"suffrage"`
	State      NodeState                `json:"state"`
	Role       Role                     `json:"role"`
	Partitions map[uint32]NodePartition `json:"partitions"`
	// TODO: add zones
}

type NodePartition struct {
	Id    uint32             `json:"id"`
	State NodePartitionState `json:"state"`
	// role of a node in partition group
	Role Role `json:"role"`
}

// Nodes is a set of Nodes.
type Nodes []Node
