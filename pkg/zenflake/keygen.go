package zenflake

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// KeyGenerator allocates monotonically increasing keys scoped to a single
// partition, embedding the partition id in every generated key so
// GetPartitionId can recover it later.
type KeyGenerator struct {
	node *snowflake.Node
}

func NewKeyGenerator(partitionId uint32) (*KeyGenerator, error) {
	node, err := snowflake.NewNode(int64(partitionId))
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node for partition %d: %w", partitionId, err)
	}
	return &KeyGenerator{node: node}, nil
}

func (g *KeyGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
