package ledger

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// OrderIDGenerator produces gateway order ids that are unique across processes.
type OrderIDGenerator interface {
	NextOrderID() string
}

// SnowflakeOrderIDs generates time-ordered order ids from a snowflake node.
type SnowflakeOrderIDs struct {
	node   *snowflake.Node
	prefix string
}

// NewSnowflakeOrderIDs creates a generator for the given node (0-1023); every process needs its own node id.
func NewSnowflakeOrderIDs(nodeID int64, prefix string) (*SnowflakeOrderIDs, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: snowflake node: %v", ErrInvalidServiceConfig, err)
	}
	return &SnowflakeOrderIDs{node: node, prefix: prefix}, nil
}

// NextOrderID returns a new order id.
func (generator *SnowflakeOrderIDs) NextOrderID() string {
	return generator.prefix + generator.node.Generate().String()
}
