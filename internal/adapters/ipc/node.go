package ipc

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the worker runner Graft node.
const NodeID graft.ID = "adapter.runner.ipc"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Runner, error) {
			return NewRunner(), nil
		},
	})
}
