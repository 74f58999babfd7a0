package shell

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the shell runner Graft node.
const NodeID graft.ID = "adapter.runner.shell"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{},
		Run: func(_ context.Context) (*Runner, error) {
			return NewRunner(), nil
		},
	})
}
