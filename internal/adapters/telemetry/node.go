package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/monorun/internal/adapters/logger"
	"go.trai.ch/monorun/internal/core/ports"
)

// BridgeNodeID is the unique identifier for the span bridge Graft node.
const BridgeNodeID graft.ID = "adapter.telemetry.bridge"

func init() {
	graft.Register(graft.Node[*Bridge]{
		ID:        BridgeNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Bridge, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewBridge(log), nil
		},
	})
}
