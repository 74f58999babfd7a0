package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/monorun/internal/core/ports"
)

const (
	// WalkerNodeID is the Graft node for the file walker.
	WalkerNodeID graft.ID = "adapter.fs.walker"
	// HasherNodeID is the Graft node for the output hasher.
	HasherNodeID graft.ID = "adapter.fs.hasher"
	// StateNodeID is the Graft node for the project state provider.
	StateNodeID graft.ID = "adapter.fs.state"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[ports.OutputHasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (ports.OutputHasher, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewHasher(walker), nil
		},
	})

	graft.Register(graft.Node[ports.ProjectStateProvider]{
		ID:        StateNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (ports.ProjectStateProvider, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			provider, err := NewStateProvider(NewHasher(walker), DefaultStateCacheSize)
			if err != nil {
				return nil, err
			}
			return provider, nil
		},
	})
}
