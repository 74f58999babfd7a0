package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/monorun/internal/adapters/archive"   //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/ipc"       //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			fs.StateNodeID,
			fs.HasherNodeID,
			cas.NodeID,
			archive.NodeID,
			shell.NodeID,
			ipc.NodeID,
			watcher.NodeID,
			telemetry.BridgeNodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewComponents(app, log), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	var (
		deps Dependencies
		err  error
	)

	if deps.ConfigLoader, err = graft.Dep[ports.ConfigLoader](ctx); err != nil {
		return nil, err
	}
	if deps.Logger, err = graft.Dep[ports.Logger](ctx); err != nil {
		return nil, err
	}
	if deps.State, err = graft.Dep[ports.ProjectStateProvider](ctx); err != nil {
		return nil, err
	}
	if deps.Hasher, err = graft.Dep[ports.OutputHasher](ctx); err != nil {
		return nil, err
	}
	if deps.Store, err = graft.Dep[ports.BuildInfoStore](ctx); err != nil {
		return nil, err
	}
	if deps.Archive, err = graft.Dep[ports.ArchiveCodec](ctx); err != nil {
		return nil, err
	}
	if deps.Shell, err = graft.Dep[*shell.Runner](ctx); err != nil {
		return nil, err
	}
	if deps.IPC, err = graft.Dep[*ipc.Runner](ctx); err != nil {
		return nil, err
	}
	if deps.Watcher, err = graft.Dep[ports.Watcher](ctx); err != nil {
		return nil, err
	}
	if deps.Bridge, err = graft.Dep[*telemetry.Bridge](ctx); err != nil {
		return nil, err
	}

	return New(deps), nil
}
