// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/monorun/internal/adapters/archive"
	_ "go.trai.ch/monorun/internal/adapters/cas"
	_ "go.trai.ch/monorun/internal/adapters/config"
	_ "go.trai.ch/monorun/internal/adapters/fs"
	_ "go.trai.ch/monorun/internal/adapters/ipc"
	_ "go.trai.ch/monorun/internal/adapters/logger"
	_ "go.trai.ch/monorun/internal/adapters/shell"
	_ "go.trai.ch/monorun/internal/adapters/telemetry"
	_ "go.trai.ch/monorun/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/monorun/internal/app"
)
