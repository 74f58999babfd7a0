package ports

import "go.trai.ch/monorun/internal/core/domain"

// ConfigLoader defines the interface for loading the workspace configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds the workspace file starting at cwd and walking up, and returns the parsed workspace.
	Load(cwd string) (*domain.Workspace, error)
}
