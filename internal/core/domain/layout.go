package domain

import "path/filepath"

const (
	// StateDirName is the name of the internal workspace directory.
	StateDirName = ".monorun"

	// StoreDirName is the name of the build info directory.
	StoreDirName = "state"

	// CacheDirName is the name of the local build cache directory.
	CacheDirName = "cache"

	// WorkspaceFileName is the name of the workspace configuration file.
	WorkspaceFileName = "monorun.yaml"

	// EnvFileName is the dotenv file loaded next to the workspace file.
	EnvFileName = ".env"

	// LocalBinDir is prepended to PATH for every operation, relative to the project folder.
	LocalBinDir = "node_modules/.bin"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultStorePath returns the default path for build info records.
// It joins .monorun and state.
func DefaultStorePath() string {
	return filepath.Join(StateDirName, StoreDirName)
}

// DefaultCachePath returns the default path for the local build cache.
// It joins .monorun and cache.
func DefaultCachePath() string {
	return filepath.Join(StateDirName, CacheDirName)
}
