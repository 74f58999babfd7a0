package domain

import "go.trai.ch/zerr"

var (
	// ErrOperationAlreadyExists is returned when two operations share a name.
	ErrOperationAlreadyExists = zerr.New("operation already exists")

	// ErrMissingDependency is returned when an operation or project references a dependency that doesn't exist.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the operation graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrOperationNotFound is returned when a requested operation is not part of the graph.
	ErrOperationNotFound = zerr.New("operation not found")

	// ErrProjectNotFound is returned when a selected project is not declared in the workspace.
	ErrProjectNotFound = zerr.New("project not found")

	// ErrPhaseNotFound is returned when the requested phase is not declared in the workspace.
	ErrPhaseNotFound = zerr.New("phase not found")

	// ErrMissingProjectName is returned when a project entry has no name.
	ErrMissingProjectName = zerr.New("missing project name")

	// ErrInvalidProjectName is returned when a project name is invalid.
	ErrInvalidProjectName = zerr.New("project name can only contain alphanumeric characters, dots, slashes, at signs, hyphens and underscores")

	// ErrDuplicateProjectName is returned when multiple projects share the same name in a workspace.
	ErrDuplicateProjectName = zerr.New("duplicate project name")

	// ErrNoPhaseSpecified is returned when run is invoked without a phase.
	ErrNoPhaseSpecified = zerr.New("no phase specified")

	// ErrOutputPathOutsideRoot is returned when an output folder escapes its project folder.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside project root")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when the build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when the build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when the build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when the build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when the config file cannot be found.
	ErrConfigNotFound = zerr.New("could not find monorun.yaml")

	// ErrInvalidParallelism is returned when the configured parallelism is negative.
	ErrInvalidParallelism = zerr.New("parallelism must not be negative")

	// ErrInvalidEnvOverride is returned when an environment override holds an unparsable value.
	ErrInvalidEnvOverride = zerr.New("invalid environment override")

	// ErrBuildExecutionFailed is returned when at least one operation failed or was blocked.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrOperationFailed is returned when a single operation ends in Failure.
	ErrOperationFailed = zerr.New("operation failed")

	// ErrOperationBlocked is returned for operations that never ran because a dependency failed.
	ErrOperationBlocked = zerr.New("operation blocked by failed dependency")

	// ErrRunnerUnavailable is returned when no runner is registered for an operation's runner kind.
	ErrRunnerUnavailable = zerr.New("no runner for operation")

	// ErrCommandFailed is returned when a command exits with a nonzero code.
	ErrCommandFailed = zerr.New("command failed")

	// ErrStderrOutput is returned when a command wrote to stderr and warnings are not allowed.
	ErrStderrOutput = zerr.New("command wrote to stderr")

	// ErrCacheReadFailed is returned when a cache tier cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheWriteFailed is returned when a cache tier cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCloudConfigInvalid is returned when the cloud cache tier is enabled but incomplete.
	ErrCloudConfigInvalid = zerr.New("invalid cloud cache configuration")

	// ErrSymlinkInOutput is returned when an output folder contains a symbolic link.
	ErrSymlinkInOutput = zerr.New("symbolic link in output folder")

	// ErrArchivePackFailed is returned when output folders cannot be packed.
	ErrArchivePackFailed = zerr.New("failed to pack outputs")

	// ErrArchiveUnpackFailed is returned when a cache blob cannot be restored.
	ErrArchiveUnpackFailed = zerr.New("failed to unpack outputs")

	// ErrArchiveUnsafePath is returned when an archive entry would land outside the destination.
	ErrArchiveUnsafePath = zerr.New("archive entry escapes destination")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrProcessStartFailed is returned when a runner cannot spawn its process.
	ErrProcessStartFailed = zerr.New("failed to start process")

	// ErrProtocolViolation is returned when a worker sends something the runner cannot interpret.
	ErrProtocolViolation = zerr.New("ipc protocol violation")

	// ErrWorkerDisconnected is returned when a worker closes its channel before reporting a result.
	ErrWorkerDisconnected = zerr.New("ipc worker disconnected")

	// ErrWorkerExited is returned when a worker process exits with a nonzero code.
	ErrWorkerExited = zerr.New("ipc worker exited")

	// ErrIPCUnsupported is returned on platforms without socket pairs.
	ErrIPCUnsupported = zerr.New("ipc runner is not supported on this platform")
)
