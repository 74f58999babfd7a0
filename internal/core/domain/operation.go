package domain

// RunnerKind selects how an operation's command is executed.
type RunnerKind uint8

const (
	// RunnerShell runs the command once through the platform shell.
	RunnerShell RunnerKind = iota
	// RunnerIPC runs the command as a worker that talks to the executor over an IPC channel.
	RunnerIPC
)

func (k RunnerKind) String() string {
	if k == RunnerIPC {
		return "ipc"
	}
	return "shell"
}

// Operation is the unit of work in a build: one phase of one project.
type Operation struct {
	Name          InternedString
	Project       string
	Phase         string
	Folder        string
	Command       string
	OutputFolders []string
	Dependencies  []InternedString
	Environment   map[string]string
	Runner        RunnerKind
	Cacheable     bool
	AllowWarnings bool
}

// OperationName returns the stable name of the operation for project and phase.
func OperationName(project, phase string) string {
	return project + " (" + phase + ")"
}

// ProjectRef identifies the project an operation belongs to for fingerprinting.
// Excludes lists folders (relative to Folder) that never contribute to the fingerprint.
type ProjectRef struct {
	Name     string
	Folder   string
	Excludes []string
}

// ProjectRef returns the fingerprint reference for the operation's project.
func (o *Operation) ProjectRef() ProjectRef {
	return ProjectRef{
		Name:     o.Project,
		Folder:   o.Folder,
		Excludes: o.OutputFolders,
	}
}

// RunResult is what a runner reports for one invocation.
type RunResult struct {
	Status   OperationStatus
	ExitCode int
	// Output holds the combined captured stdout and stderr.
	Output string
	Err    error
}
