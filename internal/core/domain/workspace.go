package domain

import (
	"cmp"
	"path/filepath"
	"slices"

	"go.trai.ch/zerr"
)

// Project is one package of the monorepo.
type Project struct {
	Name          string
	Folder        string
	DependsOn     []string
	OutputFolders []string
	Scripts       map[string]string
	Persistent    []string
	DisableCache  []string
	Environment   map[string]string
}

// Phase describes which other operations must finish before the phase runs.
// Self names phases of the same project, Upstream names phases of dependency projects.
type Phase struct {
	Name          string
	Self          []string
	Upstream      []string
	AllowWarnings bool
}

// CloudSettings configures the network cache tier.
type CloudSettings struct {
	Endpoint     string
	Bucket       string
	Region       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	WriteAllowed bool
}

// CacheSettings configures the build cache.
type CacheSettings struct {
	Enabled   bool
	LocalPath string
	Prefix    string
	Cloud     *CloudSettings
}

// Workspace is the loaded workspace configuration.
type Workspace struct {
	Root        string
	Parallelism int
	Cache       CacheSettings
	Phases      map[string]Phase
	Projects    []Project
}

// Project returns the project with the given name.
func (w *Workspace) Project(name string) (*Project, bool) {
	for i := range w.Projects {
		if w.Projects[i].Name == name {
			return &w.Projects[i], true
		}
	}
	return nil, false
}

type phaseKey struct {
	project string
	phase   string
}

// BuildGraph expands phase for the selected projects into a validated operation graph.
// An empty selection means every project. Each selected project pulls in its
// transitive dependencies through the phase's Self and Upstream edges.
func (w *Workspace) BuildGraph(phase string, selection []string) (*Graph, error) {
	if _, ok := w.Phases[phase]; !ok {
		return nil, zerr.With(ErrPhaseNotFound, "phase", phase)
	}

	projectIndex := make(map[string]int, len(w.Projects))
	for i, p := range w.Projects {
		projectIndex[p.Name] = i
	}

	if len(selection) == 0 {
		selection = make([]string, 0, len(w.Projects))
		for _, p := range w.Projects {
			selection = append(selection, p.Name)
		}
	}

	queue := make([]phaseKey, 0, len(selection))
	for _, name := range selection {
		if _, ok := projectIndex[name]; !ok {
			return nil, zerr.With(ErrProjectNotFound, "project", name)
		}
		queue = append(queue, phaseKey{project: name, phase: phase})
	}

	seen := make(map[phaseKey]bool)
	var discovered []phaseKey
	deps := make(map[phaseKey][]phaseKey)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		discovered = append(discovered, current)

		edges, err := w.phaseEdges(current, projectIndex)
		if err != nil {
			return nil, err
		}
		deps[current] = edges
		queue = append(queue, edges...)
	}

	// Projects keep their declaration order; phases of one project keep discovery order.
	slices.SortStableFunc(discovered, func(a, b phaseKey) int {
		return cmp.Compare(projectIndex[a.project], projectIndex[b.project])
	})

	g := NewGraph()
	g.SetRoot(w.Root)
	for _, key := range discovered {
		op := w.newOperation(&w.Projects[projectIndex[key.project]], key, deps[key])
		if err := g.AddOperation(op); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (w *Workspace) phaseEdges(key phaseKey, projectIndex map[string]int) ([]phaseKey, error) {
	def, ok := w.Phases[key.phase]
	if !ok {
		return nil, zerr.With(zerr.With(ErrPhaseNotFound, "phase", key.phase), "project", key.project)
	}

	project := &w.Projects[projectIndex[key.project]]
	edges := make([]phaseKey, 0, len(def.Self)+len(def.Upstream)*len(project.DependsOn))
	for _, self := range def.Self {
		edges = append(edges, phaseKey{project: key.project, phase: self})
	}
	for _, upstream := range def.Upstream {
		for _, dep := range project.DependsOn {
			if _, ok := projectIndex[dep]; !ok {
				return nil, zerr.With(
					zerr.With(ErrMissingDependency, "dependency", dep),
					"project", key.project,
				)
			}
			edges = append(edges, phaseKey{project: dep, phase: upstream})
		}
	}
	return edges, nil
}

func (w *Workspace) newOperation(project *Project, key phaseKey, edges []phaseKey) *Operation {
	depNames := make([]InternedString, len(edges))
	for i, e := range edges {
		depNames[i] = NewInternedString(OperationName(e.project, e.phase))
	}

	runner := RunnerShell
	if slices.Contains(project.Persistent, key.phase) {
		runner = RunnerIPC
	}

	folder := project.Folder
	if !filepath.IsAbs(folder) {
		folder = filepath.Join(w.Root, folder)
	}

	return &Operation{
		Name:          NewInternedString(OperationName(key.project, key.phase)),
		Project:       key.project,
		Phase:         key.phase,
		Folder:        folder,
		Command:       project.Scripts[key.phase],
		OutputFolders: project.OutputFolders,
		Dependencies:  depNames,
		Environment:   project.Environment,
		Runner:        runner,
		Cacheable:     !slices.Contains(project.DisableCache, key.phase),
		AllowWarnings: w.Phases[key.phase].AllowWarnings,
	}
}
