// Package config provides the workspace configuration loader for monorun.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// SupportedVersion is the workspace file version this loader understands.
const SupportedVersion = "1"

var validProjectNameRegex = regexp.MustCompile(`^[a-zA-Z0-9@._/-]+$`)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load finds monorun.yaml at cwd or above and returns the resolved workspace.
func (l *Loader) Load(cwd string) (*domain.Workspace, error) {
	configPath, err := findWorkspaceFile(cwd)
	if err != nil {
		return nil, err
	}

	var file Workspacefile
	if err := readAndUnmarshalYAML(configPath, &file); err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)
	env, err := loadEnvironment(root)
	if err != nil {
		return nil, err
	}

	if file.Version != "" && file.Version != SupportedVersion {
		l.warn(fmt.Sprintf("unknown workspace version %q in %s, reading it as version %s",
			file.Version, domain.WorkspaceFileName, SupportedVersion))
	}

	ws := &domain.Workspace{
		Root:        root,
		Parallelism: file.Parallelism,
		Phases:      buildPhases(file.Phases),
	}
	if ws.Parallelism < 0 {
		return nil, zerr.With(domain.ErrInvalidParallelism, "parallelism", ws.Parallelism)
	}
	if ws.Parallelism == 0 {
		ws.Parallelism = runtime.NumCPU()
	}

	ws.Cache = buildCache(root, file.Cache)
	if err := env.applyOverrides(&ws.Cache); err != nil {
		return nil, err
	}

	if err := validatePhases(ws.Phases); err != nil {
		return nil, err
	}

	projects, err := l.buildProjects(root, file.Projects, ws.Phases)
	if err != nil {
		return nil, err
	}
	ws.Projects = projects

	return ws, nil
}

func findWorkspaceFile(cwd string) (string, error) {
	current := cwd
	for {
		candidate := filepath.Join(current, domain.WorkspaceFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
		}
		current = parent
	}
}

func buildPhases(dtos map[string]PhaseDTO) map[string]domain.Phase {
	phases := make(map[string]domain.Phase, len(dtos))
	for name, dto := range dtos {
		phases[name] = domain.Phase{
			Name:          name,
			Self:          dto.Self,
			Upstream:      dto.Upstream,
			AllowWarnings: dto.AllowWarnings,
		}
	}
	return phases
}

func validatePhases(phases map[string]domain.Phase) error {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		phase := phases[name]
		for _, ref := range slices.Concat(phase.Self, phase.Upstream) {
			if _, ok := phases[ref]; !ok {
				return zerr.With(zerr.With(domain.ErrPhaseNotFound, "phase", ref), "referenced_by", name)
			}
		}
	}
	return nil
}

func buildCache(root string, dto *CacheDTO) domain.CacheSettings {
	cache := domain.CacheSettings{
		Enabled:   true,
		LocalPath: filepath.Join(root, domain.DefaultCachePath()),
	}
	if dto == nil {
		return cache
	}

	if dto.Enabled != nil {
		cache.Enabled = *dto.Enabled
	}
	if dto.LocalPath != "" {
		cache.LocalPath = resolvePath(root, dto.LocalPath)
	}
	cache.Prefix = dto.Prefix

	if dto.Cloud != nil {
		useSSL := true
		if dto.Cloud.UseSSL != nil {
			useSSL = *dto.Cloud.UseSSL
		}
		cache.Cloud = &domain.CloudSettings{
			Endpoint:     dto.Cloud.Endpoint,
			Bucket:       dto.Cloud.Bucket,
			Region:       dto.Cloud.Region,
			Prefix:       dto.Cloud.Prefix,
			AccessKey:    dto.Cloud.AccessKey,
			SecretKey:    dto.Cloud.SecretKey,
			UseSSL:       useSSL,
			WriteAllowed: dto.Cloud.WriteAllowed,
		}
	}
	return cache
}

func (l *Loader) buildProjects(
	root string,
	dtos []ProjectDTO,
	phases map[string]domain.Phase,
) ([]domain.Project, error) {
	seen := make(map[string]int, len(dtos))
	projects := make([]domain.Project, 0, len(dtos))

	for i, dto := range dtos {
		if err := validateProjectName(dto.Name, i); err != nil {
			return nil, err
		}
		if first, exists := seen[dto.Name]; exists {
			err := zerr.With(domain.ErrDuplicateProjectName, "project_name", dto.Name)
			err = zerr.With(err, "first_occurrence", first)
			return nil, zerr.With(err, "duplicate_at", i)
		}
		seen[dto.Name] = i

		folder := dto.Folder
		if folder == "" {
			folder = dto.Name
		}
		folder = resolvePath(root, folder)
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			l.warn(fmt.Sprintf("folder of project %s does not exist: %s", dto.Name, folder))
		}

		for phase := range dto.Scripts {
			if _, ok := phases[phase]; !ok {
				l.warn(fmt.Sprintf("project %s has a script for undeclared phase %s", dto.Name, phase))
			}
		}

		projects = append(projects, domain.Project{
			Name:          dto.Name,
			Folder:        folder,
			DependsOn:     dto.DependsOn,
			OutputFolders: cleanOutputFolders(dto.OutputFolders),
			Scripts:       dto.Scripts,
			Persistent:    dto.Persistent,
			DisableCache:  dto.DisableCache,
			Environment:   dto.Environment,
		})
	}

	for _, p := range projects {
		for _, dep := range p.DependsOn {
			if _, ok := seen[dep]; !ok {
				err := zerr.With(domain.ErrMissingDependency, "missing_dependency", dep)
				return nil, zerr.With(err, "project", p.Name)
			}
		}
	}

	return projects, nil
}

func validateProjectName(name string, index int) error {
	if name == "" {
		return zerr.With(domain.ErrMissingProjectName, "index", index)
	}
	if !validProjectNameRegex.MatchString(name) {
		return zerr.With(domain.ErrInvalidProjectName, "project_name", name)
	}
	return nil
}

// cleanOutputFolders sorts and deduplicates output folders so the cache key does not
// depend on declaration order.
func cleanOutputFolders(folders []string) []string {
	if len(folders) == 0 {
		return nil
	}
	cleaned := make([]string, len(folders))
	for i, f := range folders {
		cleaned[i] = filepath.Clean(f)
	}
	slices.Sort(cleaned)
	return slices.Compact(cleaned)
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(root, path))
}

func (l *Loader) warn(msg string) {
	if l.Logger != nil {
		l.Logger.Warn(msg)
	}
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is found by walking up from the working directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", configPath)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", configPath)
	}
	return nil
}
