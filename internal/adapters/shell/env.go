package shell

import (
	"context"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/monorun/internal/core/domain"
)

// Command builds the sh -c invocation of op's command in its project folder.
func Command(ctx context.Context, op *domain.Operation) *exec.Cmd {
	env := resolveEnvironment(os.Environ(), op.Folder, op.Environment)

	shell, err := lookPath("sh", env)
	if err != nil {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", op.Command) //nolint:gosec // user provided command
	cmd.Dir = op.Folder
	cmd.Env = env
	return cmd
}

// resolveEnvironment merges environment variables with the following priority (low to high):
// 1. sysEnv (the invoking process)
// 2. the project's local tool directory, prepended to PATH
// 3. opEnv (operation overrides)
func resolveEnvironment(sysEnv []string, folder string, opEnv map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(opEnv))
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			envMap[k] = v
		}
	}

	if folder != "" {
		localBin := filepath.Join(folder, domain.LocalBinDir)
		if sysPath, exists := envMap["PATH"]; exists && sysPath != "" {
			envMap["PATH"] = localBin + string(os.PathListSeparator) + sysPath
		} else {
			envMap["PATH"] = localBin
		}
	}

	maps.Copy(envMap, opEnv)

	result := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
