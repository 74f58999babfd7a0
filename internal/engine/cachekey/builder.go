// Package cachekey derives build cache keys from project fingerprints.
package cachekey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"slices"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// Delimiter separates the hashed fields of a key.
const Delimiter = "|"

// prepareLimit bounds concurrent fingerprinting in Prepare.
const prepareLimit = 8

// Builder computes cache keys for operations of one workspace.
type Builder struct {
	state    ports.ProjectStateProvider
	prefix   string
	projects map[string]domain.ProjectRef
	deps     map[string][]string
}

// NewBuilder creates a Builder for the projects of ws.
func NewBuilder(state ports.ProjectStateProvider, ws *domain.Workspace) *Builder {
	b := &Builder{
		state:    state,
		prefix:   ws.Cache.Prefix,
		projects: make(map[string]domain.ProjectRef, len(ws.Projects)),
		deps:     make(map[string][]string, len(ws.Projects)),
	}
	for _, p := range ws.Projects {
		folder := p.Folder
		if !filepath.IsAbs(folder) {
			folder = filepath.Join(ws.Root, folder)
		}
		b.projects[p.Name] = domain.ProjectRef{
			Name:     p.Name,
			Folder:   folder,
			Excludes: p.OutputFolders,
		}
		b.deps[p.Name] = p.DependsOn
	}
	return b
}

// Compute returns the cache key of op. ok is false when any project in the
// dependency closure of op's project has no fingerprint.
func (b *Builder) Compute(ctx context.Context, op *domain.Operation) (key string, ok bool) {
	closure, ok := b.closure(op.Project)
	if !ok {
		return "", false
	}

	fingerprints := make([]string, 0, len(closure))
	for _, ref := range closure {
		fp, ok := b.state.Fingerprint(ctx, ref)
		if !ok {
			return "", false
		}
		fingerprints = append(fingerprints, fp)
	}
	slices.Sort(fingerprints)

	outputs := op.OutputFolders
	if outputs == nil {
		outputs = []string{}
	}
	serialized, err := json.Marshal(outputs)
	if err != nil {
		return "", false
	}

	h := sha256.New()
	h.Write(serialized)
	h.Write([]byte(Delimiter))
	h.Write([]byte(op.Command))
	h.Write([]byte(Delimiter))
	for _, fp := range fingerprints {
		h.Write([]byte(fp))
		h.Write([]byte(Delimiter))
	}

	return b.prefix + hex.EncodeToString(h.Sum(nil)), true
}

// Prepare fingerprints every project used by the operations of g concurrently,
// so that Compute mostly reads memoized values.
func (b *Builder) Prepare(ctx context.Context, g *domain.Graph) error {
	seen := make(map[string]bool)
	var refs []domain.ProjectRef
	for op := range g.Operations() {
		closure, ok := b.closure(op.Project)
		if !ok {
			continue
		}
		for _, ref := range closure {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				refs = append(refs, ref)
			}
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(prepareLimit)
	for _, ref := range refs {
		eg.Go(func() error {
			b.state.Fingerprint(egCtx, ref)
			return egCtx.Err()
		})
	}
	return eg.Wait()
}

// closure lists project and every project reachable through its dependencies,
// breadth first, each once.
func (b *Builder) closure(project string) ([]domain.ProjectRef, bool) {
	if _, ok := b.projects[project]; !ok {
		return nil, false
	}

	visited := map[string]bool{project: true}
	queue := []string{project}
	refs := make([]domain.ProjectRef, 0, len(b.projects))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		ref, ok := b.projects[current]
		if !ok {
			return nil, false
		}
		refs = append(refs, ref)

		for _, dep := range b.deps[current] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return refs, true
}
