// Package domain contains the core domain models and business logic for the operation graph.
package domain

import (
	"iter"
	"maps"
	"strings"
	"sync"

	"go.trai.ch/zerr"
)

// Graph is a dependency graph of operations.
// Topology is fixed once Validate succeeds; only per-operation status changes afterwards.
type Graph struct {
	root           string
	operations     map[InternedString]*Operation
	order          []InternedString
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString

	mu     sync.RWMutex
	status map[InternedString]OperationStatus
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		operations: make(map[InternedString]*Operation),
		dependents: make(map[InternedString][]InternedString),
		status:     make(map[InternedString]OperationStatus),
	}
}

// SetRoot sets the workspace root directory.
func (g *Graph) SetRoot(path string) {
	g.root = path
}

// Root returns the workspace root directory.
func (g *Graph) Root() string {
	return g.root
}

// AddOperation adds an operation to the graph.
// It returns an error if an operation with the same name already exists.
func (g *Graph) AddOperation(op *Operation) error {
	if _, exists := g.operations[op.Name]; exists {
		return zerr.With(ErrOperationAlreadyExists, "operation", op.Name.String())
	}
	stored := *op
	g.operations[op.Name] = &stored
	g.order = append(g.order, op.Name)
	g.status[op.Name] = StatusReady
	return nil
}

// GetOperation returns the operation with the given name.
func (g *Graph) GetOperation(name InternedString) (*Operation, bool) {
	op, ok := g.operations[name]
	return op, ok
}

// OperationCount returns the number of operations in the graph.
func (g *Graph) OperationCount() int {
	return len(g.operations)
}

// Operations yields operations in declaration order.
func (g *Graph) Operations() iter.Seq[*Operation] {
	return func(yield func(*Operation) bool) {
		for _, name := range g.order {
			if !yield(g.operations[name]) {
				return
			}
		}
	}
}

// Validate checks that every dependency exists and that the graph is acyclic.
// It populates the execution order and the reverse edges used by Dependents.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.operations))
	g.dependents = make(map[InternedString][]InternedString, len(g.operations))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		op := g.operations[u]
		for _, dep := range op.Dependencies {
			if _, exists := g.operations[dep]; !exists {
				return zerr.With(
					zerr.With(ErrMissingDependency, "dependency", dep.String()),
					"operation", u.String(),
				)
			}
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	// Declaration order keeps Walk deterministic across runs.
	for _, name := range g.order {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	for _, name := range g.order {
		for _, dep := range g.operations[name].Dependencies {
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	var b strings.Builder
	for _, node := range path[startIdx:] {
		b.WriteString(node.String())
		b.WriteString(" -> ")
	}
	b.WriteString(dep.String())
	return zerr.With(ErrCycleDetected, "cycle", b.String())
}

// Walk yields operations in a dependency-first order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Operation] {
	return func(yield func(*Operation) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.operations[name]) {
				return
			}
		}
	}
}

// Dependents returns the operations that directly depend on name, in declaration order.
func (g *Graph) Dependents(name InternedString) []InternedString {
	return g.dependents[name]
}

// Status returns the current status of an operation.
func (g *Graph) Status(name InternedString) OperationStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status[name]
}

// SetStatus records the status of an operation.
func (g *Graph) SetStatus(name InternedString, status OperationStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[name] = status
}

// Statuses returns a snapshot of every operation's status.
func (g *Graph) Statuses() map[InternedString]OperationStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.status)
}

// ResetStatuses puts every operation back to StatusReady so the graph can be executed again.
func (g *Graph) ResetStatuses() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name := range g.status {
		g.status[name] = StatusReady
	}
}
