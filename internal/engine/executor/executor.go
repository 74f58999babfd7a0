// Package executor runs an operation graph in dependency order under a concurrency bound.
package executor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

// KeyBuilder derives the cache key of an operation.
type KeyBuilder interface {
	Compute(ctx context.Context, op *domain.Operation) (key string, ok bool)
}

// CacheStore restores and saves archived outputs by key.
type CacheStore interface {
	TryRestore(ctx context.Context, key string) (*domain.CacheEntry, bool)
	TrySave(ctx context.Context, key string, blob []byte) bool
}

// Executor drives operations through their runners, consulting the build cache
// before each run and feeding successful outputs back into it.
type Executor struct {
	runners map[domain.RunnerKind]ports.OperationRunner
	tracer  ports.Tracer
	logger  ports.Logger

	keys    KeyBuilder
	cache   CacheStore
	archive ports.ArchiveCodec
	store   ports.BuildInfoStore
	hasher  ports.OutputHasher
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache enables cache restore and save. Any nil argument disables both.
func WithCache(keys KeyBuilder, cache CacheStore, archive ports.ArchiveCodec) Option {
	return func(e *Executor) {
		e.keys = keys
		e.cache = cache
		e.archive = archive
	}
}

// WithBuildInfo enables skipping operations whose key and outputs are unchanged
// since their last successful run.
func WithBuildInfo(store ports.BuildInfoStore, hasher ports.OutputHasher) Option {
	return func(e *Executor) {
		e.store = store
		e.hasher = hasher
	}
}

// New creates an Executor with one runner per runner kind.
func New(
	runners map[domain.RunnerKind]ports.OperationRunner,
	tracer ports.Tracer,
	logger ports.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		runners: runners,
		tracer:  tracer,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one operation.
type Result struct {
	Name     domain.InternedString
	Status   domain.OperationStatus
	Restored bool
	ExitCode int
	Output   string
	Err      error
	Duration time.Duration
}

// Report holds the result of every operation of an execution, in declaration order.
type Report struct {
	Order   []domain.InternedString
	Results map[domain.InternedString]Result
}

// Counts returns how many operations ended in each status.
func (r *Report) Counts() map[domain.OperationStatus]int {
	counts := make(map[domain.OperationStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Succeeded reports whether no operation failed or was blocked.
func (r *Report) Succeeded() bool {
	for _, res := range r.Results {
		if !res.Status.IsSuccessLike() {
			return false
		}
	}
	return true
}

// Execute runs every operation of g with at most parallelism operations executing at once.
// A parallelism below one selects runtime.NumCPU().
//
// Configuration errors such as cycles are returned before anything runs. Otherwise the
// report is always returned, and the error joins the failures of individual operations.
func (e *Executor) Execute(ctx context.Context, g *domain.Graph, parallelism int) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}

	g.ResetStatuses()
	state := e.newRunState(ctx, g, parallelism)

	planned := make([]string, 0, len(state.report.Order))
	for op := range g.Walk() {
		planned = append(planned, op.Name.String())
	}
	e.tracer.EmitPlan(ctx, planned)

	for {
		state.schedule()
		if state.active == 0 {
			break
		}
		state.handleResult(<-state.resultsCh)
	}

	if err := state.finish(); err != nil {
		return state.report, err
	}
	return state.report, state.errs
}

type runState struct {
	e           *Executor
	ctx         context.Context
	graph       *domain.Graph
	parallelism int

	inDegree  map[domain.InternedString]int
	blocked   map[domain.InternedString]bool
	ready     []domain.InternedString
	active    int
	resultsCh chan Result

	report *Report
	errs   error
}

func (e *Executor) newRunState(ctx context.Context, g *domain.Graph, parallelism int) *runState {
	count := g.OperationCount()
	state := &runState{
		e:           e,
		ctx:         ctx,
		graph:       g,
		parallelism: parallelism,
		inDegree:    make(map[domain.InternedString]int, count),
		blocked:     make(map[domain.InternedString]bool),
		resultsCh:   make(chan Result, parallelism),
		report: &Report{
			Order:   make([]domain.InternedString, 0, count),
			Results: make(map[domain.InternedString]Result, count),
		},
	}

	for op := range g.Operations() {
		state.report.Order = append(state.report.Order, op.Name)
		state.inDegree[op.Name] = len(op.Dependencies)
		if len(op.Dependencies) == 0 {
			state.enqueue(op.Name)
		}
	}
	return state
}

func (state *runState) enqueue(name domain.InternedString) {
	state.graph.SetStatus(name, domain.StatusReady)
	state.ready = append(state.ready, name)
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		op, _ := state.graph.GetOperation(name)
		state.active++
		state.graph.SetStatus(name, domain.StatusQueued)
		state.graph.SetStatus(name, domain.StatusExecuting)

		go func() {
			state.resultsCh <- state.e.executeOperation(state.ctx, state.graph.Root(), op)
		}()
	}
}

func (state *runState) handleResult(res Result) {
	state.active--
	state.record(res)

	if !res.Status.IsSuccessLike() {
		state.blockDependents(res.Name)
		return
	}

	for _, dep := range state.graph.Dependents(res.Name) {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 && !state.blocked[dep] {
			state.enqueue(dep)
		}
	}
}

func (state *runState) record(res Result) {
	state.graph.SetStatus(res.Name, res.Status)
	state.report.Results[res.Name] = res

	if res.Status == domain.StatusFailure {
		err := res.Err
		if err == nil {
			err = domain.ErrOperationFailed
		}
		state.errs = errors.Join(state.errs, zerr.With(err, "operation", res.Name.String()))
	}
}

// blockDependents marks every transitive dependent of name Blocked.
// Each operation is visited at most once across the whole execution.
func (state *runState) blockDependents(name domain.InternedString) {
	stack := []domain.InternedString{name}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, dep := range state.graph.Dependents(current) {
			if state.blocked[dep] {
				continue
			}
			state.blocked[dep] = true
			state.record(Result{
				Name:   dep,
				Status: domain.StatusBlocked,
				Err:    zerr.With(domain.ErrOperationBlocked, "blocked_by", current.String()),
			})
			stack = append(stack, dep)
		}
	}
}

// finish resolves operations that never reached a terminal status.
// After cancellation they are Blocked; without cancellation nothing can be
// left unless the dependency counts never reach zero.
func (state *runState) finish() error {
	var stuck []string
	for _, name := range state.report.Order {
		if _, done := state.report.Results[name]; done {
			continue
		}
		if state.ctx.Err() != nil {
			state.record(Result{
				Name:   name,
				Status: domain.StatusBlocked,
				Err:    zerr.Wrap(state.ctx.Err(), domain.ErrOperationBlocked.Error()),
			})
			continue
		}
		stuck = append(stuck, name.String())
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}
	if len(stuck) > 0 {
		return zerr.With(domain.ErrCycleDetected, "operations", stuck)
	}
	return nil
}
