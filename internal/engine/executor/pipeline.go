package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

// executeOperation runs the per-operation pipeline: incremental skip, cache restore,
// run, then cache save.
func (e *Executor) executeOperation(ctx context.Context, root string, op *domain.Operation) Result {
	start := time.Now()

	// The span ends before the result is handed back so the report never
	// observes an operation whose span is still open.
	res := func() Result {
		ctx, span := e.tracer.Start(ctx, op.Name.String())
		defer span.End()

		res := e.runPipeline(ctx, root, op, span)
		span.SetAttribute(ports.StatusAttribute, res.Status.String())
		if res.Restored {
			span.SetAttribute(ports.RestoredAttribute, true)
		}
		if res.Err != nil && res.Status == domain.StatusFailure {
			span.RecordError(res.Err)
		}
		return res
	}()

	res.Name = op.Name
	res.Duration = time.Since(start)
	return res
}

func (e *Executor) runPipeline(ctx context.Context, root string, op *domain.Operation, span ports.Span) Result {
	if op.Command == "" {
		return Result{Status: domain.StatusNoOp}
	}

	key, keyOK := e.cacheKey(ctx, op)
	if keyOK {
		if e.unchanged(root, op, key) {
			return Result{Status: domain.StatusSkipped}
		}
		if e.restore(ctx, root, op, key) {
			return Result{Status: domain.StatusSkipped, Restored: true}
		}
	}

	runner, ok := e.runners[op.Runner]
	if !ok {
		err := zerr.With(domain.ErrRunnerUnavailable, "runner", op.Runner.String())
		return Result{Status: domain.StatusFailure, Err: err}
	}

	run := runner.Run(ctx, op, span)
	res := Result{
		Status:   run.Status,
		ExitCode: run.ExitCode,
		Output:   run.Output,
		Err:      run.Err,
	}

	if run.Status == domain.StatusSuccess && keyOK {
		// Saving must survive cancellation so a half-written entry never lands in a tier.
		e.save(context.WithoutCancel(ctx), root, op, key)
	}
	return res
}

func (e *Executor) cacheKey(ctx context.Context, op *domain.Operation) (string, bool) {
	if !op.Cacheable || e.keys == nil {
		return "", false
	}
	return e.keys.Compute(ctx, op)
}

// unchanged reports whether op already ran with key and its outputs on disk still match.
func (e *Executor) unchanged(root string, op *domain.Operation, key string) bool {
	if e.store == nil || e.hasher == nil {
		return false
	}

	info, err := e.store.Get(root, op.Name.String())
	if err != nil {
		e.logError(op, err)
		return false
	}
	if info == nil || info.CacheKey != key {
		return false
	}

	hash, err := e.hasher.ComputeOutputHash(op.Folder, op.OutputFolders)
	if err != nil {
		return false
	}
	return hash == info.OutputHash
}

func (e *Executor) restore(ctx context.Context, root string, op *domain.Operation, key string) bool {
	if e.cache == nil || e.archive == nil {
		return false
	}

	entry, hit := e.cache.TryRestore(ctx, key)
	if !hit {
		return false
	}
	if err := e.archive.Unpack(ctx, entry.Blob, op.Folder, op.OutputFolders); err != nil {
		e.logError(op, zerr.With(err, "key", key))
		return false
	}

	if entry.Source == domain.CacheSourceCloud && e.logger != nil {
		e.logger.Info(fmt.Sprintf("%s restored from cloud cache", op.Name))
	}
	e.recordBuildInfo(root, op, key)
	return true
}

func (e *Executor) save(ctx context.Context, root string, op *domain.Operation, key string) {
	e.recordBuildInfo(root, op, key)

	if e.cache == nil || e.archive == nil {
		return
	}

	files, err := e.archive.Collect(op.Folder, op.OutputFolders)
	if err != nil {
		e.logCacheSkipped(op, err)
		return
	}

	blob, err := e.archive.Pack(ctx, op.Folder, files)
	if err != nil {
		e.logCacheSkipped(op, err)
		return
	}

	e.cache.TrySave(ctx, key, blob)
}

func (e *Executor) recordBuildInfo(root string, op *domain.Operation, key string) {
	if e.store == nil || e.hasher == nil {
		return
	}

	hash, err := e.hasher.ComputeOutputHash(op.Folder, op.OutputFolders)
	if err != nil {
		e.logError(op, err)
		return
	}

	err = e.store.Put(root, domain.BuildInfo{
		OperationName: op.Name.String(),
		CacheKey:      key,
		OutputHash:    hash,
		Timestamp:     time.Now(),
	})
	if err != nil {
		e.logError(op, err)
	}
}

// logCacheSkipped reports why the outputs of op were not cached.
// Joined errors, such as one per symbolic link, are reported one by one.
func (e *Executor) logCacheSkipped(op *domain.Operation, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(fmt.Sprintf("%s: outputs not cached", op.Name))

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, inner := range joined.Unwrap() {
			e.logError(op, inner)
		}
		return
	}
	e.logError(op, err)
}

func (e *Executor) logError(op *domain.Operation, err error) {
	if e.logger != nil {
		e.logger.Error(zerr.With(err, "operation", op.Name.String()))
	}
}
