// Package runner fans a batch of submissions out over the sandbox engine
// with bounded concurrency.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"aibugbench/internal/sandbox"
	"aibugbench/internal/sandbox/result"
	appErr "aibugbench/pkg/errors"
	"aibugbench/pkg/utils/logger"
)

// Submission is one directory of untrusted code to run.
type Submission struct {
	ID  string
	Dir string
	// Command is the argv to run inside the sandbox work directory.
	Command      []string
	MemoryMB     int64
	TimeoutS     int64
	AllowNetwork bool
}

// Outcome pairs a submission with its sandboxed result. Error is set only
// for engine faults; failing submissions are reported through Result.
type Outcome struct {
	SubmissionID string                 `json:"submission_id"`
	Result       result.ExecutionResult `json:"result"`
	Error        string                 `json:"error,omitempty"`
}

// Engine is the execution surface the pool needs. Satisfied by the sandbox
// engine; tests substitute a fake.
type Engine interface {
	Execute(ctx context.Context, req sandbox.ExecuteRequest) (result.ExecutionResult, error)
}

// Pool runs submissions with at most size concurrent sandboxes. Concurrency
// is bounded by a slot channel; a slot is held for the lifetime of one run.
type Pool struct {
	engine Engine
	slots  chan struct{}
}

// NewPool creates a pool bounded to size concurrent runs.
func NewPool(engine Engine, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{engine: engine, slots: make(chan struct{}, size)}
}

// acquire claims a run slot, giving up when ctx is canceled.
func (p *Pool) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.slots <- struct{}{}:
		return nil
	}
}

func (p *Pool) release() {
	<-p.slots
}

// RunAll executes every submission and returns outcomes in input order. A
// canceled context stops admitting new runs; outcomes for unstarted
// submissions record the cancellation.
func (p *Pool) RunAll(ctx context.Context, subs []Submission) []Outcome {
	outcomes := make([]Outcome, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		outcomes[i].SubmissionID = sub.ID
		if err := ctx.Err(); err != nil {
			outcomes[i].Error = err.Error()
			continue
		}
		if err := p.acquire(ctx); err != nil {
			outcomes[i].Error = err.Error()
			continue
		}
		wg.Add(1)
		go func(i int, sub Submission) {
			defer wg.Done()
			defer p.release()
			res, err := p.engine.Execute(ctx, sandbox.ExecuteRequest{
				SubmissionID: sub.ID,
				SourceDir:    sub.Dir,
				Command:      sub.Command,
				MemoryMB:     sub.MemoryMB,
				TimeoutS:     sub.TimeoutS,
				AllowNetwork: sub.AllowNetwork,
			})
			if err != nil {
				logger.Error(ctx, "submission run failed",
					zap.String("submission_id", sub.ID), zap.Error(err))
				outcomes[i].Error = err.Error()
				return
			}
			outcomes[i].Result = res
		}(i, sub)
	}
	wg.Wait()
	return outcomes
}

// Discover lists the immediate subdirectories of root as submissions, in
// name order. Command and limits are filled in by the caller.
func Discover(root string) ([]Submission, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.NotFound, "read submissions root %q: %v", root, err)
	}
	var subs []Submission
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		subs = append(subs, Submission{
			ID:  e.Name(),
			Dir: filepath.Join(root, e.Name()),
		})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}
