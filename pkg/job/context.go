package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewJobContext creates a JobContext derived from parent.
func NewJobContext(parent context.Context) *JobContext {
	ctx, cancel := context.WithCancel(parent)
	return &JobContext{Ctx: ctx, cancel: cancel}
}

// Shutdown runs every registered hook once and then cancels the context.
// Later calls are no-ops.
func (jc *JobContext) Shutdown(reason string) {
	jc.mu.Lock()
	if jc.shutdown {
		jc.mu.Unlock()
		return
	}
	jc.shutdown = true
	jc.reason = reason
	hooks := jc.shutdownHooks
	jc.shutdownHooks = nil
	jc.mu.Unlock()

	slog.Info("Job shutdown initiated", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			runHook(h, reason)
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownHookTimeout):
		slog.Warn("Shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}

	jc.cancel()
}

// OnShutdown registers a hook. If the job is already shut down the hook runs
// right away with the original reason.
func (jc *JobContext) OnShutdown(hook func(reason string)) {
	jc.mu.Lock()
	if jc.shutdown {
		reason := jc.reason
		jc.mu.Unlock()
		go runHook(hook, reason)
		return
	}
	jc.shutdownHooks = append(jc.shutdownHooks, hook)
	jc.mu.Unlock()
}

// Reason returns the shutdown reason, or "" while the job is running.
func (jc *JobContext) Reason() string {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.reason
}

// IsShutdown reports whether the job context has ended.
func (jc *JobContext) IsShutdown() bool {
	return jc.Ctx.Err() != nil
}

func (jc *JobContext) Done() <-chan struct{} {
	return jc.Ctx.Done()
}

func (jc *JobContext) Err() error {
	return jc.Ctx.Err()
}

func runHook(h func(string), reason string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Shutdown hook panicked", slog.Any("panic", r))
		}
	}()
	h(reason)
}

func generateJobID() string {
	return "job_" + uuid.NewString()
}
