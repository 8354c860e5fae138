package job

import (
	"context"
	"sync"
	"time"
)

// Job is one agent assignment: a room to join and the lifecycle around it.
type Job struct {
	// ID is the dispatch job id, or a generated one for direct joins.
	ID string

	// RoomName is the LiveKit room this job is assigned to.
	RoomName string

	// URL and Token are what the agent connects with.
	URL   string
	Token string

	Context *JobContext
}

// JobContext coordinates shutdown of a job. Hooks run once, concurrently,
// before the context is cancelled.
type JobContext struct {
	Ctx context.Context

	cancel        context.CancelFunc
	mu            sync.Mutex
	shutdownHooks []func(string)
	shutdown      bool
	reason        string
}

// Config describes a job to create.
type Config struct {
	// ID for the job. Generated when empty.
	ID string

	RoomName string
	URL      string
	Token    string

	// Timeout bounds the whole job. Zero means no limit.
	Timeout time.Duration
}

const (
	// AssignmentTimeout is how long the server waits for an availability
	// answer before offering the job elsewhere.
	AssignmentTimeout = 7500 * time.Millisecond

	// ShutdownHookTimeout bounds how long Shutdown waits for hooks.
	ShutdownHookTimeout = 5 * time.Second
)
