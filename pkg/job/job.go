package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRoomRequired is returned when a job has no room.
var ErrRoomRequired = errors.New("room name is required")

// New creates a job. Its context ends on Shutdown, when parent ends, or when
// cfg.Timeout elapses.
func New(parent context.Context, cfg Config) (*Job, error) {
	if cfg.RoomName == "" {
		return nil, ErrRoomRequired
	}

	id := cfg.ID
	if id == "" {
		id = generateJobID()
	}

	jc := NewJobContext(parent)
	if cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(jc.Ctx, cfg.Timeout)
		parentCancel := jc.cancel
		jc.Ctx = ctx
		jc.cancel = func() {
			cancel()
			parentCancel()
		}
	}

	j := &Job{
		ID:       id,
		RoomName: cfg.RoomName,
		URL:      cfg.URL,
		Token:    cfg.Token,
		Context:  jc,
	}

	slog.Info("Created new job",
		slog.String("job_id", id),
		slog.String("room_name", cfg.RoomName),
		slog.Duration("timeout", cfg.Timeout))

	return j, nil
}

// Shutdown ends the job with reason. Safe to call more than once.
func (j *Job) Shutdown(reason string) {
	j.Context.Shutdown(reason)
}

// Wait blocks until the job ends and returns the context error.
func (j *Job) Wait() error {
	<-j.Context.Done()
	return j.Context.Err()
}

func (j *Job) IsActive() bool {
	return !j.Context.IsShutdown()
}

func (j *Job) String() string {
	status := "active"
	if j.Context.IsShutdown() {
		status = "shutdown"
	}
	return fmt.Sprintf("Job{ID: %s, Room: %s, Status: %s}", j.ID, j.RoomName, status)
}
