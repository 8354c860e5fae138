// Package worker registers with a LiveKit server as an agent worker, accepts
// room jobs and runs a handler for each one.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"

	"github.com/chriscow/lk-voice/pkg/job"
)

const (
	DefaultPingInterval = 10 * time.Second
	maxBackoff          = 10 * time.Second
)

// JobHandler runs one job. ctx ends when the job is terminated or the worker
// stops.
type JobHandler func(ctx context.Context, j *job.Job) error

// Config configures a Worker.
type Config struct {
	// URL is the LiveKit server URL. The worker connects to URL + "/agent".
	URL string

	// Token returns a fresh worker token for every connection attempt.
	Token func() (string, error)

	AgentName string
	Version   string
	Handler   JobHandler

	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration
}

type Worker struct {
	cfg    Config
	logger *slog.Logger

	in  chan *livekit.ServerMessage
	out chan *livekit.WorkerMessage

	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
	workerID       string
	jobs           map[string]*job.Job

	jobsWG sync.WaitGroup
}

func New(cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Worker{
		cfg:    cfg,
		logger: logger,
		in:     make(chan *livekit.ServerMessage, 100),
		out:    make(chan *livekit.WorkerMessage, 100),
		jobs:   make(map[string]*job.Job),
	}
}

// Run connects and serves jobs until ctx ends, reconnecting with backoff.
// Running jobs are shut down before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.Handler == nil {
		return errors.New("job handler is required")
	}
	if w.cfg.Token == nil {
		return errors.New("token source is required")
	}

	w.logger.Info("Starting worker",
		slog.String("url", w.cfg.URL),
		slog.String("agent_name", w.cfg.AgentName))

	for {
		if ctx.Err() != nil {
			w.shutdown()
			return nil
		}

		if err := w.connectAndRun(ctx); err != nil {
			w.logger.Error("Worker connection failed", slog.String("error", err.Error()))
			if err := w.backoffDelay(ctx); err != nil {
				w.shutdown()
				return nil
			}
		}
	}
}

func (w *Worker) connectAndRun(ctx context.Context) error {
	token, err := w.cfg.Token()
	if err != nil {
		return fmt.Errorf("issue worker token: %w", err)
	}

	ws := NewWebSocketClient(w.cfg.URL, token, w.logger)
	if err := ws.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Register goes out before anything queued while disconnected.
	if err := ws.WriteMessage(w.registerMessage()); err != nil {
		_ = ws.Close()
		return fmt.Errorf("register: %w", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := w.readMessages(runCtx, ws); err != nil {
			errCh <- fmt.Errorf("read messages: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := w.writeMessages(runCtx, ws); err != nil {
			errCh <- fmt.Errorf("write messages: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		w.processMessages(runCtx)
	}()

	pings := time.NewTicker(w.cfg.PingInterval)
	defer pings.Stop()

	for {
		select {
		case err := <-errCh:
			w.teardown(cancel, ws, &wg)
			return err
		case <-ctx.Done():
			w.teardown(cancel, ws, &wg)
			return nil
		case now := <-pings.C:
			w.send(runCtx, &livekit.WorkerMessage{
				Message: &livekit.WorkerMessage_Ping{Ping: &livekit.WorkerPing{Timestamp: now.UnixMilli()}},
			})
		}
	}
}

func (w *Worker) teardown(cancel context.CancelFunc, ws *WebSocketClient, wg *sync.WaitGroup) {
	cancel()
	if err := ws.Close(); err != nil {
		w.logger.Debug("Error closing WebSocket during cleanup", slog.String("error", err.Error()))
	}
	wg.Wait()
	w.setConnected(false, "")
}

func (w *Worker) registerMessage() *livekit.WorkerMessage {
	return &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_Register{Register: &livekit.RegisterWorkerRequest{
			Type:      livekit.JobType_JT_ROOM,
			AgentName: w.cfg.AgentName,
			Version:   w.cfg.Version,
		}},
	}
}

func (w *Worker) readMessages(ctx context.Context, ws *WebSocketClient) error {
	for {
		msg, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case w.in <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Worker) writeMessages(ctx context.Context, ws *WebSocketClient) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-w.out:
			if err := ws.WriteMessage(msg); err != nil {
				// keep it for the next connection
				select {
				case w.out <- msg:
				default:
				}
				return err
			}
		}
	}
}

func (w *Worker) processMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.in:
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg *livekit.ServerMessage) {
	switch m := msg.Message.(type) {
	case *livekit.ServerMessage_Register:
		w.setConnected(true, m.Register.GetWorkerId())

	case *livekit.ServerMessage_Availability:
		w.handleAvailability(ctx, m.Availability)

	case *livekit.ServerMessage_Assignment:
		w.handleAssignment(m.Assignment)

	case *livekit.ServerMessage_Termination:
		w.handleTermination(m.Termination)

	case *livekit.ServerMessage_Pong:
		w.logger.Debug("Pong",
			slog.Duration("rtt", time.Since(time.UnixMilli(m.Pong.GetLastTimestamp()))))

	default:
		w.logger.Warn("Unknown server message", slog.String("type", fmt.Sprintf("%T", msg.Message)))
	}
}

func (w *Worker) handleAvailability(ctx context.Context, req *livekit.AvailabilityRequest) {
	j := req.GetJob()
	w.logger.Info("Job offered",
		slog.String("job_id", j.GetId()),
		slog.String("room_name", j.GetRoom().GetName()))

	w.send(ctx, &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_Availability{Availability: &livekit.AvailabilityResponse{
			JobId:               j.GetId(),
			Available:           true,
			ParticipantIdentity: participantIdentity(j.GetId()),
			ParticipantName:     w.cfg.AgentName,
		}},
	})
}

func (w *Worker) handleAssignment(a *livekit.JobAssignment) {
	lj := a.GetJob()
	url := a.GetUrl()
	if url == "" {
		url = w.cfg.URL
	}

	// Jobs outlive the connection they were assigned on.
	j, err := job.New(context.Background(), job.Config{
		ID:       lj.GetId(),
		RoomName: lj.GetRoom().GetName(),
		URL:      url,
		Token:    a.GetToken(),
	})
	if err != nil {
		w.logger.Error("Rejecting job assignment",
			slog.String("job_id", lj.GetId()),
			slog.String("error", err.Error()))
		w.updateJob(lj.GetId(), livekit.JobStatus_JS_FAILED, err.Error())
		return
	}

	w.mu.Lock()
	w.jobs[j.ID] = j
	w.mu.Unlock()

	w.updateJob(j.ID, livekit.JobStatus_JS_RUNNING, "")
	w.logger.Info("Job assigned", slog.String("job_id", j.ID), slog.String("room_name", j.RoomName))

	w.jobsWG.Add(1)
	go func() {
		defer w.jobsWG.Done()
		w.runJob(j)
	}()
}

func (w *Worker) runJob(j *job.Job) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job handler panicked: %v", r)
			}
		}()
		return w.cfg.Handler(j.Context.Ctx, j)
	}()

	j.Shutdown("job finished")

	w.mu.Lock()
	delete(w.jobs, j.ID)
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Job failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
		w.updateJob(j.ID, livekit.JobStatus_JS_FAILED, err.Error())
		return
	}
	w.logger.Info("Job finished", slog.String("job_id", j.ID))
	w.updateJob(j.ID, livekit.JobStatus_JS_SUCCESS, "")
}

func (w *Worker) handleTermination(t *livekit.JobTermination) {
	w.mu.RLock()
	j, ok := w.jobs[t.GetJobId()]
	w.mu.RUnlock()
	if !ok {
		w.logger.Warn("Termination for unknown job", slog.String("job_id", t.GetJobId()))
		return
	}
	go j.Shutdown("terminated by server")
}

func (w *Worker) updateJob(id string, status livekit.JobStatus, errText string) {
	w.send(context.Background(), &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_UpdateJob{UpdateJob: &livekit.UpdateJobStatus{
			JobId:  id,
			Status: status,
			Error:  errText,
		}},
	})
}

// send queues msg without blocking when the queue is full.
func (w *Worker) send(ctx context.Context, msg *livekit.WorkerMessage) {
	select {
	case w.out <- msg:
	case <-ctx.Done():
	default:
		w.logger.Warn("Outbound queue full, dropping message",
			slog.String("type", fmt.Sprintf("%T", msg.Message)))
	}
}

// backoffFor returns 1s, 2s, 4s, 8s and then 10s for every later attempt.
func backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func (w *Worker) backoffDelay(ctx context.Context) error {
	w.mu.Lock()
	w.backoffAttempt++
	attempt := w.backoffAttempt
	w.mu.Unlock()

	delay := backoffFor(attempt)
	w.logger.Info("Reconnecting with backoff",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) setConnected(connected bool, workerID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if connected && !w.connected {
		w.backoffAttempt = 0
		w.workerID = workerID
		w.logger.Info("Worker registered", slog.String("worker_id", workerID))
	}
	w.connected = connected
}

// IsConnected reports whether the server has acknowledged registration on
// the current connection.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// ActiveJobs returns the number of jobs currently running.
func (w *Worker) ActiveJobs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.jobs)
}

func (w *Worker) shutdown() {
	w.logger.Info("Shutting down worker")

	w.mu.RLock()
	jobs := make([]*job.Job, 0, len(w.jobs))
	for _, j := range w.jobs {
		jobs = append(jobs, j)
	}
	w.mu.RUnlock()

	for _, j := range jobs {
		j.Shutdown("worker shutting down")
	}
	w.jobsWG.Wait()
	w.logger.Info("Worker shutdown complete")
}

func participantIdentity(jobID string) string {
	return "agent-" + jobID
}
