package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chriscow/lk-voice/pkg/job"
	"github.com/chriscow/lk-voice/pkg/persona"
)

// EntrypointConfig is shared by every job a worker runs. Template carries
// the agent settings; its Room and Persona are filled per job.
type EntrypointConfig struct {
	Template Config

	// Voices overrides the persona's default voice.
	Voices map[persona.Kind]string
}

// NewEntrypoint returns a job handler that joins the job's room and runs a
// VoiceAgent until the room closes or the job shuts down.
func NewEntrypoint(cfg EntrypointConfig) func(ctx context.Context, j *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		logger := cfg.Template.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger = logger.With(slog.String("job_id", j.ID))

		room, err := job.NewRoom(ctx, job.RoomConfig{
			URL:      j.URL,
			Token:    j.Token,
			RoomName: j.RoomName,
		})
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		j.Context.OnShutdown(func(string) { room.Disconnect() })

		p := persona.Select(j.RoomName)
		if v := cfg.Voices[p.Kind]; v != "" {
			p = p.WithVoice(v)
		}

		ac := cfg.Template
		ac.Room = NewLiveKitRoom(room, logger)
		ac.Persona = &p
		ac.Logger = logger

		a, err := New(ac)
		if err != nil {
			room.Disconnect()
			return err
		}
		return a.Run(ctx)
	}
}
