package agent

import (
	"log/slog"

	"github.com/chriscow/lk-voice/pkg/job"
)

// liveKitRoom adapts *job.Room to Room.
type liveKitRoom struct {
	*job.Room
	logger *slog.Logger
}

// NewLiveKitRoom wraps a job room for the agent.
func NewLiveKitRoom(r *job.Room, logger *slog.Logger) Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &liveKitRoom{Room: r, logger: logger}
}

func (r *liveKitRoom) PublishAudio(trackName string) (Player, error) {
	speaker, err := r.PublishSpeaker(trackName, r.logger)
	if err != nil {
		return nil, err
	}
	return speaker, nil
}

func (r *liveKitRoom) EventStream() <-chan *job.Event {
	return r.Events
}
