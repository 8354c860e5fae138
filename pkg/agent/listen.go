package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chriscow/lk-voice/pkg/ai"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/ai/vad"
	"github.com/chriscow/lk-voice/pkg/job"
	"github.com/chriscow/lk-voice/pkg/rtc"
)

func (a *VoiceAgent) listen(ctx context.Context, e *job.Event) {
	switch a.cfg.ListenMode {
	case ListenAcknowledge:
		a.acknowledge(ctx)
	default:
		a.transcribe(ctx, e)
	}
}

// acknowledge waits for the participant to finish and answers a fixed
// stand-in utterance once per track.
func (a *VoiceAgent) acknowledge(ctx context.Context) {
	t := time.NewTimer(a.cfg.AckDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	a.obs.UtteranceDetected()
	a.answer(ctx, AckUtterance, TriggerAudio)
}

// transcribe segments the track into utterances and answers each one.
func (a *VoiceAgent) transcribe(ctx context.Context, e *job.Event) {
	in := make(chan vad.Packet, 256)
	go a.pump(ctx, e.Packets, in)

	segments := vad.NewSegmenter(a.cfg.Segmenter).Run(ctx, in)
	for seg := range segments {
		a.obs.UtteranceDetected()
		a.logger.Debug("Utterance detected",
			slog.String("participant", e.Identity()),
			slog.Duration("voiced", seg.Voiced),
			slog.Int("packets", len(seg.Packets)))

		a.spawn(func() { a.answerUtterance(ctx, seg) })
	}
}

// pump copies packets from the track until it ends. Packets that arrive
// while the agent is speaking are dropped.
func (a *VoiceAgent) pump(ctx context.Context, r job.PacketReader, out chan<- vad.Packet) {
	defer close(out)
	for {
		p, err := r.ReadPacket()
		if err != nil {
			a.logger.Debug("Audio track ended", slog.String("reason", err.Error()))
			return
		}
		if a.gate.ShouldDiscardAudio() {
			continue
		}
		select {
		case out <- vad.Packet{RTP: p, At: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

func (a *VoiceAgent) answerUtterance(ctx context.Context, seg vad.Segment) {
	var buf bytes.Buffer
	if err := rtc.WriteOggRTP(&buf, seg.Packets); err != nil {
		a.logger.Error("Failed to package utterance", slog.String("error", err.Error()))
		return
	}

	tr, err := a.cfg.STT.Transcribe(ctx, stt.TranscribeRequest{
		Audio:    &buf,
		Filename: "utterance.ogg",
	})
	if errors.Is(err, ai.ErrEmptyResponse) {
		return
	}
	if err != nil {
		a.logger.Error("Error transcribing utterance",
			slog.String("error", err.Error()),
			slog.Bool("recoverable", ai.IsRecoverable(err)))
		return
	}

	a.logger.Info("Transcribed utterance", slog.String("text", tr.Text))
	a.answer(ctx, tr.Text, TriggerAudio)
}
