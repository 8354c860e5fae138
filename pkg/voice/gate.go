// Package voice holds the agent's half-duplex audio gate.
package voice

import "sync/atomic"

// AudioGate tells the listener to discard captured audio while the agent is
// speaking, so the agent does not transcribe its own voice echoed back
// through a participant's microphone.
type AudioGate interface {
	// Hold marks the agent as speaking until the returned release func is
	// called. Holds nest; audio flows again once every hold is released.
	Hold() (release func())

	// ShouldDiscardAudio reports whether captured audio should be dropped.
	ShouldDiscardAudio() bool
}

// NewAudioGate creates an open gate.
func NewAudioGate() AudioGate {
	return &countingGate{}
}

type countingGate struct {
	holds atomic.Int32
}

func (g *countingGate) Hold() func() {
	g.holds.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.holds.Add(-1)
		}
	}
}

func (g *countingGate) ShouldDiscardAudio() bool {
	return g.holds.Load() > 0
}

// OpenGate never discards audio. It lets a participant barge in while the
// agent speaks.
type OpenGate struct{}

func (OpenGate) Hold() func()             { return func() {} }
func (OpenGate) ShouldDiscardAudio() bool { return false }
