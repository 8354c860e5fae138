package voice

import (
	"sync"
	"testing"
)

func TestAudioGate(t *testing.T) {
	gate := NewAudioGate()

	if gate.ShouldDiscardAudio() {
		t.Error("NewAudioGate() should initially not discard audio")
	}

	release := gate.Hold()
	if !gate.ShouldDiscardAudio() {
		t.Error("Should discard audio while held")
	}

	release()
	if gate.ShouldDiscardAudio() {
		t.Error("Should not discard audio after release")
	}
}

func TestAudioGateNestedHolds(t *testing.T) {
	gate := NewAudioGate()

	first := gate.Hold()
	second := gate.Hold()

	first()
	if !gate.ShouldDiscardAudio() {
		t.Error("gate should stay closed while another hold is outstanding")
	}

	first() // releasing twice is a no-op
	if !gate.ShouldDiscardAudio() {
		t.Error("double release must not open the gate early")
	}

	second()
	if gate.ShouldDiscardAudio() {
		t.Error("gate should open once every hold is released")
	}
}

func TestAudioGateConcurrency(t *testing.T) {
	gate := NewAudioGate()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				release := gate.Hold()
				_ = gate.ShouldDiscardAudio()
				release()
			}
		}()
	}
	wg.Wait()

	if gate.ShouldDiscardAudio() {
		t.Error("all holds released, gate should be open")
	}
}

func TestOpenGate(t *testing.T) {
	var gate AudioGate = OpenGate{}
	release := gate.Hold()
	defer release()
	if gate.ShouldDiscardAudio() {
		t.Error("OpenGate never discards")
	}
}
