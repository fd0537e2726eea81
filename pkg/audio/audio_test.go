package audio

import "testing"

func TestInitFillsSilence(t *testing.T) {
	var p Pipeline
	if err := p.Init(16); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i, s := range p.LeftBuffer() {
		if s != Silence {
			t.Fatalf("left[%d] = %#x, want silence %#x", i, s, Silence)
		}
	}
	for i, s := range p.RightBuffer() {
		if s != Silence {
			t.Fatalf("right[%d] = %#x, want silence %#x", i, s, Silence)
		}
	}
	if p.State() != StateReady {
		t.Errorf("State after Init = %v, want READY", p.State())
	}
}

func TestInitRejectsZero(t *testing.T) {
	var p Pipeline
	if err := p.Init(0); err == nil {
		t.Fatal("expected error for n=0")
	}
}

func TestStartStopStateMachine(t *testing.T) {
	var p Pipeline
	p.Init(8)

	if err := p.Stop(); err == nil {
		t.Fatal("Stop before Start should fail")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != StatePlaying {
		t.Errorf("State = %v, want PLAYING", p.State())
	}
	if err := p.Start(); err == nil {
		t.Fatal("Start while already PLAYING should fail")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.State() != StateReady {
		t.Errorf("State = %v, want READY", p.State())
	}
}

func TestSetErrorIsTerminal(t *testing.T) {
	var p Pipeline
	p.Init(8)
	p.Start()
	p.SetError()
	if p.State() != StateError {
		t.Errorf("State = %v, want ERROR", p.State())
	}
	if err := p.Stop(); err == nil {
		t.Fatal("Stop from ERROR should fail")
	}
}

func TestHalfCompleteTogglesFillHalfAndRequestsRefill(t *testing.T) {
	var p Pipeline
	p.Init(8)
	p.Start()

	if p.NeedsRefill() {
		t.Fatal("NeedsRefill should be false before any ISR call")
	}

	p.HandleHalfComplete()
	if !p.NeedsRefill() {
		t.Fatal("NeedsRefill should be true after HalfComplete")
	}
	if p.FillHalfToWrite() != FillFirst {
		t.Errorf("FillHalfToWrite = %v, want FillFirst", p.FillHalfToWrite())
	}
	if p.WriteOffset() != 0 {
		t.Errorf("WriteOffset = %d, want 0", p.WriteOffset())
	}

	p.BufferFilled()
	if p.NeedsRefill() {
		t.Fatal("NeedsRefill should clear after BufferFilled")
	}

	p.HandleTransferComplete()
	if p.FillHalfToWrite() != FillSecond {
		t.Errorf("FillHalfToWrite = %v, want FillSecond", p.FillHalfToWrite())
	}
	if p.WriteOffset() != 8 {
		t.Errorf("WriteOffset = %d, want 8", p.WriteOffset())
	}
}

func TestUnderrunCountedWhenRefillMissed(t *testing.T) {
	var p Pipeline
	p.Init(4)
	p.Start()

	p.HandleHalfComplete() // needs_refill -> true, no prior miss
	p.HandleTransferComplete() // foreground never called BufferFilled: underrun

	stats := p.Stats()
	if stats.UnderrunCount != 1 {
		t.Errorf("UnderrunCount = %d, want 1", stats.UnderrunCount)
	}
	if stats.SamplesPlayed != 8 {
		t.Errorf("SamplesPlayed = %d, want 8", stats.SamplesPlayed)
	}
}

func TestRefillCountTracksSamples(t *testing.T) {
	var p Pipeline
	p.Init(10)
	p.Start()

	p.HandleHalfComplete()
	p.BufferFilled()
	p.HandleTransferComplete()
	p.BufferFilled()

	stats := p.Stats()
	if stats.RefillCount != 20 {
		t.Errorf("RefillCount = %d, want 20", stats.RefillCount)
	}
}

type fakeSink struct {
	total uint64
	calls int
}

func (f *fakeSink) AudioTick(n uint64) {
	f.total += n
	f.calls++
}

func TestSinkReceivesAudioTicks(t *testing.T) {
	var p Pipeline
	p.Init(16)
	sink := &fakeSink{}
	p.AttachSink(sink)
	p.Start()

	p.HandleHalfComplete()
	p.HandleTransferComplete()
	p.HandleHalfComplete()

	if sink.calls != 3 {
		t.Errorf("sink calls = %d, want 3", sink.calls)
	}
	if sink.total != 48 {
		t.Errorf("sink total samples = %d, want 48", sink.total)
	}
}

func TestNoSinkIsSafe(t *testing.T) {
	var p Pipeline
	p.Init(4)
	p.Start()
	p.HandleHalfComplete() // must not panic with no sink attached
}
