package display

import "testing"

func indicesPermutation(p *Pipeline) bool {
	seen := map[int]bool{p.renderIdx: true, p.readyIdx: true, p.transferIdx: true}
	return len(seen) == 3
}

func TestNewIsPermutation(t *testing.T) {
	p := New()
	if !indicesPermutation(p) {
		t.Fatalf("indices not a permutation: render=%d ready=%d transfer=%d", p.renderIdx, p.readyIdx, p.transferIdx)
	}
	if p.HasFrame() {
		t.Fatal("HasFrame should be false before any SwapBuffers")
	}
}

func TestSwapBuffersSetsHasFrame(t *testing.T) {
	p := New()
	rb := p.RenderBuffer()
	rb[0] = 0xAB

	p.SwapBuffers()
	if !p.HasFrame() {
		t.Fatal("HasFrame should be true after SwapBuffers")
	}
	if !indicesPermutation(p) {
		t.Fatal("indices not a permutation after SwapBuffers")
	}
}

func TestStartTransferAdoptsReadyFrame(t *testing.T) {
	p := New()
	rb := p.RenderBuffer()
	rb[0] = 0xCD
	p.SwapBuffers()

	adopted, err := p.StartTransfer()
	if err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	if !adopted {
		t.Fatal("expected StartTransfer to adopt the ready frame")
	}
	if p.HasFrame() {
		t.Fatal("HasFrame should be false once adopted")
	}
	if tb := p.TransferBuffer(); tb[0] != 0xCD {
		t.Errorf("TransferBuffer()[0] = %#x, want 0xCD", tb[0])
	}
	if !indicesPermutation(p) {
		t.Fatal("indices not a permutation after StartTransfer")
	}
}

func TestStartTransferWithoutFrameRepeatsLast(t *testing.T) {
	p := New()
	rb := p.RenderBuffer()
	rb[0] = 0x11
	p.SwapBuffers()
	p.StartTransfer()
	p.TransferComplete()

	adopted, err := p.StartTransfer()
	if err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	if adopted {
		t.Fatal("expected no new frame to be adopted")
	}
	if tb := p.TransferBuffer(); tb[0] != 0x11 {
		t.Errorf("TransferBuffer()[0] = %#x, want repeated 0x11", tb[0])
	}
}

func TestStartTransferRejectsOverlap(t *testing.T) {
	p := New()
	p.RenderBuffer()
	p.SwapBuffers()
	if _, err := p.StartTransfer(); err != nil {
		t.Fatalf("first StartTransfer: %v", err)
	}
	if _, err := p.StartTransfer(); err == nil {
		t.Fatal("expected second StartTransfer to fail while one is in flight")
	}
	p.TransferComplete()
	if _, err := p.StartTransfer(); err != nil {
		t.Fatalf("StartTransfer after TransferComplete: %v", err)
	}
}

// TestStatsUnderBackPressure replays spec §8 scenario 6: render A (swap),
// render B (swap before any transfer started) so B lands in ready and A is
// overwritten; start_transfer now transfers B.
func TestStatsUnderBackPressure(t *testing.T) {
	p := New()

	rb := p.RenderBuffer()
	rb[0] = 'A'
	p.SwapBuffers() // frame A rendered

	rb = p.RenderBuffer()
	rb[0] = 'B'
	p.SwapBuffers() // frame B rendered, overwrites A before any transfer

	if stats := p.Stats(); stats.FramesRendered != 2 || stats.FramesTransferred != 0 {
		t.Fatalf("stats = %+v, want rendered=2 transferred=0", stats)
	}

	adopted, err := p.StartTransfer()
	if err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	if !adopted {
		t.Fatal("expected StartTransfer to adopt frame B")
	}
	if stats := p.Stats(); stats.FramesTransferred != 0 {
		t.Fatalf("FramesTransferred = %d, want 0 before the completion ISR", stats.FramesTransferred)
	}

	p.TransferComplete()
	if stats := p.Stats(); stats.FramesRendered != 2 || stats.FramesTransferred != 1 {
		t.Fatalf("stats = %+v, want rendered=2 transferred=1", stats)
	}
}

// TestFramesTransferredNeverExceedsRendered checks spec §8 invariant 2
// across a sequence that includes a repeated (stale) transfer, which
// must not be double-counted into frames_transferred.
func TestFramesTransferredNeverExceedsRendered(t *testing.T) {
	p := New()

	p.RenderBuffer()
	p.SwapBuffers()
	p.StartTransfer()
	p.TransferComplete()

	// No new frame rendered: StartTransfer repeats the stale buffer.
	adopted, err := p.StartTransfer()
	if err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	if adopted {
		t.Fatal("expected no new frame to be adopted")
	}
	p.TransferComplete()

	stats := p.Stats()
	if stats.FramesTransferred > stats.FramesRendered {
		t.Fatalf("FramesTransferred (%d) > FramesRendered (%d)", stats.FramesTransferred, stats.FramesRendered)
	}
	if stats.FramesRendered != 1 || stats.FramesTransferred != 1 {
		t.Fatalf("stats = %+v, want rendered=1 transferred=1 (repeat not double-counted)", stats)
	}
}

func TestRenderAndTransferNeverShareABuffer(t *testing.T) {
	p := New()
	for i := 0; i < 10; i++ {
		rb := p.RenderBuffer()
		rb[0] = byte(i)
		p.SwapBuffers()
		p.StartTransfer()
		if &p.buffers[p.renderIdx][0] == &p.buffers[p.transferIdx][0] {
			t.Fatalf("iteration %d: render and transfer share a buffer", i)
		}
		p.TransferComplete()
	}
}
