package audio

import (
	"sync"
	"testing"
)

type recordingOutput struct {
	mu     sync.Mutex
	frames map[string][][]float32
	closed map[string]bool
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{frames: map[string][][]float32{}, closed: map[string]bool{}}
}

func (o *recordingOutput) Open(id string) Destination { return &recordingInput{o: o, id: id} }

type recordingInput struct {
	o  *recordingOutput
	id string
}

func (i *recordingInput) Write(stereo []float32) error {
	i.o.mu.Lock()
	defer i.o.mu.Unlock()
	i.o.frames[i.id] = append(i.o.frames[i.id], append([]float32(nil), stereo...))
	return nil
}

func (i *recordingInput) Close() error {
	i.o.mu.Lock()
	defer i.o.mu.Unlock()
	i.o.closed[i.id] = true
	return nil
}

func TestGainNode(t *testing.T) {
	g := NewGainNode()
	if g.Gain() != 1 {
		t.Fatalf("default gain = %v, want 1", g.Gain())
	}
	for _, v := range []float64{0, 0.25, 1, 1.5, -2} {
		g.SetGain(v)
		if g.Gain() != v {
			t.Errorf("SetGain(%v) -> %v", v, g.Gain())
		}
	}

	g.SetGain(0.5)
	buf := []float32{1, -1, 0.5}
	g.Process(buf)
	if buf[0] != 0.5 || buf[1] != -0.5 || buf[2] != 0.25 {
		t.Errorf("Process = %v", buf)
	}
}

func TestChainPush(t *testing.T) {
	out := newRecordingOutput()
	ctx := NewContext(out)

	gain := ctx.CreateGain()
	gain.SetGain(0.5)
	panner := ctx.CreatePanner()
	panner.SetPosition(1, 0, 0)

	chain := NewChain(ctx, "P1", gain, panner)
	if err := chain.Push([]float32{1, 1}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	frames := out.frames["P1"]
	if len(frames) != 1 || len(frames[0]) != 4 {
		t.Fatalf("frames = %v", frames)
	}
	if !approx(float64(frames[0][1]), 0.5) || !approx(float64(frames[0][0]), 0) {
		t.Errorf("frame = %v, want right channel at 0.5", frames[0])
	}
	if !out.closed["P1"] {
		t.Error("input not closed")
	}
}
