package audio

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestDownmixMonoCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := downmix(in, 1)
	if len(out) != 3 {
		t.Fatalf("len=%d want=3", len(out))
	}
	in[0] = 9
	if out[0] != 0.1 {
		t.Fatalf("downmix must copy, got aliased buffer")
	}
}

func TestDownmixStereoAverages(t *testing.T) {
	in := []float32{0.2, 0.4, -0.5, 0.5}
	out := downmix(in, 2)
	if len(out) != 2 {
		t.Fatalf("len=%d want=2", len(out))
	}
	if out[0] != 0.3 {
		t.Fatalf("out[0]=%f want=0.3", out[0])
	}
	if out[1] != 0 {
		t.Fatalf("out[1]=%f want=0", out[1])
	}
}

func TestProcessIgnoresEmptyCallback(t *testing.T) {
	c := &Capture{
		channels: 1,
		out:      make(chan []float32, 1),
	}
	c.process(nil)
	select {
	case buf := <-c.out:
		t.Fatalf("empty callback must not push, got %d samples", len(buf))
	default:
	}
}

func TestProcessNeverBlocks(t *testing.T) {
	c := &Capture{
		channels: 1,
		out:      make(chan []float32, 2),
	}
	for i := 0; i < 5; i++ {
		c.process([]float32{0.1, 0.2})
	}
	if got := c.Dropped(); got != 3 {
		t.Fatalf("dropped=%d want=3", got)
	}
	if len(c.out) != 2 {
		t.Fatalf("channel len=%d want=2", len(c.out))
	}
}

func TestProcessPreservesOrder(t *testing.T) {
	c := &Capture{
		channels: 1,
		out:      make(chan []float32, 8),
	}
	c.process([]float32{1})
	c.process([]float32{2})
	c.process([]float32{3})
	for want := float32(1); want <= 3; want++ {
		buf := <-c.out
		if buf[0] != want {
			t.Fatalf("got %f want %f (FIFO order violated)", buf[0], want)
		}
	}
}

func TestSignalIsIdempotent(t *testing.T) {
	c := &Capture{
		log:  zerolog.Nop(),
		stop: make(chan struct{}),
	}
	c.Signal()
	c.Signal()
	select {
	case <-c.stop:
	default:
		t.Fatalf("stop channel not closed after Signal")
	}
}

func TestSynthStopsOnSignal(t *testing.T) {
	s := NewSynth()
	if err := s.Start(); err != nil {
		t.Fatalf("start synth: %v", err)
	}
	s.Signal()
	s.Signal()
	<-s.Done()

	// After shutdown the channel drains to closed.
	for range s.Buffers() {
	}
}

func TestSynthBufferShape(t *testing.T) {
	s := NewSynth()
	buf := s.next()
	if len(buf) != synthBufferLen {
		t.Fatalf("len=%d want=%d", len(buf), synthBufferLen)
	}
	for i, v := range buf {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d = %f outside [-1,1]", i, v)
		}
	}
}
