package audio

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Synth is a microphone stand-in that pushes generated sine-plus-noise
// buffers on the same Source contract as Capture. Used by the -no-audio
// mode and by tests that must run without a device.
type Synth struct {
	rng   *rand.Rand
	phase float64

	out      chan []float32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

const (
	synthBufferLen = 512
	synthInterval  = 20 * time.Millisecond
)

// NewSynth creates a synthetic source. Call Start to begin producing.
func NewSynth() *Synth {
	return &Synth{
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		out:  make(chan []float32, channelDepth),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the generator goroutine. It honors the same shutdown
// signal as the real capture thread.
func (s *Synth) Start() error {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(synthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				close(s.out)
				return
			case <-ticker.C:
				select {
				case s.out <- s.next():
				default:
				}
			}
		}
	}()
	return nil
}

// Buffers implements Source.
func (s *Synth) Buffers() <-chan []float32 { return s.out }

// Signal implements Source.
func (s *Synth) Signal() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done implements Source.
func (s *Synth) Done() <-chan struct{} { return s.done }

func (s *Synth) next() []float32 {
	// Slow envelope so the bars visibly swell and fade.
	s.phase += 0.13
	envelope := 0.03 + 0.05*(1+math.Sin(s.phase))/2

	buf := make([]float32, synthBufferLen)
	for i := range buf {
		tone := math.Sin(float64(i) * 0.21)
		noise := s.rng.Float64()*2 - 1
		buf[i] = float32(envelope * (0.8*tone + 0.2*noise))
	}
	return buf
}
