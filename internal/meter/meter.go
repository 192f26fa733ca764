package meter

import (
	"math"
	"sync"
)

const (
	// Gain scales raw RMS energy into the visible range; microphone RMS
	// rarely exceeds 0.1 for normal speech.
	Gain = 10.0
	// Ceiling clamps scaled values so loud input saturates instead of
	// overflowing the bar height.
	Ceiling = 1.0
	// MinBars is the floor applied to the bar count so degenerate narrow
	// terminals still render something.
	MinBars = 10
)

// BarsForWidth maps a terminal width to a bar count: two cells per bar
// (glyph + gap) inside a 4-cell border margin, never fewer than MinBars.
func BarsForWidth(width int) int {
	usable := width - 4
	if usable < 0 {
		usable = 0
	}
	n := usable / 2
	if n < MinBars {
		n = MinBars
	}
	return n
}

// Levels reduces a sample buffer into count normalized RMS values, one per
// bar, over contiguous non-overlapping chunks. The last chunk absorbs the
// integer-division remainder. Returns ok=false when the buffer holds fewer
// samples than bars; callers must then keep their previous values.
func Levels(samples []float32, count int) ([]float64, bool) {
	if count <= 0 {
		return nil, false
	}
	chunk := len(samples) / count
	if chunk == 0 {
		return nil, false
	}

	values := make([]float64, count)
	for i := 0; i < count; i++ {
		start := i * chunk
		end := start + chunk
		if i == count-1 {
			end = len(samples)
		}
		values[i] = level(samples[start:end])
	}
	return values, true
}

func level(chunk []float32) float64 {
	sum := 0.0
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(chunk)))
	return math.Min(rms*Gain, Ceiling)
}

// Store holds the current bar values. All writes happen on the control
// thread; the mutex keeps aggregation and resize mutually exclusive and
// leaves room for future readers on other goroutines.
type Store struct {
	mu     sync.Mutex
	values []float64
}

// NewStore creates a Store with count bars, all at zero. Counts below
// MinBars are raised to the floor.
func NewStore(count int) *Store {
	if count < MinBars {
		count = MinBars
	}
	return &Store{values: make([]float64, count)}
}

// Count returns the current number of bars.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Values returns a copy of the current bar values.
func (s *Store) Values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Update aggregates one sample buffer into the store. Buffers smaller than
// the bar count are skipped whole; the previous values stay in place.
func (s *Store) Update(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := Levels(samples, len(s.values))
	if !ok {
		return false
	}
	s.values = values
	return true
}

// Resize changes the bar count, preserving existing values positionally up
// to the new length and zero-filling any new slots. Counts below MinBars
// are raised to the floor.
func (s *Store) Resize(count int) {
	if count < MinBars {
		count = MinBars
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if count == len(s.values) {
		return
	}
	next := make([]float64, count)
	copy(next, s.values)
	s.values = next
}
