package meter

import (
	"math"
	"testing"
)

func TestLevelsSilence(t *testing.T) {
	values, ok := Levels([]float32{0, 0, 0, 0}, 2)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	if len(values) != 2 {
		t.Fatalf("len=%d want=2", len(values))
	}
	for i, v := range values {
		if v != 0 {
			t.Fatalf("values[%d]=%f want=0", i, v)
		}
	}
}

func TestLevelsFullScaleClamps(t *testing.T) {
	values, ok := Levels([]float32{1, -1, 1, -1}, 2)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	for i, v := range values {
		if v != 1.0 {
			t.Fatalf("values[%d]=%f want=1.0 (RMS 1.0 scaled and clamped)", i, v)
		}
	}
}

func TestLevelsSkipsShortBuffer(t *testing.T) {
	if _, ok := Levels(make([]float32, 3), 10); ok {
		t.Fatalf("buffer shorter than bar count must be skipped")
	}
	if _, ok := Levels(nil, 10); ok {
		t.Fatalf("empty buffer must be skipped")
	}
}

func TestLevelsLastChunkAbsorbsRemainder(t *testing.T) {
	// 7 samples over 2 bars: chunk=3, last chunk spans samples[3:7].
	samples := []float32{0, 0, 0, 0.05, 0.05, 0.05, 0.05}
	values, ok := Levels(samples, 2)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	if values[0] != 0 {
		t.Fatalf("values[0]=%f want=0", values[0])
	}
	want := math.Min(0.05*Gain, Ceiling)
	if math.Abs(values[1]-want) > 1e-9 {
		t.Fatalf("values[1]=%f want=%f", values[1], want)
	}
}

func TestLevelsSingleSampleChunk(t *testing.T) {
	// chunk length 1: RMS degenerates to the absolute sample value.
	values, ok := Levels([]float32{-0.04, 0.02}, 2)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	if math.Abs(values[0]-0.4) > 1e-6 {
		t.Fatalf("values[0]=%f want=0.4", values[0])
	}
	if math.Abs(values[1]-0.2) > 1e-6 {
		t.Fatalf("values[1]=%f want=0.2", values[1])
	}
}

func TestLevelsIsPure(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}
	first, ok := Levels(samples, 3)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	second, _ := Levels(samples, 3)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("aggregation not deterministic at %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestLevelsBounds(t *testing.T) {
	samples := make([]float32, 480)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.37))
	}
	values, ok := Levels(samples, 12)
	if !ok {
		t.Fatalf("expected aggregation to run")
	}
	if len(values) != 12 {
		t.Fatalf("len=%d want=12", len(values))
	}
	for i, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("values[%d]=%f out of [0,1]", i, v)
		}
	}
}

func TestBarsForWidth(t *testing.T) {
	cases := map[int]int{
		0:   MinBars,
		3:   MinBars,
		23:  MinBars,
		24:  10,
		40:  18,
		80:  38,
		120: 58,
	}
	for width, want := range cases {
		if got := BarsForWidth(width); got != want {
			t.Fatalf("BarsForWidth(%d)=%d want=%d", width, got, want)
		}
	}
}

func TestStoreUpdateSkipKeepsValues(t *testing.T) {
	s := NewStore(10)
	full := make([]float32, 100)
	for i := range full {
		full[i] = 0.05
	}
	if !s.Update(full) {
		t.Fatalf("expected update to apply")
	}
	before := s.Values()

	if s.Update(make([]float32, 3)) {
		t.Fatalf("short buffer must not update the store")
	}
	after := s.Values()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("value %d changed across a skipped update", i)
		}
	}
}

func TestStoreResizeGrowPreservesPrefix(t *testing.T) {
	s := NewStore(18)
	samples := make([]float32, 180)
	for i := range samples {
		samples[i] = float32(i%7) * 0.01
	}
	s.Update(samples)
	before := s.Values()

	s.Resize(38)
	after := s.Values()
	if len(after) != 38 {
		t.Fatalf("count=%d want=38", len(after))
	}
	for i := 0; i < 18; i++ {
		if after[i] != before[i] {
			t.Fatalf("value %d not preserved across grow", i)
		}
	}
	for i := 18; i < 38; i++ {
		if after[i] != 0 {
			t.Fatalf("new slot %d not zero", i)
		}
	}
}

func TestStoreResizeShrinkTruncates(t *testing.T) {
	s := NewStore(38)
	samples := make([]float32, 380)
	for i := range samples {
		samples[i] = float32(i%5) * 0.01
	}
	s.Update(samples)
	before := s.Values()

	s.Resize(18)
	after := s.Values()
	if len(after) != 18 {
		t.Fatalf("count=%d want=18", len(after))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Fatalf("value %d changed across shrink", i)
		}
	}
}

func TestStoreFloorsCount(t *testing.T) {
	s := NewStore(2)
	if s.Count() != MinBars {
		t.Fatalf("count=%d want=%d", s.Count(), MinBars)
	}
	s.Resize(1)
	if s.Count() != MinBars {
		t.Fatalf("count after resize=%d want=%d", s.Count(), MinBars)
	}
}
