package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Source is the contract between a sample producer and the control loop:
// a FIFO stream of mono buffers, a one-shot stop signal, and a done
// channel that closes once the producer has fully shut down.
type Source interface {
	// Buffers returns the sample channel. It is closed after the producer
	// stops, so a drain can tell "no data right now" from "producer gone".
	Buffers() <-chan []float32
	// Signal requests shutdown. Safe to call more than once; only the
	// first call has any effect.
	Signal()
	// Done closes when the producer has stopped its stream and exited.
	Done() <-chan struct{}
}

const (
	// channelDepth bounds the sample channel. At typical callback sizes
	// this holds several seconds of audio; the callback drops rather than
	// blocks when the control thread falls that far behind.
	channelDepth = 256

	// pollInterval is how often the capture goroutine checks the shutdown
	// signal. Coarse on purpose, stopping is not latency-critical.
	pollInterval = 50 * time.Millisecond
)

// Capture owns a PortAudio input stream and forwards every callback
// invocation as one immutable buffer on the sample channel.
type Capture struct {
	stream     *portaudio.Stream
	device     *portaudio.DeviceInfo
	sampleRate float64
	channels   int
	log        zerolog.Logger

	out      chan []float32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	dropped  atomic.Uint64
}

// Config controls how a Capture instance is created.
type Config struct {
	// DeviceName optionally selects an input device by substring match.
	// Empty means the platform default.
	DeviceName string
	Log        zerolog.Logger
}

// NewCapture selects an input device and opens a stream with the device's
// default sample rate. The stream is not started yet; call Start.
func NewCapture(cfg Config) (*Capture, error) {
	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	c := &Capture{
		device:     device,
		sampleRate: device.DefaultSampleRate,
		channels:   channels,
		log:        cfg.Log,
		out:        make(chan []float32, channelDepth),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	c.stream = stream

	return c, nil
}

// Start begins capturing and launches the goroutine that polls the
// shutdown signal. Exactly one stream start and one stream stop happen
// per Capture.
func (c *Capture) Start() error {
	if err := c.stream.Start(); err != nil {
		_ = c.stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				if err := c.stream.Stop(); err != nil && !isInvalidStreamState(err) {
					c.log.Warn().Err(err).Msg("stop stream")
				}
				if err := c.stream.Close(); err != nil {
					c.log.Warn().Err(err).Msg("close stream")
				}
				// Stop has returned, so the callback can no longer fire
				// and closing the channel is safe.
				close(c.out)
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

// Buffers implements Source.
func (c *Capture) Buffers() <-chan []float32 { return c.out }

// Signal implements Source.
func (c *Capture) Signal() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done implements Source.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Device returns the PortAudio device backing the stream.
func (c *Capture) Device() *portaudio.DeviceInfo { return c.device }

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 { return c.sampleRate }

// Dropped returns how many buffers were discarded because the sample
// channel was full.
func (c *Capture) Dropped() uint64 { return c.dropped.Load() }

// process runs on the PortAudio callback thread. It must return quickly
// and never block: one bounded copy, one non-blocking send.
func (c *Capture) process(in []float32) {
	if len(in) == 0 {
		return
	}
	samples := downmix(in, c.channels)
	select {
	case c.out <- samples:
	default:
		c.dropped.Add(1)
	}
}

// downmix copies interleaved input into a fresh mono buffer, averaging
// channels when there is more than one.
func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		mono := make([]float32, len(in))
		copy(mono, in)
		return mono
	}
	mono := make([]float32, len(in)/channels)
	for i := range mono {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}

	return nil, fmt.Errorf("no suitable audio input device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", name)
}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	defaultInputIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}

	defaultHostIndex := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHostIndex = host.DefaultInputDevice.Index
	}

	var results []scored
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}

		score := d.MaxInputChannels
		if d.Index == defaultInputIndex {
			score += 50
		}
		if d.Index == defaultHostIndex {
			score += 40
		}
		if strings.Contains(strings.ToLower(d.Name), "default") {
			score += 10
		}

		results = append(results, scored{dev: d, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// isInvalidStreamState reports whether the error stems from stopping an
// already stopped stream.
func isInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
