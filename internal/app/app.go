package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/micbar/internal/audio"
	"github.com/guidoenr/micbar/internal/meter"
	"github.com/guidoenr/micbar/internal/render"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config configures the application runtime.
type Config struct {
	Source      audio.Source
	DeviceLabel string
	TargetFPS   float64
	Log         zerolog.Logger
	Out         io.Writer
}

type inputEvent int

const (
	inputEventStop inputEvent = iota
	inputEventQuit
)

// App runs the control loop: drain samples, track terminal width, render,
// dispatch input. The audio side only ever sees the shutdown signal.
type App struct {
	cfg      Config
	source   audio.Source
	samples  <-chan []float32
	store    *meter.Store
	renderer *render.Renderer
	log      zerolog.Logger
	out      io.Writer

	inputEvents chan inputEvent

	status       render.Status
	signalled    bool
	disconnected bool
	width        int
	height       int

	// termSize is swapped out by tests.
	termSize func() (int, int, error)
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("nil sample source")
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	a := &App{
		cfg:      cfg,
		source:   cfg.Source,
		samples:  cfg.Source.Buffers(),
		log:      cfg.Log,
		out:      cfg.Out,
		status:   render.StatusRecording,
		width:    80,
		height:   24,
		termSize: stdoutSize,
	}

	if w, h, err := a.termSize(); err == nil && w > 0 && h > 0 {
		a.width, a.height = w, h
	}

	renderer, err := render.New(a.width, a.height, true)
	if err != nil {
		return nil, err
	}
	a.renderer = renderer
	a.store = meter.NewStore(meter.BarsForWidth(a.width))

	return a, nil
}

// Run drives the loop until quit or context cancellation. On exit the
// shutdown signal has been sent exactly once and the capture side has
// been waited on; no audio goroutine survives this call.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	a.enterScreen()
	defer a.exitScreen()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.inputEvents == nil {
		a.startInputListener(inputCtx)
	}

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			switch evt {
			case inputEventStop:
				a.handleStop()
			case inputEventQuit:
				a.shutdown()
				return nil
			}
		case <-ticker.C:
			a.step()
		}
	}
}

// step is one frame: drain, resize, render.
func (a *App) step() {
	a.drainSamples()
	a.ensureDimensions()
	a.draw()
}

// drainSamples consumes everything currently queued, in arrival order. A
// closed channel means the capture side is gone; the UI keeps running
// with the last values.
func (a *App) drainSamples() {
	for {
		select {
		case buf, ok := <-a.samples:
			if !ok {
				a.samples = nil
				if !a.disconnected {
					a.disconnected = true
					a.log.Debug().Msg("sample channel closed")
				}
				return
			}
			a.store.Update(buf)
		default:
			return
		}
	}
}

// handleStop transitions Recording -> Stopped once; later stop presses
// are no-ops.
func (a *App) handleStop() {
	if a.status != render.StatusRecording {
		return
	}
	a.status = render.StatusStopped
	a.sendSignal()
	a.log.Info().Msg("recording stopped")
}

func (a *App) sendSignal() {
	if a.signalled {
		return
	}
	a.signalled = true
	a.source.Signal()
}

// shutdown sends the signal if stop never did, then waits for the capture
// side to finish.
func (a *App) shutdown() {
	a.sendSignal()
	<-a.source.Done()
}

// ensureDimensions re-reads the terminal size and resizes the store and
// renderer when the width changed since the last frame. Resize events are
// not consumed anywhere; this per-draw comparison is the only detector.
func (a *App) ensureDimensions() {
	w, h, err := a.termSize()
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	a.renderer.Resize(w, h)
	a.store.Resize(meter.BarsForWidth(w))
}

func (a *App) draw() {
	frame := a.renderer.Render(a.store.Values(), a.status, a.statusNote())
	a.moveCursorHome()
	fmt.Fprint(a.out, strings.Join(frame.Lines, "\r\n"))
}

func (a *App) statusNote() string {
	note := a.cfg.DeviceLabel
	if d, ok := a.source.(interface{ Dropped() uint64 }); ok {
		if n := d.Dropped(); n > 0 {
			note = fmt.Sprintf("%s drop=%d", note, n)
		}
	}
	if a.disconnected {
		note += " (no input)"
	}
	if note == "" {
		return ""
	}
	return " " + strings.TrimSpace(note) + " "
}

// Disconnected reports whether the sample channel has closed underneath
// the loop.
func (a *App) Disconnected() bool { return a.disconnected }

// Status returns the current recording state.
func (a *App) Status() render.Status { return a.status }

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Warn().Err(err).Msg("keyboard input disabled")
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
				events <- inputEventQuit
				return
			case char == 'q' || char == 'Q':
				events <- inputEventQuit
				return
			case key == keyboard.KeySpace:
				select {
				case events <- inputEventStop:
				default:
				}
			}
		}
	}()
}

func stdoutSize() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

func (a *App) enterScreen() {
	fmt.Fprint(a.out, "\x1b[?1049h\x1b[2J\x1b[?25l")
}

func (a *App) exitScreen() {
	fmt.Fprint(a.out, "\x1b[?25h\x1b[?1049l\x1b[0m")
}

func (a *App) moveCursorHome() {
	fmt.Fprint(a.out, "\x1b[H")
}
