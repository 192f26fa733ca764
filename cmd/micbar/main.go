package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/micbar/internal/app"
	"github.com/guidoenr/micbar/internal/audio"
)

func main() {
	var (
		deviceName = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		targetFPS  = flag.Float64("fps", 60, "Target frames per second")
		noAudio    = flag.Bool("no-audio", false, "Run with synthetic audio (for testing)")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	if *targetFPS <= 0 {
		logger.Fatal().Float64("fps", *targetFPS).Msg("fps must be positive")
	}

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize PortAudio")
		}
		defer audio.Terminate()
	}

	if *listDevs {
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatal().Err(err).Msg("list devices")
		}
		fmt.Printf("\n=== Audio Input Devices ===\n\n")
		for _, dev := range devices {
			if dev.MaxInput == 0 {
				continue
			}
			markers := ""
			if dev.IsDefaultInput {
				markers = " (default)"
			}
			fmt.Printf("- %s [%s]%s\n    inputs:%d sample:%.0f Hz\n",
				dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.DefaultSampleHz)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		source      audio.Source
		deviceLabel string
	)
	if *noAudio {
		synth := audio.NewSynth()
		if err := synth.Start(); err != nil {
			logger.Fatal().Err(err).Msg("start synthetic source")
		}
		source = synth
		deviceLabel = "synthetic"
		logger.Info().Msg("audio disabled, using synthetic generator")
	} else {
		capture, err := audio.NewCapture(audio.Config{
			DeviceName: *deviceName,
			Log:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("audio capture")
		}
		if err := capture.Start(); err != nil {
			logger.Fatal().Err(err).Msg("audio capture")
		}
		source = capture
		if info := capture.Device(); info != nil {
			deviceLabel = info.Name
			logger.Info().Str("device", info.Name).Float64("rate", capture.SampleRate()).
				Msg("audio capture started")
		}
	}

	a, err := app.New(app.Config{
		Source:      source,
		DeviceLabel: deviceLabel,
		TargetFPS:   *targetFPS,
		Log:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create app")
	}

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatal().Err(err).Msg("runtime error")
	}
}
