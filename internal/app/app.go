// Package app wires configuration, hardware adapters and the trigger
// coordinator into a running process.
package app

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/buildinfo"
	"github.com/wakefire/wakefire/internal/conf"
	"github.com/wakefire/wakefire/internal/controller"
	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/gpio"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/observability"
	"github.com/wakefire/wakefire/internal/source"
	"github.com/wakefire/wakefire/internal/telemetry"
	"github.com/wakefire/wakefire/internal/wakeword"
)

// Options are run switches that do not live in the config file.
type Options struct {
	// DryRun drives the simulated actuator instead of GPIO lines.
	DryRun bool
}

// AudioBackend lists capture devices and opens recorders on them.
type AudioBackend interface {
	audio.DeviceLister
	audio.RecorderFactory
}

// ModuleLogger hands out module-scoped loggers. *logger.CentralLogger and
// logger.Logger both satisfy it.
type ModuleLogger interface {
	Module(name string) logger.Logger
}

// Hardware groups the adapters Serve runs against.
type Hardware struct {
	Audio       AudioBackend
	Actuator    gpio.Actuator
	NewDetector wakeword.Factory
}

// Run initialises logging, error reporting and the real hardware adapters,
// then serves until ctx is cancelled or the shutdown button is pressed.
func Run(ctx context.Context, settings *conf.Settings, opts Options) error {
	central, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return err
	}
	logger.SetGlobal(central)
	defer func() { _ = central.Close() }()

	log := central.Module("main")
	for _, w := range settings.Warnings {
		log.Warn("configuration warning", logger.String("warning", w))
	}

	if settings.Sentry.DSN != "" {
		reporter, err := telemetry.NewSentryReporter(settings.Sentry.DSN, buildinfo.Current(), central.Module("telemetry"))
		if err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		} else {
			reporter.Install()
			defer func() {
				errors.SetReporter(nil)
				reporter.Close(telemetry.DefaultFlushTimeout)
			}()
		}
	}

	stopRotate := rotateOnHangup(central, log)
	defer stopRotate()

	wakeCfg := settings.WakewordConfig()
	newDetector, err := wakeword.NewPorcupineFactory(wakeCfg)
	if err != nil {
		return err
	}
	log.Info("listening for wake phrases",
		logger.String("phrases", strings.Join(wakeCfg.Names(), ", ")),
		logger.Float64("sensitivity", float64(wakeCfg.Sensitivity)))

	backend, err := audio.NewBackend(central.Module("audio"))
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("audio backend close failed", logger.Error(err))
		}
	}()

	return Serve(ctx, settings, Hardware{
		Audio:       backend,
		Actuator:    newActuator(settings, opts, central),
		NewDetector: newDetector,
	}, central)
}

func newActuator(settings *conf.Settings, opts Options, central *logger.CentralLogger) gpio.Actuator {
	log := central.Module("gpio")
	if opts.DryRun || !settings.GPIO.Enabled {
		log.Info("using simulated GPIO")
		return gpio.NewSimulated(log)
	}
	return gpio.NewChip(settings.GPIO.Chip, log)
}

// Serve builds the registry, metrics and coordinator on hw and runs the
// coordinator loop. It returns when the loop stops.
func Serve(ctx context.Context, settings *conf.Settings, hw Hardware, central ModuleLogger) error {
	log := central.Module("main")

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings.Telemetry.Listen, m, central.Module("observability"))
		if err != nil {
			return err
		}
		epCtx, cancel := context.WithCancel(ctx)
		if err := endpoint.Start(epCtx); err != nil {
			cancel()
			return err
		}
		defer func() {
			cancel()
			endpoint.Wait()
		}()
	}

	var sink audio.DebugSink
	if settings.Audio.DebugPath != "" {
		sink = audio.NewWAVSink(settings.Audio.DebugPath)
		log.Info("debug audio capture enabled", logger.String("path", settings.Audio.DebugPath))
	}

	registry := source.NewRegistry(source.RegistryConfig{
		Lister:      hw.Audio,
		Recorders:   hw.Audio,
		NewDetector: hw.NewDetector,
		Filter:      audio.NewDeviceFilter(settings.Audio.Exclude...),
		Sink:        sink,
		Log:         central.Module("registry"),
		Metrics:     m.EngineMetrics(),
	})

	coordinator, err := controller.New(controller.Config{
		Registry:          registry,
		Actuator:          hw.Actuator,
		Pins:              settings.GPIO.Pins,
		MinRefireInterval: settings.Trigger.MinRefireInterval,
		PollInterval:      settings.Trigger.PollInterval,
		PulseDuration:     settings.Trigger.PulseDuration,
		ButtonDebounce:    settings.GPIO.Debounce,
		ShutdownCommand:   settings.Shutdown.Command,
		Log:               central.Module("controller"),
		Metrics:           m.EngineMetrics(),
	})
	if err != nil {
		return err
	}

	build := buildinfo.Current()
	log.Info("wakefire starting",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()),
		logger.String("config_file", settings.ConfigFile))

	err = coordinator.Run(ctx)
	log.Info("wakefire stopped", logger.String("state", coordinator.State().String()))
	return err
}

// rotateOnHangup reopens the log file on SIGHUP, for logrotate setups that
// move the file away.
func rotateOnHangup(central *logger.CentralLogger, log logger.Logger) (stop func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case <-hup:
				if err := central.Rotate(); err != nil {
					log.Warn("log rotation failed", logger.Error(err))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
		<-finished
	}
}
