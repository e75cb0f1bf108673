// Package telemetry sends fatal and reported errors to Sentry. It is off
// unless a DSN is configured.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wakefire/wakefire/internal/buildinfo"
	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
)

// DefaultFlushTimeout bounds the flush on shutdown.
const DefaultFlushTimeout = 2 * time.Second

// Reporter forwards EnhancedErrors to Sentry. It implements errors.Reporter.
type Reporter struct {
	hub *sentry.Hub
	log logger.Logger
}

// NewSentryReporter builds a Reporter for dsn with privacy filtering.
func NewSentryReporter(dsn string, build *buildinfo.Context, log logger.Logger) (*Reporter, error) {
	return NewReporter(sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		Release:          build.Release(),
	}, log)
}

// NewReporter builds a Reporter from explicit client options. BeforeSend is
// always replaced by the privacy filter.
func NewReporter(opts sentry.ClientOptions, log logger.Logger) (*Reporter, error) {
	if log == nil {
		log = logger.Global().Module("telemetry")
	}
	opts.ServerName = ""
	opts.BeforeSend = func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		return applyPrivacyFilters(event)
	}

	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Reporter{
		hub: sentry.NewHub(client, sentry.NewScope()),
		log: log,
	}, nil
}

// Install makes r the process-wide error reporter.
func (r *Reporter) Install() {
	errors.SetReporter(r)
	r.log.Info("error reporting enabled")
}

// ReportError implements errors.Reporter.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if ee == nil {
		return
	}
	message := logger.RedactSensitiveData(ee.Error())
	title := fmt.Sprintf("%s: %s", ee.GetComponent(), ee.GetCategory())

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		scope.SetFingerprint([]string{title})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		if op, ok := ee.GetContext()["operation"].(string); ok {
			event.Extra = map[string]any{"operation": op}
		}
		r.hub.CaptureEvent(event)
	})
	r.log.Debug("error reported",
		logger.String("component", ee.GetComponent()),
		logger.String("category", ee.GetCategory()))
}

// Close uninstalls the reporter and flushes pending events.
func (r *Reporter) Close(timeout time.Duration) bool {
	errors.SetReporter(nil)
	return r.hub.Flush(timeout)
}

// applyPrivacyFilters strips host, user and runtime details from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "operation" {
			delete(event.Extra, k)
		}
	}
	return event
}
