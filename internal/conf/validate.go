// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/wakefire/wakefire/internal/buildinfo"
	"github.com/wakefire/wakefire/internal/logger"
)

// ValidateSettings checks every section and collects all problems instead of
// stopping at the first one.
func ValidateSettings(settings *Settings) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()

	if err := settings.WakewordConfig().Validate(); err != nil {
		result.AddError(err.Error())
	}

	validateTriggerSettings(&settings.Trigger, result)
	validateGPIOSettings(&settings.GPIO, result)
	validateTelemetrySettings(&settings.Telemetry, result)
	validateLoggingSettings(&settings.Logging, result)

	return result
}

func validateTriggerSettings(t *TriggerSettings, result *buildinfo.ValidationResult) {
	if t.MinRefireInterval < 0 {
		result.AddError(fmt.Sprintf("trigger.minrefireinterval must not be negative, got %s", t.MinRefireInterval))
	}
	if t.PollInterval <= 0 {
		result.AddError(fmt.Sprintf("trigger.pollinterval must be positive, got %s", t.PollInterval))
	}
	if t.PulseDuration <= 0 {
		result.AddError(fmt.Sprintf("trigger.pulseduration must be positive, got %s", t.PulseDuration))
	}
	if t.PulseDuration > 0 && t.MinRefireInterval > 0 && t.PulseDuration > t.MinRefireInterval {
		result.AddWarning("trigger.pulseduration exceeds trigger.minrefireinterval; fires will be spaced by the pulse")
	}
	if t.PollInterval > time.Second {
		result.AddWarning(fmt.Sprintf("trigger.pollinterval %s delays detections noticeably", t.PollInterval))
	}
}

func validateGPIOSettings(g *GPIOSettings, result *buildinfo.ValidationResult) {
	if g.Debounce < 0 {
		result.AddError(fmt.Sprintf("gpio.debounce must not be negative, got %s", g.Debounce))
	}
	if g.Enabled && g.Chip == "" {
		result.AddError("gpio.chip is required when gpio is enabled")
	}

	pins := append(g.Pins.Outputs(), g.Pins.Inputs()...)
	for _, pin := range pins {
		if pin < 0 {
			result.AddError(fmt.Sprintf("gpio pin %d must not be negative", pin))
		}
	}
	sorted := slices.Clone(pins)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(pins) {
		result.AddError(fmt.Sprintf("gpio pins must be distinct, got %v", pins))
	}
}

func validateTelemetrySettings(t *TelemetrySettings, result *buildinfo.ValidationResult) {
	if !t.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(t.Listen); err != nil {
		result.AddError(fmt.Sprintf("telemetry.listen %q is not a host:port address: %v", t.Listen, err))
	}
}

func validateLoggingSettings(l *logger.LoggingConfig, result *buildinfo.ValidationResult) {
	levels := []string{
		"",
		string(logger.LogLevelTrace),
		string(logger.LogLevelDebug),
		string(logger.LogLevelInfo),
		string(logger.LogLevelWarn),
		string(logger.LogLevelError),
	}
	check := func(key, level string) {
		if !slices.Contains(levels, level) {
			result.AddError(fmt.Sprintf("%s %q is not a log level", key, level))
		}
	}

	check("logging.default_level", l.DefaultLevel)
	if l.Console != nil {
		check("logging.console.level", l.Console.Level)
	}
	if l.FileOutput != nil {
		check("logging.file_output.level", l.FileOutput.Level)
	}
	for module, level := range l.ModuleLevels {
		check("logging.module_levels."+module, level)
	}
}
