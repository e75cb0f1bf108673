// env.go - Environment variable configuration and validation for wakefire
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wakefire/wakefire/internal/errors"
)

// EnvPrefix prefixes every automatically bound environment variable, so
// trigger.minrefireinterval is read from WAKEFIRE_TRIGGER_MINREFIREINTERVAL.
const EnvPrefix = "WAKEFIRE"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the short aliases for commonly overridden keys.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"wakeword.accesskey", "WAKEFIRE_ACCESS_KEY", nil},
		{"wakeword.sensitivity", "WAKEFIRE_SENSITIVITY", validateEnvSensitivity},
		{"trigger.minrefireinterval", "WAKEFIRE_MIN_REFIRE_INTERVAL", validateEnvDuration},
		{"audio.debugpath", "WAKEFIRE_DEBUG_PATH", nil},
		{"shutdown.command", "WAKEFIRE_SHUTDOWN_COMMAND", nil},
		{"sentry.dsn", "WAKEFIRE_SENTRY_DSN", nil},
		{"debug", "WAKEFIRE_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		// Explicit names are not prefixed
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s: %v", binding.EnvVar, err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf("environment variable issues: %s", strings.Join(problems, "; ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value %q: must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvSensitivity(value string) error {
	sensitivity, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid sensitivity: %w", err)
	}
	if sensitivity < 0 || sensitivity > 1 {
		return fmt.Errorf("sensitivity must be between 0.0 and 1.0, got %g", sensitivity)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}
