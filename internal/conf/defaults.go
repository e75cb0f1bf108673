// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/wakefire/wakefire/internal/gpio"
	"github.com/wakefire/wakefire/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("wakeword.accesskey", "")
	v.SetDefault("wakeword.modelpath", "")
	v.SetDefault("wakeword.keywords", []string{"porcupine"})
	v.SetDefault("wakeword.keywordpaths", []string{})
	v.SetDefault("wakeword.sensitivity", 1.0)

	v.SetDefault("trigger.minrefireinterval", 2*time.Second)
	v.SetDefault("trigger.pollinterval", 200*time.Millisecond)
	v.SetDefault("trigger.pulseduration", 500*time.Millisecond)

	pins := gpio.DefaultPins()
	v.SetDefault("gpio.enabled", true)
	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.debounce", 100*time.Millisecond)
	v.SetDefault("gpio.pins.fire", pins.Fire)
	v.SetDefault("gpio.pins.fireled", pins.FireLED)
	v.SetDefault("gpio.pins.micled", pins.MicLED)
	v.SetDefault("gpio.pins.runningled", pins.RunningLED)
	v.SetDefault("gpio.pins.shutdownbutton", pins.ShutdownButton)
	v.SetDefault("gpio.pins.firebutton", pins.FireButton)

	v.SetDefault("audio.debugpath", "")
	v.SetDefault("audio.exclude", []string{})

	v.SetDefault("shutdown.command", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", ":9090")

	v.SetDefault("sentry.dsn", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
