package core

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogEnvVar names the environment variable that controls the global log level.
const LogEnvVar = "DEBUG_HANNDB"

// init initializes the logging configuration based on the DEBUG_HANNDB environment variable.
func init() {
	ConfigureLogging(os.Getenv(LogEnvVar))
}

// ConfigureLogging sets the global zerolog level from a DEBUG_HANNDB style value:
// "off" or "0" disables logging, "full" enables debug output, anything else means info.
func ConfigureLogging(mode string) zerolog.Level {
	level := zerolog.InfoLevel
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "off", "0":
		level = zerolog.Disabled
	case "full":
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}
