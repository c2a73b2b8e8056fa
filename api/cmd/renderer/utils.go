package renderer

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/breezy-desktop/xr-renderer/api/pkg/system"
)

func getCommandLineExecutable() string {
	return "xr-renderer"
}

func FatalErrorHandler(cmd *cobra.Command, msg string, code int) {
	if len(msg) > 0 {
		// add newline if needed
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		cmd.Print(msg)
	}
	os.Exit(code)
}

// setupLogging sends logs to the console and to the renderer log under the
// user's state directory. The returned func closes the log file.
func setupLogging(logLevel string) func() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})

	logFile, fileErr := system.OpenStateLog()
	if fileErr == nil {
		writers = append(writers, logFile)
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))

	if fileErr != nil {
		log.Warn().Err(fileErr).Msg("logging to console only")
		return func() {}
	}
	return func() {
		_ = logFile.Close()
	}
}
