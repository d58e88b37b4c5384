// Package logger is a thin tagged facade over zerolog's console writer.
// Every line carries a short subsystem tag ("DB", "Exchange", "Monitor") so
// interleaved output from concurrent workers stays attributable.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// stdoutWriter resolves os.Stdout at write time so test harnesses can
// redirect output after package init.
type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

var log = zerolog.New(zerolog.ConsoleWriter{
	Out:        stdoutWriter{},
	TimeFormat: "15:04:05",
	NoColor:    os.Getenv("NO_COLOR") != "",
}).With().Timestamp().Logger()

// Info logs a routine progress message under the given tag.
func Info(tag, msg string) {
	log.Info().Str("tag", tag).Msg(msg)
}

// Success logs a completed step. Same level as Info, marked ok so it is
// greppable in captured output.
func Success(tag, msg string) {
	log.Info().Str("tag", tag).Bool("ok", true).Msg(msg)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	log.Warn().Str("tag", tag).Msg(msg)
}

// Error logs a failure. It does not exit; callers decide severity.
func Error(tag, msg string) {
	log.Error().Str("tag", tag).Msg(msg)
}

// Banner prints the startup header with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(os.Stdout, "\n  ladderwatch %s\n  %s\n\n", version, strings.Repeat("─", 40))
}

// Section prints a visual divider before a block of Stats lines.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n── %s %s\n", title, strings.Repeat("─", max(0, 36-len(title))))
}

// Stats prints one aligned key/value line under the current Section.
func Stats(label string, value interface{}) {
	fmt.Fprintf(os.Stdout, "   %-18s %v\n", label, value)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
