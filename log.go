package uco

import (
	"os"

	"github.com/rs/zerolog"
)

// newDefaultLogger mirrors the pack's izerolog convention of a single
// component logger handed field values keyed by entity id (tid/sock/lock)
// rather than formatted into the message. Consumers of Start can override
// it via Config-adjacent WithLogger (see runtime.go).
func newDefaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Str("component", "uco").
		Logger()
}
