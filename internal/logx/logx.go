// Package logx is the simulator's structured logger: a thin zerolog wrapper
// that replaces ad hoc fmt.Printf debug traces with leveled, namespace-
// scoped loggers threaded down the call chain the way a kernel threads a
// debug flag through a block layer's bdev_debug prints.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

/// New returns a console-formatted logger writing to w (os.Stderr if nil),
/// tagged with component="conzone".
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Str("component", "conzone").Logger()
}

/// ForNamespace returns a child logger scoped to one namespace's ID and
/// kind, used by every FTL request-pipeline entry point so a run's log
/// stream can be filtered per namespace.
func ForNamespace(base zerolog.Logger, nsid int, kind string) zerolog.Logger {
	return base.With().Int("nsid", nsid).Str("ns_kind", kind).Logger()
}

/// SetLevel adjusts the package-wide minimum log level (panic/fatal/error/
/// warn/info/debug/trace), e.g. from the CLI's -log-level flag.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
