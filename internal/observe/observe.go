package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mnemo")

// Observer bundles the structured logger and tracer used across mnemo.
type Observer struct {
	log *bolt.Logger
}

// New creates an Observer writing human readable lines to out.
// Unless verbose is set only warnings and errors are emitted.
func New(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.New(bolt.NewConsoleHandler(out)), verbose)
}

// NewJSON creates an Observer writing one JSON object per line to out.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.New(bolt.NewJSONHandler(out)), verbose)
}

// Nop returns an Observer that drops everything it is given.
func Nop() *Observer {
	return newObserver(bolt.New(bolt.NewJSONHandler(io.Discard)), false)
}

func newObserver(l *bolt.Logger, verbose bool) *Observer {
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Close flushes buffered output. Bolt writes synchronously, so there is nothing to do yet.
func (o *Observer) Close() error {
	return nil
}
