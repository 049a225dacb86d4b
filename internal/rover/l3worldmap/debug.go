package l3worldmap

import (
	"io"
	"log"
)

// Streams stay silent until SetLogWriters enables them.
var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the l3worldmap package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[l3worldmap] ", ops)
	diagLogger = newLogger("[l3worldmap] ", diag)
	traceLogger = newLogger("[l3worldmap] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf reports a snapshot that could not be encoded or stored. The live map
// is unaffected.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf notes each persisted snapshot with its reason, mapped percentage
// and blob size.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef prints the cells written per channel by every Update.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
