// internal/recovery/recovery.go
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// ErrPanic wraps a panic converted to an error by Call
var ErrPanic = errors.New("recovered panic")

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		logPanic(r)
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details, runs cleanup and exits with code 1.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		logPanic(r)
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// Call runs fn and turns a panic inside it into an error wrapping ErrPanic.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("recovered panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

func logPanic(r any) {
	slog.Error("FATAL panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
}
