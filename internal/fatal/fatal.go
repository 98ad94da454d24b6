// Package fatal escalates unrecoverable device errors to the whole run.
//
// Running out of device memory cannot be fixed by the worker that hit it,
// so the [Escalator] logs the failure at ERROR, tells the user, and then
// cancels the run through an attached [Canceler]. With no canceler attached
// it exits the process.
package fatal

import (
	"fmt"
	"os"
	"sync"

	"github.com/Iron-Ham/pciam/internal/event"
	"github.com/Iron-Ham/pciam/internal/logging"
)

// InsufficientMemoryMessage is logged and shown to the user on escalation.
const InsufficientMemoryMessage = "Insufficient graphics memory to complete stitching"

// ExitCode is the process status used when no canceler is attached.
const ExitCode = 1

// Canceler aborts a whole run. CancelExecution must be idempotent and safe
// to call from any goroutine.
type Canceler interface {
	CancelExecution()
}

// Notifier surfaces a message to the user, for example on a terminal.
type Notifier func(msg string)

// Escalator routes fatal errors to a canceler or process exit.
// It is safe for concurrent use.
type Escalator struct {
	logger *logging.Logger
	notify Notifier
	exit   func(code int)
	bus    *event.Bus

	mu       sync.Mutex
	canceler Canceler
}

// Option configures an Escalator.
type Option func(*Escalator)

// WithNotifier sets the user notification channel.
func WithNotifier(n Notifier) Option {
	return func(e *Escalator) { e.notify = n }
}

// WithExit replaces os.Exit. Tests use it to observe the exit path.
func WithExit(exit func(code int)) Option {
	return func(e *Escalator) { e.exit = exit }
}

// WithBus publishes a ResourceExhaustedEvent for each escalation.
func WithBus(bus *event.Bus) Option {
	return func(e *Escalator) { e.bus = bus }
}

// New creates an Escalator logging to logger. A nil logger discards output.
func New(logger *logging.Logger, opts ...Option) *Escalator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	e := &Escalator{
		logger: logger,
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach registers the canceler invoked on escalation, replacing any
// previous one. Passing nil detaches.
func (e *Escalator) Attach(c Canceler) {
	e.mu.Lock()
	e.canceler = c
	e.mu.Unlock()
}

// Escalate reports err as fatal for the given worker and device.
func (e *Escalator) Escalate(workerID, deviceID int, err error) {
	e.logger.Error(InsufficientMemoryMessage,
		"worker_id", workerID,
		"device_id", deviceID,
		"error", err.Error(),
	)
	if e.notify != nil {
		e.notify(fmt.Sprintf("Error: %s (device %d): %v", InsufficientMemoryMessage, deviceID, err))
	}
	if e.bus != nil {
		e.bus.Publish(event.NewResourceExhaustedEvent(workerID, deviceID, err))
	}

	e.mu.Lock()
	c := e.canceler
	e.mu.Unlock()

	if c != nil {
		c.CancelExecution()
		return
	}
	e.exit(ExitCode)
}
