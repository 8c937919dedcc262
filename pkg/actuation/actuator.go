package actuation

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"github.com/teslashibe/go-lockon/internal/log"
)

// Actuator emits motor actions.
type Actuator interface {
	Actuate(a Action) error
	Close() error
}

// LogActuator logs actions. Changes are logged at info, repeats at debug.
type LogActuator struct {
	logger *slog.Logger
	last   Action
}

// NewLogActuator creates a logging actuator. A nil logger uses the
// component logger.
func NewLogActuator(logger *slog.Logger) *LogActuator {
	if logger == nil {
		logger = log.Component("actuation")
	}
	return &LogActuator{logger: logger}
}

// Actuate logs the action.
func (a *LogActuator) Actuate(action Action) error {
	if action != a.last {
		a.logger.Info("action", "action", string(action))
		a.last = action
		return nil
	}
	a.logger.Debug("action", "action", string(action))
	return nil
}

func (a *LogActuator) Close() error { return nil }

// LineActuator writes one action per line to a motor controller.
type LineActuator struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewLineActuator wraps any line-oriented writer.
func NewLineActuator(w io.WriteCloser) *LineActuator {
	return &LineActuator{w: w}
}

// OpenSerial opens a serial motor controller at 8N1 and the given baud rate.
func OpenSerial(path string, baud int) (*LineActuator, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return NewLineActuator(port), nil
}

// Actuate writes the action followed by a newline.
func (a *LineActuator) Actuate(action Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, string(action)+"\n"); err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (a *LineActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
