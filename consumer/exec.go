package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/billziss-gh/golib/shlex"
	"github.com/mostlygeek/meltdown/event"
	"github.com/rs/zerolog"
)

var ErrEmptyCommand = errors.New("command cannot be empty")

type ExecOption func(*Exec)

// WithTimeout bounds each command run. Zero disables the limit.
func WithTimeout(d time.Duration) ExecOption {
	return func(e *Exec) {
		e.timeout = d
	}
}

// WithErrorHandler receives command failures.
func WithErrorHandler(fn func(error)) ExecOption {
	return func(e *Exec) {
		e.onError = fn
	}
}

func WithLogger(logger zerolog.Logger) ExecOption {
	return func(e *Exec) {
		e.logger = logger
	}
}

// Exec runs an external command for every accepted value. The value is
// written to the command's stdin as JSON, events in their map form.
type Exec struct {
	args    []string
	timeout time.Duration
	onError func(error)
	logger  zerolog.Logger
}

// NewExec parses cmdline with shell quoting rules for the current platform.
func NewExec(cmdline string, opts ...ExecOption) (*Exec, error) {
	var args []string
	if runtime.GOOS == "windows" {
		args = shlex.Windows.Split(cmdline)
	} else {
		args = shlex.Posix.Split(cmdline)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	e := &Exec{
		args:    args,
		timeout: 30 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Args returns the parsed command line
func (e *Exec) Args() []string {
	return append([]string(nil), e.args...)
}

func (e *Exec) Accept(value any) {
	if err := e.Run(context.Background(), value); err != nil {
		e.logger.Warn().Err(err).Strs("command", e.args).Msg("exec consumer failed")
		if e.onError != nil {
			e.onError(err)
		}
	}
}

// Run executes the command once for value.
func (e *Exec) Run(ctx context.Context, value any) error {
	payload, err := json.Marshal(EventMap(value))
	if err != nil {
		return fmt.Errorf("encoding value for %s: %w", e.args[0], err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if ev, ok := value.(*event.Event); ok {
		cmd.Env = append(cmd.Environ(), "MELTDOWN_EVENT_ID="+ev.ID)
	}

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("running %s: %w: %s", e.args[0], err, bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("running %s: %w", e.args[0], err)
	}
	e.logger.Debug().Strs("command", e.args).Msg("exec consumer finished")
	return nil
}
