package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// DefaultPromptTimeout bounds how long the terminal prompt waits for a code.
const DefaultPromptTimeout = 2 * time.Minute

// defaultTTYDevice is the controlling terminal on POSIX systems.
const defaultTTYDevice = "/dev/tty"

// CodePrompt acquires a one-time code from a control channel that is
// physically distinct from the MCP protocol transport. Implementations must
// never touch the process's standard streams: stdin carries inbound protocol
// messages and stdout outbound ones.
//
// Contract:
// - Concurrency: at most one prompt is outstanding at a time; callers
//   guarantee this (the prompt only runs inside the interactive-prompt
//   strategy, never concurrently with tool traffic).
// - Errors: Available and Prompt return ErrPromptUnavailable when the channel
//   cannot be opened; Prompt returns ErrPromptTimeout when no line arrives in
//   the window. Both carry remediation guidance for non-interactive setups.
type CodePrompt interface {
	// Available reports whether the channel can be opened, without consuming
	// input. Called before the sign-in exchange begins so a missing terminal
	// fails fast instead of after a network round trip.
	Available() error

	// Prompt writes the prompt text to the control channel and reads one
	// line, bounded by the configured timeout.
	Prompt(ctx context.Context) (string, error)
}

// TerminalPrompt reads a one-time code from the controlling terminal device.
// The prompt text is written to the terminal itself, so nothing this type
// does can be mistaken for protocol output.
type TerminalPrompt struct {
	// Device is the terminal device path. Default: /dev/tty
	Device string

	// Timeout is the window to wait for a line. Default: DefaultPromptTimeout
	Timeout time.Duration

	// open overrides device acquisition in tests.
	open func(device string) (io.ReadWriteCloser, error)
}

// Available opens and releases the terminal device.
func (p *TerminalPrompt) Available() error {
	tty, err := p.openDevice()
	if err != nil {
		return err
	}
	return tty.Close()
}

// Prompt asks the operator for a code on the terminal. On timeout or channel
// failure the device handle is released before returning.
func (p *TerminalPrompt) Prompt(ctx context.Context) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}

	tty, err := p.openDevice()
	if err != nil {
		return "", err
	}

	fmt.Fprint(tty, "Enter MFA code: ")

	type answer struct {
		code string
		err  error
	}
	lines := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(tty).ReadString('\n')
		if err != nil {
			lines <- answer{err: err}
			return
		}
		lines <- answer{code: strings.TrimSpace(line)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-lines:
		tty.Close()
		if a.err != nil {
			return "", fmt.Errorf("%w: reading code: %v", ErrPromptUnavailable, a.err)
		}
		return a.code, nil
	case <-timer.C:
		// Closing the handle also unblocks the reader goroutine.
		tty.Close()
		return "", ErrPromptTimeout
	case <-ctx.Done():
		tty.Close()
		return "", ctx.Err()
	}
}

func (p *TerminalPrompt) openDevice() (io.ReadWriteCloser, error) {
	device := p.Device
	if device == "" {
		device = defaultTTYDevice
	}
	if p.open != nil {
		return p.open(device)
	}

	tty, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrPromptUnavailable, device, err)
	}
	if !term.IsTerminal(int(tty.Fd())) {
		tty.Close()
		return nil, fmt.Errorf("%w: %s is not a terminal", ErrPromptUnavailable, device)
	}
	return tty, nil
}

// Ensure TerminalPrompt implements CodePrompt
var _ CodePrompt = (*TerminalPrompt)(nil)
