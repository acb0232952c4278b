package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTTY is an in-memory terminal device.
type fakeTTY struct {
	in     io.Reader
	out    bytes.Buffer
	closed atomic.Bool
}

func (f *fakeTTY) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTTY) Write(p []byte) (int, error) { return f.out.Write(p) }
func (f *fakeTTY) Close() error                { f.closed.Store(true); return nil }

// blockedReader never produces a line.
type blockedReader struct{}

func (blockedReader) Read(p []byte) (int, error) {
	select {} // block forever; the prompt's timeout must fire
}

func TestTerminalPrompt_ReadsCode(t *testing.T) {
	tty := &fakeTTY{in: bytes.NewBufferString("483921\n")}
	prompt := &TerminalPrompt{
		Timeout: time.Second,
		open:    func(string) (io.ReadWriteCloser, error) { return tty, nil },
	}

	code, err := prompt.Prompt(context.Background())
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if code != "483921" {
		t.Errorf("code = %q, want 483921", code)
	}
	if !bytes.Contains(tty.out.Bytes(), []byte("MFA code")) {
		t.Error("prompt text was not written to the terminal device")
	}
	if !tty.closed.Load() {
		t.Error("terminal handle was not released")
	}
}

func TestTerminalPrompt_Timeout(t *testing.T) {
	tty := &fakeTTY{in: blockedReader{}}
	prompt := &TerminalPrompt{
		Timeout: 50 * time.Millisecond,
		open:    func(string) (io.ReadWriteCloser, error) { return tty, nil },
	}

	_, err := prompt.Prompt(context.Background())
	if !errors.Is(err, ErrPromptTimeout) {
		t.Fatalf("Prompt() error = %v, want ErrPromptTimeout", err)
	}
	if !tty.closed.Load() {
		t.Error("terminal handle was not released on timeout")
	}
}

func TestTerminalPrompt_Unavailable(t *testing.T) {
	prompt := &TerminalPrompt{
		open: func(string) (io.ReadWriteCloser, error) { return nil, ErrPromptUnavailable },
	}

	if err := prompt.Available(); !errors.Is(err, ErrPromptUnavailable) {
		t.Errorf("Available() error = %v, want ErrPromptUnavailable", err)
	}
	if _, err := prompt.Prompt(context.Background()); !errors.Is(err, ErrPromptUnavailable) {
		t.Errorf("Prompt() error = %v, want ErrPromptUnavailable", err)
	}
}

func TestTerminalPrompt_NoDeviceOnHost(t *testing.T) {
	// A path that never exists stands in for a process with no controlling
	// terminal.
	prompt := &TerminalPrompt{Device: "/dev/tty-does-not-exist"}

	if err := prompt.Available(); !errors.Is(err, ErrPromptUnavailable) {
		t.Errorf("Available() error = %v, want ErrPromptUnavailable", err)
	}
}

func TestTerminalPrompt_ContextCancelled(t *testing.T) {
	tty := &fakeTTY{in: blockedReader{}}
	prompt := &TerminalPrompt{
		Timeout: time.Minute,
		open:    func(string) (io.ReadWriteCloser, error) { return tty, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := prompt.Prompt(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Prompt() error = %v, want context.Canceled", err)
	}
	if !tty.closed.Load() {
		t.Error("terminal handle was not released on cancellation")
	}
}
