// Package loadtool launches the external load generator against the prepared
// data files and streams its output.
package loadtool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const maxLineBytes = 1 << 20

// ExitError reports a load tool run that exited non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("load tool exited with code %d", e.Code)
}

// Runner runs `<Binary> run <Scenario> --target <target>`.
type Runner struct {
	Binary   string
	Scenario string
	// Dir is the working directory of the child. Empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long a canceled child may take to exit after
	// SIGTERM before it is killed.
	WaitDelay time.Duration
}

// Args returns the arguments passed to the binary for target.
func (r *Runner) Args(target string) []string {
	return []string{"run", r.Scenario, "--target", target}
}

// Run starts the load tool and blocks until it exits. Each line the child
// writes is forwarded to Stdout or Stderr as it arrives. Run returns nil
// only for exit status 0 and an *ExitError for any other status. Canceling
// ctx terminates the child.
func (r *Runner) Run(ctx context.Context, target string) error {
	if r.Binary == "" {
		return errors.New("load tool binary is not configured")
	}

	cmd := exec.CommandContext(ctx, r.Binary, r.Args(target)...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 10 * time.Second
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start load tool: %w", err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	go forward(&wg, stdout, &lockedWriter{mu: &mu, w: writerOr(r.Stdout, os.Stdout)})
	go forward(&wg, stderr, &lockedWriter{mu: &mu, w: writerOr(r.Stderr, os.Stderr)})
	// Pipes must be drained before Wait closes them.
	wg.Wait()

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("load tool canceled: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("wait for load tool: %w", err)
	}
	return nil
}

func forward(wg *sync.WaitGroup, src io.Reader, dst io.Writer) {
	defer wg.Done()
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fmt.Fprintln(dst, scanner.Text())
	}
	// Keep draining after an oversized line so the child never blocks.
	_, _ = io.Copy(dst, src)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

// lockedWriter serializes line writes when stdout and stderr share a writer.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
