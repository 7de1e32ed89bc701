package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog"

	"clipdeck/internal/metrics"
)

const waitDelay = 5 * time.Second

var progressPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// Exec is the Runner backed by real child processes. One process per call.
type Exec struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewExec creates an Exec. A zero timeout leaves invocations unbounded.
func NewExec(logger zerolog.Logger, m *metrics.Metrics, timeout time.Duration) *Exec {
	return &Exec{
		logger:  logger.With().Str("component", "toolexec").Logger(),
		metrics: m,
		timeout: timeout,
	}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, tool Tool, args ...string) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	repro := shellescape.QuoteCommand(append([]string{tool.Binary}, args...))
	logger := e.logger.With().Str("tool", tool.Name).Logger()

	stdout := &lineBuffer{onLine: func(line string) {
		if m := progressPattern.FindStringSubmatch(line); m != nil {
			logger.Debug().Str("percent", m[1]).Msg("tool progress")
		}
	}}
	var stderr lineBuffer

	cmd := exec.CommandContext(ctx, tool.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	// Grandchildren (yt-dlp spawns ffmpeg) may hold the pipes after a kill.
	cmd.WaitDelay = waitDelay

	logger.Debug().Str("cmd", repro).Msg("starting tool")
	start := time.Now()

	if err := cmd.Start(); err != nil {
		e.metrics.ObserveTool(tool.Name, "start_failed", time.Since(start))
		logger.Error().Err(err).Str("cmd", repro).Msg("tool failed to start")
		return nil, fmt.Errorf("starting %s: %w", tool.Name, err)
	}

	err := cmd.Wait()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.metrics.ObserveTool(tool.Name, "wait_failed", res.Duration)
			return nil, fmt.Errorf("waiting for %s: %w", tool.Name, err)
		}
		res.ExitCode = exitErr.ExitCode()
		e.metrics.ObserveTool(tool.Name, "exit_error", res.Duration)
		logger.Warn().
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Str("cmd", repro).
			Str("stderr", tail(res.Stderr, 2048)).
			Msg("tool exited with error")
		return res, &ExitError{Tool: tool.Name, Code: res.ExitCode, Stderr: res.Stderr}
	}

	e.metrics.ObserveTool(tool.Name, "ok", res.Duration)
	logger.Debug().Dur("duration", res.Duration).Int("stdout_bytes", len(res.Stdout)).Msg("tool finished")
	return res, nil
}

// Probe implements Runner.
func (e *Exec) Probe(ctx context.Context, tool Tool) (string, error) {
	if _, err := exec.LookPath(tool.Binary); err != nil {
		e.metrics.ObserveTool(tool.Name, "unavailable", 0)
		return "", &UnavailableError{Tool: tool.Name, Hint: tool.InstallHint, Err: err}
	}

	res, err := e.Run(ctx, tool, tool.VersionArgs...)
	if err != nil {
		return "", &UnavailableError{Tool: tool.Name, Hint: tool.InstallHint, Err: err}
	}

	version, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return version, nil
}

// lineBuffer accumulates a child's output stream and reports each complete line.
// os/exec copies pipes from its own goroutines, so writes are serialized here.
type lineBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	partial []byte
	onLine  func(string)
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.Write(p)
	if b.onLine == nil {
		return len(p), nil
	}

	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexAny(b.partial, "\r\n")
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(b.partial[:i])); line != "" {
			b.onLine(line)
		}
		b.partial = b.partial[i+1:]
	}
	return len(p), nil
}

func (b *lineBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// tail keeps the last n bytes of s for log fields.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
